package proc

import (
	"context"

	"defs"
)

// ChildHandle is the parent-side record of one spawned child thread,
// grounded on original_source/src/threads/thread.c's
// struct child_process (tid, exit_status, has_exited). Kernel.Wait
// only knows whether a tid is still present in the all-threads map;
// ChildHandle lets a specific parent block on a specific child and
// recover its exit status after the child has already been reaped.
type ChildHandle struct {
	Tid        defs.TID
	exitStatus int
	hasExited  bool
}

// CreateChild is Create plus parent/child bookkeeping: the returned
// ChildHandle lets parent later call WaitChild to block for exactly
// this child and recover its exit status, and the child's CPU
// accounting is folded into parent's own when it exits (spec.md's
// wait/rusage accounting, §6).
func (k *Kernel) CreateChild(parent *Thread, name string, priority int, fn func(ctx context.Context)) (defs.TID, *ChildHandle) {
	tid := k.Create(name, priority, fn)
	if tid == defs.TIDError {
		return tid, nil
	}
	h := &ChildHandle{Tid: tid}
	k.mu.Lock()
	k.threads[tid].parent = parent
	parent.children = append(parent.children, h)
	k.mu.Unlock()
	return tid, h
}

// WaitChild blocks the calling thread until the child behind h exits,
// then returns its exit status. Calling WaitChild again on an
// already-reaped handle returns immediately with the same cached
// status; repeated waits are not rejected.
func (k *Kernel) WaitChild(ctx context.Context, h *ChildHandle) int {
	t := Self(ctx)
	k.mu.Lock()
	if h.hasExited {
		status := h.exitStatus
		k.mu.Unlock()
		return status
	}
	t.waitingChild = h
	t.status = StatusBlocked
	next := k.popReady()
	k.switchTo(next)
	k.mu.Unlock()
	<-t.run

	k.mu.Lock()
	t.waitingChild = nil
	status := h.exitStatus
	k.mu.Unlock()
	return status
}
