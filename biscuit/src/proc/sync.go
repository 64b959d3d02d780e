package proc

import (
	"context"

	"defs"
	"klog"
)

// Semaphore is a non-negative counter with a FIFO-by-arrival waiter
// list, grounded on spec.md §4.2: down blocks while count == 0; up
// wakes the highest-effective-priority waiter (ties broken by
// arrival order) and yields if that waiter now outranks the running
// thread. All queue mutation happens with k.mu held, standing in for
// the teacher's interrupt-disabled critical section around
// sema_down/sema_up.
type Semaphore struct {
	k       *Kernel
	count   int
	waiters []*Thread
}

// NewSemaphore returns a semaphore initialized to count.
func NewSemaphore(k *Kernel, count int) *Semaphore {
	return &Semaphore{k: k, count: count}
}

// Down decrements the semaphore, blocking the caller until count > 0.
func (s *Semaphore) Down(ctx context.Context) {
	t := Self(ctx)
	k := s.k
	k.mu.Lock()
	for s.count == 0 {
		s.waiters = append(s.waiters, t)
		t.status = StatusBlocked
		next := k.popReady()
		k.switchTo(next)
		k.mu.Unlock()
		<-t.run
		k.mu.Lock()
	}
	s.count--
	k.mu.Unlock()
}

// popHighestWaiter removes and returns the highest-effective-priority
// waiter from waiters (earliest arrival wins ties). Caller holds k.mu.
func popHighestWaiter(waiters []*Thread) (*Thread, []*Thread) {
	if len(waiters) == 0 {
		return nil, waiters
	}
	idx := 0
	best := waiters[0].effPriority
	for i, w := range waiters {
		if w.effPriority > best {
			best = w.effPriority
			idx = i
		}
	}
	w := waiters[idx]
	waiters = append(waiters[:idx], waiters[idx+1:]...)
	return w, waiters
}

// Up increments the semaphore, waking the highest-priority waiter if
// one exists, then yields if the woken thread (or any other ready
// thread) now outranks the caller.
func (s *Semaphore) Up(ctx context.Context) {
	k := s.k
	k.mu.Lock()
	var woken *Thread
	woken, s.waiters = popHighestWaiter(s.waiters)
	if woken != nil {
		k.insertReady(woken)
	}
	s.count++
	shouldYield := k.shouldYieldLocked()
	k.mu.Unlock()
	if shouldYield {
		k.Yield(ctx)
	}
}


// Lock is a mutually-exclusive lock with priority donation, grounded
// on spec.md §4.2's acquire/release pseudocode and
// original_source/src/threads/thread.c's lock_priority_cmp /
// thread_donate_priority / thread_update_priority. It is implemented
// directly atop a capacity-1 counter (rather than delegating to
// Semaphore.Down/Up) so that donation propagation and the decision to
// block happen inside a single critical section, matching the
// original's "propagate before sema_down" ordering.
type Lock struct {
	k     *Kernel
	sema  Semaphore
	owner *Thread
}

// NewLock returns an unheld lock.
func NewLock(k *Kernel) *Lock {
	l := &Lock{k: k}
	l.sema.k = k
	l.sema.count = 1
	return l
}

// maxPriority returns the highest effective_priority among the lock's
// current waiters, or PRI_MIN if none, per spec.md §4.2's Lock data
// model. Caller holds k.mu.
func (l *Lock) maxPriority() int {
	best := defs.PriMin
	for _, w := range l.sema.waiters {
		if w.effPriority > best {
			best = w.effPriority
		}
	}
	return best
}

// Acquire blocks until the lock is free, donating priority up the
// blocker chain (bounded to depth 8, per spec.md §4.2's cycle-safety
// note) while it waits.
func (l *Lock) Acquire(ctx context.Context) {
	self := Self(ctx)
	k := l.k

	k.mu.Lock()
	if l.sema.count > 0 {
		l.sema.count--
		l.owner = self
		self.locksHeld = append(self.locksHeld, l)
		k.mu.Unlock()
		return
	}

	self.waitingFor = l
	l.sema.waiters = append(l.sema.waiters, self)
	self.status = StatusBlocked

	cur := l
	t := cur.owner
	if t != nil {
		klog.Debugf("proc: thread %d donating priority %d, blocked on lock held by %d", self.Tid, self.effPriority, t.Tid)
	}
	for depth := 0; depth < 8 && t != nil; depth++ {
		t.effPriority = effectiveFor(t, t.basePriority)
		if t.status == StatusReady {
			k.resort()
		}
		if t.waitingFor == nil {
			break
		}
		cur = t.waitingFor
		t = cur.owner
	}

	next := k.popReady()
	k.switchTo(next)
	k.mu.Unlock()
	<-self.run

	k.mu.Lock()
	self.waitingFor = nil
	l.owner = self
	self.locksHeld = append(self.locksHeld, l)
	k.mu.Unlock()
}

// Release hands the lock to the highest-priority waiter if any
// (otherwise simply frees it), recomputes the releasing thread's
// effective priority now that the donation is gone, and yields if the
// newly-readied waiter (or any other ready thread) outranks the
// caller.
func (l *Lock) Release(ctx context.Context) {
	k := l.k
	k.mu.Lock()
	owner := l.owner
	for i, held := range owner.locksHeld {
		if held == l {
			owner.locksHeld = append(owner.locksHeld[:i], owner.locksHeld[i+1:]...)
			break
		}
	}
	l.owner = nil
	owner.effPriority = effectiveFor(owner, owner.basePriority)

	var woken *Thread
	woken, l.sema.waiters = popHighestWaiter(l.sema.waiters)
	if woken != nil {
		k.insertReady(woken)
	} else {
		l.sema.count++
	}

	shouldYield := k.shouldYieldLocked()
	k.mu.Unlock()
	if shouldYield {
		k.Yield(ctx)
	}
}

// Held reports whether the lock is currently held by anyone.
func (l *Lock) Held() bool {
	l.k.mu.Lock()
	defer l.k.mu.Unlock()
	return l.owner != nil
}

// condWaiter is one thread's private rendezvous point inside a
// CondVar's waiter list, matching the teacher's/original's
// semaphore_elem idiom (a per-waiter binary semaphore rather than a
// single shared one, so signal can wake exactly one waiter).
type condWaiter struct {
	t    *Thread
	sema *Semaphore
}

// CondVar is a Mesa-style condition variable used together with an
// external Lock, grounded on original_source's cond_wait/cond_signal
// (struct condition { struct list waiters }).
type CondVar struct {
	k       *Kernel
	waiters []*condWaiter
}

// NewCondVar returns an empty condition variable.
func NewCondVar(k *Kernel) *CondVar {
	return &CondVar{k: k}
}

// Wait atomically releases lock and blocks the caller until Signal or
// Broadcast wakes it, then reacquires lock before returning.
func (c *CondVar) Wait(ctx context.Context, lock *Lock) {
	w := &condWaiter{t: Self(ctx), sema: NewSemaphore(c.k, 0)}
	c.k.mu.Lock()
	c.waiters = append(c.waiters, w)
	c.k.mu.Unlock()

	lock.Release(ctx)
	w.sema.Down(ctx)
	lock.Acquire(ctx)
}

// Signal wakes the highest-effective-priority waiter, if any.
func (c *CondVar) Signal(ctx context.Context) {
	c.k.mu.Lock()
	if len(c.waiters) == 0 {
		c.k.mu.Unlock()
		return
	}
	idx := 0
	best := c.waiters[0].t.effPriority
	for i, w := range c.waiters {
		if w.t.effPriority > best {
			best = w.t.effPriority
			idx = i
		}
	}
	w := c.waiters[idx]
	c.waiters = append(c.waiters[:idx], c.waiters[idx+1:]...)
	c.k.mu.Unlock()
	w.sema.Up(ctx)
}

// Broadcast wakes every waiter, highest-priority first.
func (c *CondVar) Broadcast(ctx context.Context) {
	for {
		c.k.mu.Lock()
		empty := len(c.waiters) == 0
		c.k.mu.Unlock()
		if empty {
			return
		}
		c.Signal(ctx)
	}
}
