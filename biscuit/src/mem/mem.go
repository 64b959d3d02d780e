// Package mem owns physical-memory bookkeeping: the frame table and
// its clock (second-chance) eviction algorithm, and the swap-slot
// bitmap allocator. The teacher's own mem package wired its frame
// bookkeeping directly into a patched-runtime direct-map and per-CPU
// free lists; neither is portable, so this package instead drives
// physical pages and persistence through ports.PageAllocator,
// ports.PageTable and ports.BlockDevice, the way the teacher's
// fs/blk.go Disk_i lets fs stay agnostic of the disk driver.
package mem

import (
	"fmt"
	"sync"

	"defs"
	"klog"
	"ports"
)

// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE = defs.PageSize

// Owner identifies the address space a frame or swap slot belongs to.
// mem never interprets it beyond equality comparisons and log lines;
// vm supplies the concrete type (an *Vm_t pointer, typically).
type Owner interface{}

// Frame is one entry in the frame table: the kernel-resident backing
// for a single resident user page (original_source/src/vm/frame.h
// struct frame).
type Frame struct {
	Owner  Owner
	VPage  ports.VPage
	KAddr  uintptr
	pinned bool
}

// FrameTable tracks every resident frame and runs clock (second
// chance) eviction when the allocator is out of physical pages,
// grounded on original_source/src/vm/frame.c's frame_table list plus
// the REDESIGN FLAG that fixes its original eviction to write back
// dirty file-backed pages instead of discarding them silently.
type FrameTable struct {
	mu      sync.Mutex
	alloc   ports.PageAllocator
	pt      ports.PageTable
	order   []*Frame // insertion order; clkHand walks this ring
	byVPage map[ports.VPage]*Frame
	clkHand int
}

// NewFrameTable returns an empty frame table backed by alloc for
// physical pages and pt for accessed/dirty bit queries.
func NewFrameTable(alloc ports.PageAllocator, pt ports.PageTable) *FrameTable {
	return &FrameTable{
		alloc:   alloc,
		pt:      pt,
		byVPage: make(map[ports.VPage]*Frame),
	}
}

// Writeback is called by Evict when a frame must be saved before its
// physical page is reused: writeback(f) for a dirty file-backed page,
// or a swap-out for an anonymous one. The caller (vm's SPT) supplies
// this as a closure so mem never imports vm or a filesystem port.
type Writeback func(f *Frame) error

// Lookup returns the frame resident at vp, if any.
func (ft *FrameTable) Lookup(vp ports.VPage) (*Frame, bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	f, ok := ft.byVPage[vp]
	return f, ok
}

// Insert records a newly faulted-in frame after its page has already
// been installed in pt by the caller.
func (ft *FrameTable) Insert(owner Owner, vp ports.VPage, kaddr uintptr) *Frame {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	f := &Frame{Owner: owner, VPage: vp, KAddr: kaddr}
	ft.order = append(ft.order, f)
	ft.byVPage[vp] = f
	return f
}

// Remove drops the bookkeeping for vp (the caller has already cleared
// the mapping and freed or repurposed the physical page).
func (ft *FrameTable) Remove(vp ports.VPage) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if f, ok := ft.byVPage[vp]; ok {
		delete(ft.byVPage, vp)
		for i, o := range ft.order {
			if o == f {
				ft.order = append(ft.order[:i], ft.order[i+1:]...)
				break
			}
		}
	}
}

// Pin marks vp's frame non-evictable, e.g. while a syscall handler
// holds a raw pointer into it.
func (ft *FrameTable) Pin(vp ports.VPage, pinned bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if f, ok := ft.byVPage[vp]; ok {
		f.pinned = pinned
	}
}

// Evict runs the clock algorithm (original_source/src/vm/frame.c plus
// the REDESIGN FLAG's dirty-page fix) to free exactly one frame: walk
// the ring, clearing the accessed bit on any frame found set, and
// pick the first unpinned frame found with the accessed bit already
// clear. The chosen frame's writeback is invoked before its mapping
// is cleared and its physical page is returned to alloc.
//
// Evict never loops forever: with at least one unpinned frame in the
// table it terminates within two passes of the ring, since the first
// pass clears every accessed bit it sees.
func (ft *FrameTable) Evict(writeback Writeback) (*Frame, error) {
	ft.mu.Lock()
	if len(ft.order) == 0 {
		ft.mu.Unlock()
		return nil, fmt.Errorf("mem: frame table empty, nothing to evict")
	}
	n := len(ft.order)
	var victim *Frame
	for tries := 0; tries < 2*n+1 && victim == nil; tries++ {
		idx := ft.clkHand % len(ft.order)
		f := ft.order[idx]
		ft.clkHand = (idx + 1) % len(ft.order)
		if f.pinned {
			continue
		}
		if ft.pt.IsAccessed(f.VPage) {
			ft.pt.SetAccessed(f.VPage, false)
			continue
		}
		victim = f
	}
	ft.mu.Unlock()

	if victim == nil {
		klog.Warnf("mem: eviction scan found no evictable frame out of %d (all pinned)", n)
		return nil, fmt.Errorf("mem: no evictable frame (all pinned)")
	}

	if err := writeback(victim); err != nil {
		klog.Warnf("mem: writeback failed evicting vpage %v: %v", victim.VPage, err)
		return nil, err
	}

	klog.Debugf("mem: evicted vpage %v (clock hand now at %d)", victim.VPage, ft.clkHand)
	ft.pt.Clear(victim.VPage)
	ft.alloc.Free(victim.KAddr)
	ft.Remove(victim.VPage)
	return victim, nil
}

// Len reports the number of resident frames, used by tests asserting
// the single-frame invariant.
func (ft *FrameTable) Len() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.order)
}
