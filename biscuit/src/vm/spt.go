// Package vm implements the supplemental page table, demand loader,
// mmap registry, and user-pointer validators: the process-facing half
// of virtual memory management. It replaces the teacher's own as.go,
// which drove a hardware Pmap_t and the patched runtime's direct map
// directly; here every physical-page and page-table operation instead
// goes through a ports.PageAllocator/ports.PageTable pair, and
// eviction and swap are delegated to mem.FrameTable/mem.SwapTable.
package vm

import (
	"fmt"
	"sync"

	"bounds"
	"defs"
	"mem"
	"ports"
	"res"
	"util"
)

// State is the kind of backing an SPT entry currently has, matching
// original_source/src/vm/page.h's ZERO/FRAME/SWAP/FILE states.
type State int

const (
	StateZero State = iota
	StateFrame
	StateSwap
	StateFile
)

// Entry is one supplemental page table entry: everything needed to
// bring a non-resident page back in, or to write a resident one out.
type Entry struct {
	VPage     ports.VPage
	State     State
	Writable  bool
	IsStack   bool
	Slot      mem.SwapSlot
	File      ports.File
	FileOff   int64
	ReadBytes int
	ZeroBytes int
}

// SPT is one address space's supplemental page table, grounded on
// original_source/src/vm/page.c's hash table of struct spte keyed by
// user_virt_addr.
type SPT struct {
	mu       sync.Mutex
	entries  map[ports.VPage]*Entry
	alloc    ports.PageAllocator
	pt       ports.PageTable
	frames   *mem.FrameTable
	swap     *mem.SwapTable
	stackLo  ports.VPage // lowest vpage the stack is allowed to grow down to
	stackTop ports.VPage // highest vpage currently mapped as stack
}

// NewSPT returns an empty supplemental page table for one address
// space, sharing the frame table and swap table of the kernel it
// belongs to.
func NewSPT(alloc ports.PageAllocator, pt ports.PageTable, frames *mem.FrameTable, swap *mem.SwapTable, stackTop ports.VPage) *SPT {
	return &SPT{
		entries:  make(map[ports.VPage]*Entry),
		alloc:    alloc,
		pt:       pt,
		frames:   frames,
		swap:     swap,
		stackTop: stackTop,
		stackLo:  stackTop - ports.VPage(defs.MaxStackBytes) + ports.VPage(defs.PageSize),
	}
}

// SetPage records a fresh, not-yet-resident mapping: a zero page, or
// one to be demand-loaded from file (original_source's
// spte_set_page).
func (s *SPT) SetPage(e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.VPage] = e
}

// Lookup returns the entry for vp, original_source's page_lookup.
func (s *SPT) Lookup(vp ports.VPage) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[vp]
	return e, ok
}

// Destroy releases every entry's backing resource (original_source's
// spt_destroy): a resident page's frame is freed and its PTE cleared,
// flushing a writable dirty file mapping back first; a swapped-out
// page's slot is returned to the bitmap. Thread exit calls this so a
// dying thread's frames are reclaimed without needing to wait for the
// next scheduled thread to notice (spec.md §3's "released by the
// *next* scheduled thread" governs the kernel stack page only).
func (s *SPT) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for vp, e := range s.entries {
		switch e.State {
		case StateFrame:
			kaddr, resident := s.pt.Lookup(vp)
			if !resident {
				break
			}
			if e.File != nil && e.Writable && s.pt.IsDirty(vp) {
				if bytesFn, ok := s.alloc.(interface{ Bytes(uintptr) []byte }); ok {
					buf := bytesFn.Bytes(kaddr)
					e.File.WriteAt(buf[:e.ReadBytes], e.FileOff)
				}
			}
			s.pt.Clear(vp)
			s.alloc.Free(kaddr)
			s.frames.Remove(vp)
		case StateSwap:
			s.swap.Free(e.Slot)
		}
	}
	s.entries = make(map[ports.VPage]*Entry)
}

// VaddrIsValid reports whether vp is governed by this table, either
// because it already has an entry or because it falls within the
// stack's growth region (original_source's vaddr_is_valid plus the
// stack-growth heuristic load_page applies at the syscall boundary).
func (s *SPT) VaddrIsValid(vp ports.VPage, faultBelowStackPtr int64) bool {
	s.mu.Lock()
	_, ok := s.entries[vp]
	s.mu.Unlock()
	if ok {
		return true
	}
	return s.canGrowStack(vp, faultBelowStackPtr)
}

func (s *SPT) canGrowStack(vp ports.VPage, faultBelowStackPtr int64) bool {
	if vp > s.stackTop || vp < s.stackLo {
		return false
	}
	// A fault more than a handful of bytes below the current stack
	// pointer is not a legitimate PUSH/PUSHA; it is corruption.
	const pushaSlack = 32
	return util.AbsDiff(faultBelowStackPtr, 0) <= pushaSlack
}

// GrowStack installs a fresh zero entry at vp, one page at a time, so
// that a single deep recursive fault still grows the stack entry by
// entry the way original_source's load_page does on its MAX_STACK
// check.
func (s *SPT) GrowStack(vp ports.VPage) {
	s.SetPage(&Entry{VPage: vp, State: StateZero, Writable: true, IsStack: true})
}

// writebackFor is installed as the mem.Writeback passed to
// mem.FrameTable.Evict: it inspects the owning SPT entry and either
// swaps out an anonymous/stack page or writes a dirty shared file
// mapping back to its file, per the REDESIGN FLAG fixing
// original_source/src/vm/frame.c's evict_frame to never silently drop
// dirty data.
func (s *SPT) writebackFor(f *mem.Frame) error {
	s.mu.Lock()
	e, ok := s.entries[f.VPage]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("vm: evicting frame with no owning spt entry: %v", f.VPage)
	}

	dirty := s.pt.IsDirty(f.VPage)
	page := s.alloc.(interface{ Bytes(uintptr) []byte })
	buf := page.Bytes(f.KAddr)

	// A resident entry is in StateFrame; a file-backed one is recognised
	// by its File handle.
	switch {
	case e.File != nil && e.Writable && dirty:
		if _, err := e.File.WriteAt(buf[:e.ReadBytes], e.FileOff); err != nil {
			return fmt.Errorf("vm: writeback vpage %v: %w", f.VPage, err)
		}
		e.State = StateFile
	case e.File != nil && !dirty:
		// clean file-backed page: just discard, it can be re-read later.
		e.State = StateFile
	default:
		// anonymous (or stack) page: must go to swap if dirty, or if it
		// has never been backed by anything else.
		if dirty || e.State == StateZero || e.State == StateFrame {
			slot, ok := s.swap.Alloc()
			if !ok {
				return fmt.Errorf("vm: swap exhausted evicting vpage %v", f.VPage)
			}
			if err := s.swap.WriteOut(slot, buf); err != nil {
				s.swap.Free(slot)
				return err
			}
			e.State = StateSwap
			e.Slot = slot
		}
	}
	s.pt.SetDirty(f.VPage, false)
	return nil
}

// Fault resolves a page fault at vp, grounded on
// original_source/src/vm/page.c's load_page: bring the page in from
// whatever state its entry describes, evicting another frame first if
// the allocator has none free, then install the mapping.
func (s *SPT) Fault(owner mem.Owner, vp ports.VPage, write bool) defs.Err_t {
	e, ok := s.Lookup(vp)
	if !ok {
		return -defs.EFAULT
	}
	if write && !e.Writable {
		return -defs.EFAULT
	}
	if _, resident := s.pt.Lookup(vp); resident {
		return 0
	}

	if !res.Resadd_noblock(bounds.Bounds(bounds.B_ASPACE_T_K2USER_INNER)) {
		return -defs.ENOHEAP
	}
	defer res.Resdel(bounds.Bounds(bounds.B_ASPACE_T_K2USER_INNER))

	kaddr, ok := s.alloc.Get(e.State == StateZero)
	if !ok {
		if _, err := s.frames.Evict(s.writebackFor); err != nil {
			return -defs.ENOMEM
		}
		kaddr, ok = s.alloc.Get(e.State == StateZero)
		if !ok {
			return -defs.ENOMEM
		}
	}

	bytesFn, hasBytes := s.alloc.(interface{ Bytes(uintptr) []byte })
	var buf []byte
	if hasBytes {
		buf = bytesFn.Bytes(kaddr)
	}

	switch e.State {
	case StateZero:
		// already zeroed by Get(true).
	case StateSwap:
		if err := s.swap.ReadIn(e.Slot, buf); err != nil {
			s.alloc.Free(kaddr)
			return -defs.ENOMEM
		}
		s.swap.Free(e.Slot)
	case StateFile:
		n, _ := e.File.ReadAt(buf[:e.ReadBytes], e.FileOff)
		for i := n; i < e.ReadBytes+e.ZeroBytes; i++ {
			buf[i] = 0
		}
	case StateFrame:
		// already resident per the pt.Lookup check above; unreachable.
	}

	if !s.pt.Install(vp, kaddr, e.Writable) {
		s.alloc.Free(kaddr)
		return -defs.ENOMEM
	}
	s.frames.Insert(owner, vp, kaddr)
	e.State = StateFrame
	return 0
}
