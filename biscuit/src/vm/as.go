package vm

import (
	"sync"

	"bounds"
	"defs"
	"mem"
	"ports"
	"res"
)

// Vm_t represents one process address space: its supplemental page
// table, mmap registry, and the page-table/frame-table/swap-table it
// shares with the rest of the kernel. The teacher's own Vm_t wrapped
// a hardware Pmap_t and a direct-mapped Physmem_t directly; this one
// goes through ports.PageTable/ports.PageAllocator so it never touches
// hardware-specific state.
type Vm_t struct {
	mu sync.Mutex

	SPT    *SPT
	Mmap   *MmapRegistry
	pt     ports.PageTable
	alloc  ports.PageAllocator
	frames *mem.FrameTable
	swap   *mem.SwapTable
}

// NewVm returns a fresh address space sharing the given kernel-wide
// frame table, swap table, page table, and page allocator. stackTop is
// the highest vpage reserved for the initial stack.
func NewVm(alloc ports.PageAllocator, pt ports.PageTable, frames *mem.FrameTable, swap *mem.SwapTable, stackTop ports.VPage) *Vm_t {
	spt := NewSPT(alloc, pt, frames, swap, stackTop)
	return &Vm_t{
		SPT:    spt,
		Mmap:   NewMmapRegistry(spt),
		pt:     pt,
		alloc:  alloc,
		frames: frames,
		swap:   swap,
	}
}

// Pgfault resolves a page fault at the given address, growing the
// stack if the fault is a legitimate stack-grow candidate and no SPT
// entry exists yet.
func (as *Vm_t) Pgfault(owner mem.Owner, faultAddr uintptr, write bool, espDistance int64) defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()

	vp := ports.VPage(faultAddr &^ (defs.PageSize - 1))
	if _, ok := as.SPT.Lookup(vp); !ok {
		if !as.SPT.canGrowStack(vp, espDistance) {
			return -defs.EFAULT
		}
		as.SPT.GrowStack(vp)
	}
	return as.SPT.Fault(owner, vp, write)
}

// K2user copies src into the user address space starting at uva,
// faulting pages in one at a time and gating each iteration on the
// resource budget the way the teacher's K2user_inner does.
func (as *Vm_t) K2user(owner mem.Owner, src []uint8, uva uintptr) defs.Err_t {
	cnt := 0
	for cnt != len(src) {
		if !res.Resadd_noblock(bounds.Bounds(bounds.B_ASPACE_T_K2USER_INNER)) {
			return -defs.ENOHEAP
		}
		va := uva + uintptr(cnt)
		vp := ports.VPage(va &^ (defs.PageSize - 1))
		voff := int(va) & (defs.PageSize - 1)

		as.mu.Lock()
		if _, resident := as.pt.Lookup(vp); !resident {
			if err := as.SPT.Fault(owner, vp, true); err != 0 {
				as.mu.Unlock()
				res.Resdel(bounds.Bounds(bounds.B_ASPACE_T_K2USER_INNER))
				return err
			}
		}
		kaddr, _ := as.pt.Lookup(vp)
		bytesFn, ok := as.alloc.(interface{ Bytes(uintptr) []byte })
		as.mu.Unlock()
		res.Resdel(bounds.Bounds(bounds.B_ASPACE_T_K2USER_INNER))
		if !ok {
			return -defs.EFAULT
		}
		dst := bytesFn.Bytes(kaddr)[voff:]
		n := copy(dst, src[cnt:])
		as.pt.SetDirty(vp, true)
		cnt += n
	}
	return 0
}

// User2k copies len(dst) bytes from the user address uva into dst.
func (as *Vm_t) User2k(owner mem.Owner, dst []uint8, uva uintptr) defs.Err_t {
	cnt := 0
	for cnt != len(dst) {
		if !res.Resadd_noblock(bounds.Bounds(bounds.B_ASPACE_T_USER2K_INNER)) {
			return -defs.ENOHEAP
		}
		va := uva + uintptr(cnt)
		vp := ports.VPage(va &^ (defs.PageSize - 1))
		voff := int(va) & (defs.PageSize - 1)

		as.mu.Lock()
		if _, resident := as.pt.Lookup(vp); !resident {
			if err := as.SPT.Fault(owner, vp, false); err != 0 {
				as.mu.Unlock()
				res.Resdel(bounds.Bounds(bounds.B_ASPACE_T_USER2K_INNER))
				return err
			}
		}
		kaddr, _ := as.pt.Lookup(vp)
		bytesFn, ok := as.alloc.(interface{ Bytes(uintptr) []byte })
		as.mu.Unlock()
		res.Resdel(bounds.Bounds(bounds.B_ASPACE_T_USER2K_INNER))
		if !ok {
			return -defs.EFAULT
		}
		src := bytesFn.Bytes(kaddr)[voff:]
		n := copy(dst[cnt:], src)
		cnt += n
	}
	return 0
}

// userdmap8 faults in, if necessary, the page containing va and
// returns the byte slice from va to the end of that page, gated on
// write as a read or a write access. Userbuf_t and readUint route
// through it; K2user/User2k carry their own copy of these steps.
func (as *Vm_t) userdmap8(owner mem.Owner, va uintptr, write bool) ([]uint8, defs.Err_t) {
	vp := ports.VPage(va &^ (defs.PageSize - 1))
	voff := int(va) & (defs.PageSize - 1)

	as.mu.Lock()
	defer as.mu.Unlock()
	if _, resident := as.pt.Lookup(vp); !resident {
		if err := as.SPT.Fault(owner, vp, write); err != 0 {
			return nil, err
		}
	}
	kaddr, _ := as.pt.Lookup(vp)
	bytesFn, ok := as.alloc.(interface{ Bytes(uintptr) []byte })
	if !ok {
		return nil, -defs.EFAULT
	}
	if write {
		as.pt.SetDirty(vp, true)
	}
	as.pt.SetAccessed(vp, true)
	return bytesFn.Bytes(kaddr)[voff:], 0
}

// Uvmfree releases every frame and swap slot this address space holds
// and clears its mmap registrations.
func (as *Vm_t) Uvmfree() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.SPT.Destroy()
	as.Mmap.mu.Lock()
	for id, e := range as.Mmap.entries {
		e.File.Close()
		delete(as.Mmap.entries, id)
	}
	as.Mmap.mu.Unlock()
}
