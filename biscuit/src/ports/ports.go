// Package ports names the external collaborators spec.md §6 treats as
// out of scope: the timer device, the block device, the physical page
// allocator, the page-table hardware abstraction, the filesystem, and
// the interrupt controller. Each is declared as a small interface in
// the style of the teacher's own boundary interfaces (mem.Page_i,
// fs.Disk_i, fdops.Fdops_i) so that proc/mem/vm depend only on a
// contract, never on a concrete driver.
package ports

import "defs"

// Timer is the timer device: it drives tick() and exposes a
// monotonic, 64-bit tick counter (spec.md §6 "Timer device").
type Timer interface {
	NowTicks() int64
}

// BlockDevice is the block device the swap allocator is laid out on
// (spec.md §6 "Block device"). SectorCount, Read and Write operate on
// whole SectorSize-byte sectors addressed by sector index.
type BlockDevice interface {
	SectorCount() int64
	ReadSector(sector int64, buf []byte) error
	WriteSector(sector int64, buf []byte) error
}

// PageAllocator is the physical page allocator (palloc), out of scope
// per spec.md §1; the frame table only ever asks it for whole pages.
type PageAllocator interface {
	// Get returns a PAGESIZE-aligned kernel address backing one
	// physical page, or ok=false if none are available. When zero is
	// true the returned page is zero-filled.
	Get(zero bool) (kaddr uintptr, ok bool)
	Free(kaddr uintptr)
}

// PageTable is the page-table hardware abstraction (address-space
// activation, PTE bits), out of scope per spec.md §1. The supplemental
// page table and frame-table eviction code only ever touch it through
// this interface — never raw PTE bit-twiddling.
type PageTable interface {
	Install(vp VPage, kaddr uintptr, writable bool) bool
	Lookup(vp VPage) (kaddr uintptr, ok bool)
	Clear(vp VPage)
	IsAccessed(vp VPage) bool
	IsDirty(vp VPage) bool
	SetAccessed(vp VPage, v bool)
	SetDirty(vp VPage, v bool)
}

// VPage is a page-aligned user virtual address, shared by
// PageTable, the SPT, and the mmap registry.
type VPage uintptr

// File is the minimal filesystem-file handle the SPT's demand loader
// and the mmap registry need (spec.md §6 "Filesystem").
type File interface {
	ReadAt(buf []byte, offset int64) (n int, err error)
	WriteAt(buf []byte, offset int64) (n int, err error)
	Length() int64
	Reopen() (File, error)
	Close() error
}

// InterruptController stands in for the interrupt controller and the
// per-CPU interrupt-enable flag (spec.md §1, §5). Kernel-core code
// never calls this directly in this port — see REDESIGN FLAGS in
// SPEC_FULL.md §4.0 for why a mutex stands in for IF-disable — but the
// interface is named here so the boundary is explicit and a future
// multi-core port has somewhere to hang real IF-disable semantics.
type InterruptController interface {
	Disable() (wasEnabled bool)
	Restore(wasEnabled bool)
}

// Err re-exports defs.Err_t so adapters need only import ports.
type Err = defs.Err_t
