package adapters

import "sync"

// FakePageAllocator hands out slices backing PAGESIZE-sized physical
// pages from a fixed-size pool, standing in for the teacher's palloc
// free-list allocator (out of scope per spec.md §1). It exists so the
// frame table and SPT have something concrete to call through
// ports.PageAllocator in tests and the demo driver.
type FakePageAllocator struct {
	pageSize int
	mu       sync.Mutex
	free     []uintptr
	backing  map[uintptr][]byte
}

// NewFakePageAllocator preallocates npages backing slices of pageSize
// bytes each.
func NewFakePageAllocator(npages, pageSize int) *FakePageAllocator {
	a := &FakePageAllocator{
		pageSize: pageSize,
		backing:  make(map[uintptr][]byte, npages),
	}
	for i := 0; i < npages; i++ {
		buf := make([]byte, pageSize)
		kaddr := uintptr(i+1) << 20 // synthetic, distinguishable from 0
		a.backing[kaddr] = buf
		a.free = append(a.free, kaddr)
	}
	return a
}

// Get implements ports.PageAllocator.
func (a *FakePageAllocator) Get(zero bool) (uintptr, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.free) == 0 {
		return 0, false
	}
	kaddr := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	if zero {
		buf := a.backing[kaddr]
		for i := range buf {
			buf[i] = 0
		}
	}
	return kaddr, true
}

// Free implements ports.PageAllocator.
func (a *FakePageAllocator) Free(kaddr uintptr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free = append(a.free, kaddr)
}

// Bytes exposes the backing slice for a kaddr returned by Get, so test
// code and the frame table's copy-in/copy-out paths can read or write
// page contents without a real memory map.
func (a *FakePageAllocator) Bytes(kaddr uintptr) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.backing[kaddr]
}

// Avail reports how many pages remain free, used by tests asserting
// the single-frame eviction property.
func (a *FakePageAllocator) Avail() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}
