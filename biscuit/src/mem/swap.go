package mem

import (
	"fmt"
	"sync"

	"defs"
	"klog"
	"ports"
)

// SwapSlot identifies one page-sized region of the swap device.
type SwapSlot int64

const sectorsPerPage = defs.SectorsPerPage

// SwapTable is a bitmap allocator of page-sized swap slots over a
// ports.BlockDevice, grounded on original_source/src/vm/swap.c's
// swap_map bitmap (there built with lib/kernel's bitmap.c; here a
// plain []bool serves the same purpose, since nothing else in this
// repo needs the original's compact bit-packing).
type SwapTable struct {
	mu     sync.Mutex
	dev    ports.BlockDevice
	used   []bool
	nslots int64
}

// NewSwapTable sizes the bitmap to the number of whole pages the
// device holds.
func NewSwapTable(dev ports.BlockDevice) *SwapTable {
	nslots := dev.SectorCount() / int64(sectorsPerPage)
	return &SwapTable{dev: dev, used: make([]bool, nslots), nslots: nslots}
}

// Alloc reserves a free slot, returning ok=false if the device is
// full (original_source's swap_out PANICs; here exhaustion is not
// fatal, and vm's eviction path fails the fault with ENOMEM).
func (st *SwapTable) Alloc() (SwapSlot, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, used := range st.used {
		if !used {
			st.used[i] = true
			return SwapSlot(i), true
		}
	}
	klog.Warnf("mem: swap device exhausted, all %d slots in use", st.nslots)
	return 0, false
}

// Free releases a slot back to the bitmap.
func (st *SwapTable) Free(slot SwapSlot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if int64(slot) >= 0 && int64(slot) < st.nslots {
		st.used[slot] = false
	}
}

// WriteOut writes one PAGESIZE page into slot (original_source's
// swap_out's sector-at-a-time block_write loop).
func (st *SwapTable) WriteOut(slot SwapSlot, page []byte) error {
	if len(page) != PGSIZE {
		return fmt.Errorf("mem: swap page must be %d bytes, got %d", PGSIZE, len(page))
	}
	base := int64(slot) * int64(sectorsPerPage)
	for i := 0; i < sectorsPerPage; i++ {
		lo := i * defs.SectorSize
		hi := lo + defs.SectorSize
		if err := st.dev.WriteSector(base+int64(i), page[lo:hi]); err != nil {
			return fmt.Errorf("mem: swap write slot %d: %w", slot, err)
		}
	}
	return nil
}

// ReadIn reads slot's page back into page (original_source's
// swap_in's sector-at-a-time block_read loop). It does not free the
// slot; callers free explicitly once the copy is durable.
func (st *SwapTable) ReadIn(slot SwapSlot, page []byte) error {
	if len(page) != PGSIZE {
		return fmt.Errorf("mem: swap page must be %d bytes, got %d", PGSIZE, len(page))
	}
	base := int64(slot) * int64(sectorsPerPage)
	for i := 0; i < sectorsPerPage; i++ {
		lo := i * defs.SectorSize
		hi := lo + defs.SectorSize
		if err := st.dev.ReadSector(base+int64(i), page[lo:hi]); err != nil {
			return fmt.Errorf("mem: swap read slot %d: %w", slot, err)
		}
	}
	return nil
}

// Avail reports the number of free slots, used by tests asserting
// frame/swap disjointness and capacity exhaustion.
func (st *SwapTable) Avail() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := int64(0)
	for _, used := range st.used {
		if !used {
			n++
		}
	}
	return n
}
