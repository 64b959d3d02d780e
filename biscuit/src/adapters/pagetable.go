package adapters

import (
	"sync"

	"ports"
)

type pte struct {
	kaddr    uintptr
	writable bool
	accessed bool
	dirty    bool
}

// FakePageTable is an in-memory stand-in for the hardware page table
// (out of scope per spec.md §1): a map from ports.VPage to a software
// PTE. vm.SPT and mem's clock eviction drive accessed/dirty through
// this exactly as they would the real PTE A/D bits.
type FakePageTable struct {
	mu    sync.Mutex
	table map[ports.VPage]*pte
}

// NewFakePageTable returns an empty page table.
func NewFakePageTable() *FakePageTable {
	return &FakePageTable{table: make(map[ports.VPage]*pte)}
}

// Install implements ports.PageTable.
func (p *FakePageTable) Install(vp ports.VPage, kaddr uintptr, writable bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.table[vp]; exists {
		return false
	}
	p.table[vp] = &pte{kaddr: kaddr, writable: writable}
	return true
}

// Lookup implements ports.PageTable.
func (p *FakePageTable) Lookup(vp ports.VPage) (uintptr, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.table[vp]
	if !ok {
		return 0, false
	}
	return e.kaddr, true
}

// Clear implements ports.PageTable: it removes the mapping entirely,
// mirroring invlpg after a PTE is zeroed.
func (p *FakePageTable) Clear(vp ports.VPage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.table, vp)
}

// IsAccessed implements ports.PageTable.
func (p *FakePageTable) IsAccessed(vp ports.VPage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.table[vp]
	return ok && e.accessed
}

// IsDirty implements ports.PageTable.
func (p *FakePageTable) IsDirty(vp ports.VPage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.table[vp]
	return ok && e.dirty
}

// SetAccessed implements ports.PageTable.
func (p *FakePageTable) SetAccessed(vp ports.VPage, v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.table[vp]; ok {
		e.accessed = v
	}
}

// SetDirty implements ports.PageTable.
func (p *FakePageTable) SetDirty(vp ports.VPage, v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.table[vp]; ok {
		e.dirty = v
	}
}

// Touch marks vp accessed and, if write is true, dirty — used by
// tests simulating a user-mode memory reference without a real MMU.
func (p *FakePageTable) Touch(vp ports.VPage, write bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.table[vp]
	if !ok {
		return
	}
	e.accessed = true
	if write {
		e.dirty = true
	}
}
