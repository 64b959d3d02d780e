package mem

import (
	"testing"

	"adapters"
	"ports"
)

func TestEvictPrefersUnaccessed(t *testing.T) {
	alloc := adapters.NewFakePageAllocator(2, PGSIZE)
	pt := adapters.NewFakePageTable()
	ft := NewFrameTable(alloc, pt)

	k1, _ := alloc.Get(true)
	pt.Install(ports.VPage(0x1000), k1, true)
	ft.Insert(nil, ports.VPage(0x1000), k1)

	k2, _ := alloc.Get(true)
	pt.Install(ports.VPage(0x2000), k2, true)
	ft.Insert(nil, ports.VPage(0x2000), k2)

	// vp 0x1000 was touched, 0x2000 was not: eviction must pick 0x2000.
	pt.Touch(ports.VPage(0x1000), false)

	var wrote ports.VPage
	victim, err := ft.Evict(func(f *Frame) error {
		wrote = f.VPage
		return nil
	})
	if err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if victim.VPage != ports.VPage(0x2000) || wrote != ports.VPage(0x2000) {
		t.Fatalf("evicted %v, want 0x2000", victim.VPage)
	}
	if ft.Len() != 1 {
		t.Fatalf("frame table len = %d, want 1", ft.Len())
	}
}

func TestEvictSkipsPinned(t *testing.T) {
	alloc := adapters.NewFakePageAllocator(1, PGSIZE)
	pt := adapters.NewFakePageTable()
	ft := NewFrameTable(alloc, pt)

	k1, _ := alloc.Get(true)
	pt.Install(ports.VPage(0x1000), k1, true)
	ft.Insert(nil, ports.VPage(0x1000), k1)
	ft.Pin(ports.VPage(0x1000), true)

	if _, err := ft.Evict(func(*Frame) error { return nil }); err == nil {
		t.Fatalf("Evict succeeded despite only frame being pinned")
	}
}

func TestSwapRoundTrip(t *testing.T) {
	dev := adapters.NewMemBlockDevice(int64(sectorsPerPage) * 4)
	st := NewSwapTable(dev)

	slot, ok := st.Alloc()
	if !ok {
		t.Fatalf("Alloc failed")
	}
	page := make([]byte, PGSIZE)
	for i := range page {
		page[i] = byte(i)
	}
	if err := st.WriteOut(slot, page); err != nil {
		t.Fatalf("WriteOut: %v", err)
	}
	got := make([]byte, PGSIZE)
	if err := st.ReadIn(slot, got); err != nil {
		t.Fatalf("ReadIn: %v", err)
	}
	for i := range page {
		if got[i] != page[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], page[i])
		}
	}
	st.Free(slot)
	if st.Avail() != 4 {
		t.Fatalf("Avail = %d, want 4", st.Avail())
	}
}

func TestSwapExhaustion(t *testing.T) {
	dev := adapters.NewMemBlockDevice(int64(sectorsPerPage))
	st := NewSwapTable(dev)
	if _, ok := st.Alloc(); !ok {
		t.Fatalf("first Alloc should succeed")
	}
	if _, ok := st.Alloc(); ok {
		t.Fatalf("second Alloc should fail: device holds only one slot")
	}
}
