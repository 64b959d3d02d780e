package vm

import (
	"sync"

	"defs"
	"ports"
)

// MmapEntry is one memory-mapped file registration: (id, file,
// base_vpage, byte_size).
type MmapEntry struct {
	ID       int
	File     ports.File
	BaseVP   ports.VPage
	Size     int64
	NumPages int
}

// MmapRegistry is a single process's per-process mmap-id -> file
// mapping table, grounded on spec.md's memory-mapped file registry;
// the teacher's own mmap support lived inline in fs/fdops code that
// this retrieval pack never included, so the registry itself is new.
type MmapRegistry struct {
	mu      sync.Mutex
	spt     *SPT
	nextID  int
	entries map[int]*MmapEntry
}

// NewMmapRegistry returns an empty registry for one address space's
// supplemental page table.
func NewMmapRegistry(spt *SPT) *MmapRegistry {
	return &MmapRegistry{spt: spt, entries: make(map[int]*MmapEntry)}
}

// Mmap validates fd, base_vp and the file, installs one StateFile SPT
// entry per covered page, and registers the mapping under a fresh id.
// fd is supplied by the caller only for the "not 0/1" check; the
// actual I/O goes through file.
func (r *MmapRegistry) Mmap(fd int, file ports.File, baseVP ports.VPage) (int, defs.Err_t) {
	if fd == 0 || fd == 1 {
		return 0, -defs.EINVAL
	}
	if baseVP == 0 {
		return 0, -defs.EINVAL
	}
	size := file.Length()
	if size <= 0 {
		return 0, -defs.EINVAL
	}

	npages := int((size + defs.PageSize - 1) / defs.PageSize)
	installed := make([]ports.VPage, 0, npages)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < npages; i++ {
		vp := baseVP + ports.VPage(i*defs.PageSize)
		if _, exists := r.spt.Lookup(vp); exists {
			r.rollback(installed)
			return 0, -defs.EINVAL
		}
	}

	reopened, err := file.Reopen()
	if err != nil {
		return 0, -defs.EINVAL
	}

	for i := 0; i < npages; i++ {
		vp := baseVP + ports.VPage(i*defs.PageSize)
		off := int64(i * defs.PageSize)
		rb := size - off
		if rb > defs.PageSize {
			rb = defs.PageSize
		}
		zb := defs.PageSize - int(rb)
		r.spt.SetPage(&Entry{
			VPage:     vp,
			State:     StateFile,
			Writable:  true,
			File:      reopened,
			FileOff:   off,
			ReadBytes: int(rb),
			ZeroBytes: zb,
		})
		installed = append(installed, vp)
	}

	r.nextID++
	id := r.nextID
	r.entries[id] = &MmapEntry{ID: id, File: reopened, BaseVP: baseVP, Size: size, NumPages: npages}
	return id, 0
}

func (r *MmapRegistry) rollback(installed []ports.VPage) {
	for _, vp := range installed {
		r.spt.mu.Lock()
		delete(r.spt.entries, vp)
		r.spt.mu.Unlock()
	}
}

// Munmap writes back any resident, dirty covered page and destroys
// its SPT entry, then closes the reopened file handle. A missing id
// is a no-op per spec.
func (r *MmapRegistry) Munmap(id int, pt ports.PageTable, frames dirtyFrameSource) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	for i := 0; i < e.NumPages; i++ {
		vp := e.BaseVP + ports.VPage(i*defs.PageSize)
		entry, exists := r.spt.Lookup(vp)
		if !exists {
			continue
		}
		if kaddr, resident := pt.Lookup(vp); resident {
			if pt.IsDirty(vp) {
				buf := frames.Bytes(kaddr)
				entry.File.WriteAt(buf[:entry.ReadBytes], entry.FileOff)
			}
			pt.Clear(vp)
			frames.Free(kaddr)
			r.spt.frames.Remove(vp)
		}
		r.spt.mu.Lock()
		delete(r.spt.entries, vp)
		r.spt.mu.Unlock()
	}
	e.File.Close()
}

// dirtyFrameSource is the subset of ports.PageAllocator Munmap needs
// to read a resident page's bytes before discarding its mapping.
type dirtyFrameSource interface {
	Bytes(kaddr uintptr) []byte
	Free(kaddr uintptr)
}
