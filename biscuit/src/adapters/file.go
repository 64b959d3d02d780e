package adapters

import (
	"io"
	"sync"

	"ports"
)

// MemFile is an in-memory ports.File, standing in for the filesystem
// (out of scope per spec.md §1) so the SPT's demand loader and the
// mmap registry can be exercised without a real file tree.
type MemFile struct {
	mu   *sync.Mutex
	data *[]byte
}

// NewMemFile wraps the given bytes as a reopenable, shared-backing
// ports.File. Each Reopen returns a handle sharing the same backing
// slice, the way reopening a file by inode does on a real filesystem.
func NewMemFile(data []byte) *MemFile {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &MemFile{mu: &sync.Mutex{}, data: &buf}
}

// ReadAt implements ports.File. It copies exactly len(buf) bytes (or
// whatever remains before EOF) with no sentinel byte value treated as
// an end-of-input marker, per spec.md §9's resolution of the source's
// input_getc()/null-comparison bug.
func (f *MemFile) ReadAt(buf []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset < 0 || offset >= int64(len(*f.data)) {
		if offset == int64(len(*f.data)) {
			return 0, io.EOF
		}
		return 0, io.EOF
	}
	n := copy(buf, (*f.data)[offset:])
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements ports.File, growing the backing slice as needed.
func (f *MemFile) WriteAt(buf []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := offset + int64(len(buf))
	if end > int64(len(*f.data)) {
		grown := make([]byte, end)
		copy(grown, *f.data)
		*f.data = grown
	}
	n := copy((*f.data)[offset:end], buf)
	return n, nil
}

// Length implements ports.File.
func (f *MemFile) Length() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(*f.data))
}

// Reopen implements ports.File: it returns a handle sharing the same
// backing slice and mutex, the way two open fds on one inode would
// observe each other's writes.
func (f *MemFile) Reopen() (ports.File, error) {
	return &MemFile{mu: f.mu, data: f.data}, nil
}

// Close implements ports.File; MemFile holds no OS resource.
func (f *MemFile) Close() error { return nil }
