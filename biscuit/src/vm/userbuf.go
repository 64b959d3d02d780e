package vm

import (
	"fmt"
	"sync"

	"bounds"
	"defs"
	"mem"
	"res"
)

// Userbuf_t assists reading and writing user memory page at a time,
// gated on the resource budget exactly like the teacher's own
// Userbuf_t, but routes every access through Vm_t.userdmap8 (SPT fault
// + ports.PageTable) instead of a hardware Pmap_t walk.
type Userbuf_t struct {
	owner  mem.Owner
	userva uintptr
	len    int
	off    int
	as     *Vm_t
}

// Ub_init initialises the buffer for the given address space.
func (ub *Userbuf_t) Ub_init(owner mem.Owner, as *Vm_t, uva uintptr, length int) {
	if length < 0 {
		panic("negative length")
	}
	ub.owner = owner
	ub.userva = uva
	ub.len = length
	ub.off = 0
	ub.as = as
}

// Remain returns the number of unread bytes left in the buffer.
func (ub *Userbuf_t) Remain() int { return ub.len - ub.off }

// Totalsz reports the total size of the buffer in bytes.
func (ub *Userbuf_t) Totalsz() int { return ub.len }

// Uioread copies data from user memory into dst.
func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	return ub.tx(dst, false)
}

// Uiowrite copies data from src into user memory.
func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	return ub.tx(src, true)
}

// tx copies min(len(buf), ub.Remain()) bytes, one page at a time. If
// an error occurs mid-transfer, ub.off reflects exactly how much
// succeeded so the caller can retry or report a short count.
func (ub *Userbuf_t) tx(buf []uint8, write bool) (int, defs.Err_t) {
	ret := 0
	for len(buf) != 0 && ub.off != ub.len {
		if !res.Resadd_noblock(bounds.Bounds(bounds.B_USERBUF_T__TX)) {
			return ret, -defs.ENOHEAP
		}
		va := ub.userva + uintptr(ub.off)
		ubuf, err := ub.as.userdmap8(ub.owner, va, write)
		res.Resdel(bounds.Bounds(bounds.B_USERBUF_T__TX))
		if err != 0 {
			return ret, err
		}
		end := ub.off + len(ubuf)
		if end > ub.len {
			ubuf = ubuf[:ub.len-ub.off]
		}
		var c int
		if write {
			c = copy(ubuf, buf)
		} else {
			c = copy(buf, ubuf)
		}
		buf = buf[c:]
		ub.off += c
		ret += c
	}
	return ret, 0
}

type iove_t struct {
	uva uintptr
	sz  int
}

// Useriovec_t represents a sequence of user buffers described by an
// iovec array read out of user memory.
type Useriovec_t struct {
	iovs  []iove_t
	tsz   int
	as    *Vm_t
	owner mem.Owner
}

// Iov_init initializes the iovec array from niovs 16-byte (ptr, len)
// entries starting at iovarn in user memory.
func (iov *Useriovec_t) Iov_init(owner mem.Owner, as *Vm_t, iovarn uintptr, niovs int) defs.Err_t {
	if niovs > 10 {
		return -defs.EINVAL
	}
	iov.tsz = 0
	iov.iovs = make([]iove_t, niovs)
	iov.as = as
	iov.owner = owner

	for i := range iov.iovs {
		if !res.Resadd_noblock(bounds.Bounds(bounds.B_USERIOVEC_T_IOV_INIT)) {
			return -defs.ENOHEAP
		}
		elmsz := uintptr(16)
		va := iovarn + uintptr(i)*elmsz
		dstva, err := as.readUint(owner, va, 8)
		if err == 0 {
			var sz int
			sz, err = as.readUint(owner, va+8, 8)
			if err == 0 {
				iov.iovs[i].uva = uintptr(dstva)
				iov.iovs[i].sz = sz
				iov.tsz += sz
			}
		}
		res.Resdel(bounds.Bounds(bounds.B_USERIOVEC_T_IOV_INIT))
		if err != 0 {
			return err
		}
	}
	return 0
}

// Remain returns the number of bytes remaining across all iovecs.
func (iov *Useriovec_t) Remain() int {
	ret := 0
	for i := range iov.iovs {
		ret += iov.iovs[i].sz
	}
	return ret
}

// Totalsz returns the total number of bytes described by the iovecs.
func (iov *Useriovec_t) Totalsz() int { return iov.tsz }

func (iov *Useriovec_t) tx(buf []uint8, touser bool) (int, defs.Err_t) {
	did := 0
	for len(buf) > 0 && len(iov.iovs) > 0 {
		if !res.Resadd_noblock(bounds.Bounds(bounds.B_USERIOVEC_T__TX)) {
			return did, -defs.ENOHEAP
		}
		ciov := &iov.iovs[0]
		var ub Userbuf_t
		ub.Ub_init(iov.owner, iov.as, ciov.uva, ciov.sz)
		c, err := ub.tx(buf, touser)
		res.Resdel(bounds.Bounds(bounds.B_USERIOVEC_T__TX))
		ciov.uva += uintptr(c)
		ciov.sz -= c
		if ciov.sz == 0 {
			iov.iovs = iov.iovs[1:]
		}
		buf = buf[c:]
		did += c
		if err != 0 {
			return did, err
		}
	}
	return did, 0
}

// Uioread reads into dst from the set of user buffers.
func (iov *Useriovec_t) Uioread(dst []uint8) (int, defs.Err_t) {
	return iov.tx(dst, false)
}

// Uiowrite writes src into the set of user buffers.
func (iov *Useriovec_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	return iov.tx(src, true)
}

// Fakeubuf_t implements the same interface as Userbuf_t but operates
// on a kernel buffer, for when the kernel needs to treat internal
// memory like user memory (e.g. exec's argument staging).
type Fakeubuf_t struct {
	fbuf []uint8
	len  int
}

// Fake_init sets up the fake buffer with the provided slice.
func (fb *Fakeubuf_t) Fake_init(buf []uint8) {
	fb.fbuf = buf
	fb.len = len(buf)
}

// Remain returns the number of bytes left in the fake buffer.
func (fb *Fakeubuf_t) Remain() int { return len(fb.fbuf) }

// Totalsz returns the total length of the fake buffer.
func (fb *Fakeubuf_t) Totalsz() int { return fb.len }

func (fb *Fakeubuf_t) tx(buf []uint8, tofbuf bool) (int, defs.Err_t) {
	var c int
	if tofbuf {
		c = copy(fb.fbuf, buf)
	} else {
		c = copy(buf, fb.fbuf)
	}
	fb.fbuf = fb.fbuf[c:]
	return c, 0
}

// Uioread copies from the fake buffer into dst.
func (fb *Fakeubuf_t) Uioread(dst []uint8) (int, defs.Err_t) { return fb.tx(dst, false) }

// Uiowrite copies src into the fake buffer.
func (fb *Fakeubuf_t) Uiowrite(src []uint8) (int, defs.Err_t) { return fb.tx(src, true) }

// Ubpool provides reusable Userbuf_t structures to reduce allocations
// on the hot read/write syscall path.
var Ubpool = sync.Pool{New: func() interface{} { return new(Userbuf_t) }}

// readUint reads an n-byte (n <= 8) little-endian unsigned value from
// user memory at va, used by Iov_init to read the iovec array itself.
func (as *Vm_t) readUint(owner mem.Owner, va uintptr, n int) (int, defs.Err_t) {
	if n > 8 {
		panic(fmt.Sprintf("n too large: %d", n))
	}
	var ret int
	cnt := 0
	for cnt != n {
		src, err := as.userdmap8(owner, va+uintptr(cnt), false)
		if err != 0 {
			return 0, err
		}
		l := n - cnt
		if len(src) < l {
			l = len(src)
		}
		for i := 0; i < l; i++ {
			ret |= int(src[i]) << (8 * uint(cnt+i))
		}
		cnt += l
	}
	return ret, 0
}
