package vm

import (
	"defs"
	"ports"
	"util"
)

// UserKernelSplit is the lowest kernel-only virtual address; any
// address at or above it is never valid for a user-supplied pointer.
const UserKernelSplit = uintptr(1) << 47

// ValidateUserRead checks that every byte of [p, p+n) lies strictly
// below the user/kernel split and is either already mapped or
// loadable via as's supplemental page table, per spec.md's
// validate_user_read. It never faults the page in itself; a syscall
// handler calls this before dereferencing, then lets the normal page
// fault path bring pages in.
func (as *Vm_t) ValidateUserRead(p uintptr, n int) bool {
	return as.validate(p, n)
}

// ValidateUserWrite checks the same range as ValidateUserRead, and
// additionally requires every covered entry be writable.
func (as *Vm_t) ValidateUserWrite(p uintptr, n int) bool {
	if !as.validate(p, n) {
		return false
	}
	first := ports.VPage(util.Rounddown(int(p), defs.PageSize))
	last := ports.VPage(util.Rounddown(int(p)+n-1, defs.PageSize))
	for vp := first; vp <= last; vp += defs.PageSize {
		e, ok := as.SPT.Lookup(vp)
		if ok && !e.Writable {
			return false
		}
	}
	return true
}

func (as *Vm_t) validate(p uintptr, n int) bool {
	if n <= 0 {
		return true
	}
	end := p + uintptr(n)
	if end <= p || end > UserKernelSplit {
		return false
	}
	first := ports.VPage(util.Rounddown(int(p), defs.PageSize))
	last := ports.VPage(util.Rounddown(int(p)+n-1, defs.PageSize))
	for vp := first; vp <= last; vp += defs.PageSize {
		if _, resident := as.pt.Lookup(vp); resident {
			continue
		}
		if _, ok := as.SPT.Lookup(vp); ok {
			continue
		}
		if as.SPT.canGrowStack(vp, 0) {
			continue
		}
		return false
	}
	return true
}
