// Package res tracks a budget of kernel-heap-backed resource units
// (physical frames, swap slots, SPT bookkeeping nodes) so that a
// multi-step copy can reserve its worst case up front and fail
// cleanly with ENOHEAP instead of partway through, the way the
// teacher's own res package gates Vm_t's k2user/user2k inner loops.
package res

import "sync/atomic"

var budget int64 = 1 << 20

// SetBudget sets the total number of resource units available and
// resets outstanding reservations to zero. Tests call this to shrink
// the budget so ENOHEAP paths are reachable without an enormous
// allocation.
func SetBudget(n int64) {
	atomic.StoreInt64(&budget, n)
}

// Resadd_noblock attempts to reserve n resource units without
// blocking. It returns false, reserving nothing, if fewer than n
// units remain.
func Resadd_noblock(n int) bool {
	if n <= 0 {
		return true
	}
	for {
		cur := atomic.LoadInt64(&budget)
		if cur < int64(n) {
			return false
		}
		if atomic.CompareAndSwapInt64(&budget, cur, cur-int64(n)) {
			return true
		}
	}
}

// Resdel returns n previously reserved resource units to the budget.
func Resdel(n int) {
	if n <= 0 {
		return
	}
	atomic.AddInt64(&budget, int64(n))
}

// Avail reports the number of unreserved resource units remaining.
func Avail() int64 {
	return atomic.LoadInt64(&budget)
}
