// Package bounds names, per call site, the worst-case number of
// kernel-heap-backed resource units (frames, swap slots, SPT entries)
// a single loop iteration might consume, so res can refuse a request
// up front rather than fail partway through a copy. This mirrors the
// teacher's own habit of tagging every resource-consuming call site
// with a named constant instead of a bare literal.
package bounds

// Bound names one call site's worst-case resource cost.
type Bound int

// Call-site tags. Names follow the teacher's Type_method convention:
// the type and method the call site lives in, followed by the
// specific code path within it when a method has more than one.
const (
	B_ASPACE_T_K2USER_INNER Bound = iota
	B_ASPACE_T_USER2K_INNER
	B_USERBUF_T__TX
	B_USERIOVEC_T_IOV_INIT
	B_USERIOVEC_T__TX
)

// cost is the number of resource units (one potential frame fault,
// plus bookkeeping) each tagged call site may consume per iteration.
var cost = map[Bound]int{
	B_ASPACE_T_K2USER_INNER:  1,
	B_ASPACE_T_USER2K_INNER:  1,
	B_USERBUF_T__TX:          1,
	B_USERIOVEC_T_IOV_INIT:   1,
	B_USERIOVEC_T__TX:        1,
}

// Bounds returns the resource cost tagged call site b may incur.
func Bounds(b Bound) int {
	return cost[b]
}
