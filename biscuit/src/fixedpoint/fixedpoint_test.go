package fixedpoint

import "testing"

func TestFromIntRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, -1, 63, -20, 1000} {
		got := FromInt(n).ToIntTrunc()
		if got != n {
			t.Fatalf("FromInt(%d).ToIntTrunc() = %d", n, got)
		}
	}
}

func TestToIntNearestRounding(t *testing.T) {
	// 59/60 in fixed point, nearest-rounded, should be 1 not 0.
	f59 := FromInt(59).DivInt(60)
	if got := f59.ToIntNearest(); got != 1 {
		t.Fatalf("59/60 rounded = %d, want 1", got)
	}
	// Negative ties round away from zero.
	neg := FromInt(-1).DivInt(2) // -0.5
	if got := neg.ToIntNearest(); got != -1 {
		t.Fatalf("-0.5 rounded = %d, want -1", got)
	}
}

func TestMlfqPriorityFormula(t *testing.T) {
	// S5: nice=0, recent_cpu=0 -> priority 63.
	priority := func(priMax, nice int, recentCPU Fixed) int {
		p := priMax - recentCPU.DivInt(4).ToIntNearest() - nice*2
		if p < 0 {
			p = 0
		}
		if p > priMax {
			p = priMax
		}
		return p
	}
	if got := priority(63, 0, FromInt(0)); got != 63 {
		t.Fatalf("priority = %d, want 63", got)
	}
	// nice=5, recent_cpu=20 -> 63 - round(20/4) - 10 = 48.
	if got := priority(63, 5, FromInt(20)); got != 48 {
		t.Fatalf("priority = %d, want 48", got)
	}
}

func TestMulDivIntermediatePrecision(t *testing.T) {
	// Regression for using a 64-bit intermediate: large load averages
	// must not overflow when multiplied by recent_cpu before dividing.
	loadAvg := FromInt(1000)
	recentCPU := FromInt(500)
	got := loadAvg.MulInt(2).Div(loadAvg.MulInt(2).AddInt(1)).Mul(recentCPU)
	if got < 0 {
		t.Fatalf("unexpected overflow sign: %d", got)
	}
}
