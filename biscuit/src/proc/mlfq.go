package proc

import (
	"context"
	"sort"

	"defs"
	"fixedpoint"
	"klog"
)

const timerFreq = 100 // ticks per simulated second, matching PintOS's TIMER_FREQ

// SleepUntil blocks the calling thread until the kernel's tick counter
// reaches tick, per spec.md's sleep_until. The idle thread never
// sleeps (there would be nothing left to run it).
func (k *Kernel) SleepUntil(ctx context.Context, tick int64) {
	t := Self(ctx)
	if t == k.idle {
		return
	}
	k.mu.Lock()
	t.wakeupTick = tick
	t.status = StatusBlocked
	idx := sort.Search(len(k.sleeping), func(i int) bool {
		return k.sleeping[i].wakeupTick > tick
	})
	k.sleeping = append(k.sleeping, nil)
	copy(k.sleeping[idx+1:], k.sleeping[idx:])
	k.sleeping[idx] = t
	next := k.popReady()
	k.switchTo(next)
	k.mu.Unlock()
	<-t.run
}

// wakeSleepers moves every thread whose wakeup_tick has arrived from
// the sleep set to the ready set, in ascending wakeup_tick order
// (spec.md's ordering guarantee iv). Caller holds k.mu.
func (k *Kernel) wakeSleepers(now int64) {
	i := 0
	for i < len(k.sleeping) && k.sleeping[i].wakeupTick <= now {
		i++
	}
	if i == 0 {
		return
	}
	woken := k.sleeping[:i]
	k.sleeping = k.sleeping[i:]
	for _, t := range woken {
		k.insertReady(t)
	}
}

// Tick advances the kernel's clock by one timer tick, grounded on
// spec.md §4.3: it runs sleep-queue wakeups, the running thread's
// preemption-slice countdown, and (when MLFQ is enabled) the
// recent_cpu/priority/load_avg recompute schedule. It returns true if
// the caller (normally the ports.Timer-driven loop, outside any
// thread's own goroutine) should request a yield on return.
func (k *Kernel) Tick() bool {
	k.mu.Lock()
	k.ticks++
	now := k.ticks
	k.wakeSleepers(now)

	running := k.current
	needYield := false
	if running != k.idle {
		running.accnt.Tick()
		if k.mlfq {
			running.recentCPU = running.recentCPU.AddInt(1)
		}
		running.sliceTicks++
		if running.sliceTicks >= defs.TimeSlice {
			needYield = true
		}
	}

	if k.mlfq {
		if now%4 == 0 {
			k.recomputeAllPriorities()
		}
		if now%timerFreq == 0 {
			k.recomputeLoadAvgAndRecentCPU()
		}
	}

	if len(k.ready) > 0 && k.ready[0].effPriority > running.effPriority {
		needYield = true
	}
	k.mu.Unlock()
	return needYield
}

// recomputeAllPriorities applies spec.md's
// priority = PRI_MAX - nearest_int(recent_cpu/4) - nice*2
// to every non-idle thread and re-sorts the ready queue. Caller holds
// k.mu.
func (k *Kernel) recomputeAllPriorities() {
	for _, t := range k.threads {
		if t == k.idle {
			continue
		}
		p := defs.PriMax - t.recentCPU.DivInt(4).ToIntNearest() - t.nice*2
		if p < defs.PriMin {
			p = defs.PriMin
		}
		if p > defs.PriMax {
			p = defs.PriMax
		}
		t.effPriority = effectiveFor(t, p)
		t.basePriority = p
	}
	k.resort()
}

// recomputeLoadAvgAndRecentCPU applies spec.md's once-per-second
// formulas. Caller holds k.mu.
func (k *Kernel) recomputeLoadAvgAndRecentCPU() {
	readyThreads := len(k.ready)
	if k.current != k.idle {
		readyThreads++
	}
	fiftyNineSixtieths := fixedpoint.FromInt(59).Div(fixedpoint.FromInt(60))
	oneSixtieth := fixedpoint.FromInt(1).Div(fixedpoint.FromInt(60))
	k.loadAvg = fiftyNineSixtieths.Mul(k.loadAvg).Add(oneSixtieth.MulInt(readyThreads))
	klog.Debugf("proc: tick %d load_avg recomputed to x100=%d (ready=%d)", k.ticks, k.loadAvg.MulInt(100).ToIntNearest(), readyThreads)

	twiceLoad := k.loadAvg.MulInt(2)
	coeff := twiceLoad.Div(twiceLoad.AddInt(1))
	for _, t := range k.threads {
		if t == k.idle {
			continue
		}
		t.recentCPU = coeff.Mul(t.recentCPU).AddInt(t.nice)
	}
}

// LoadAvgX100 returns 100*load_avg rounded to nearest, as the
// teacher's own get_load_avg_x100 surfaces it to user space without
// exposing fixed-point internals.
func (k *Kernel) LoadAvgX100() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.loadAvg.MulInt(100).ToIntNearest()
}

// RecentCPUX100 returns 100*t.recent_cpu rounded to nearest.
func (k *Kernel) RecentCPUX100(t *Thread) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return t.recentCPU.MulInt(100).ToIntNearest()
}

// SetNice sets t's nice value and immediately recomputes its priority
// so get_priority reflects it without waiting for the next tick.
func (k *Kernel) SetNice(t *Thread, nice int) {
	if nice < defs.NiceMin {
		nice = defs.NiceMin
	}
	if nice > defs.NiceMax {
		nice = defs.NiceMax
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	t.nice = nice
	if k.mlfq {
		p := defs.PriMax - t.recentCPU.DivInt(4).ToIntNearest() - t.nice*2
		if p < defs.PriMin {
			p = defs.PriMin
		}
		if p > defs.PriMax {
			p = defs.PriMax
		}
		t.effPriority = effectiveFor(t, p)
		t.basePriority = p
	}
	k.resort()
}

// GetNice returns t's nice value.
func (k *Kernel) GetNice(t *Thread) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return t.nice
}
