package proc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
)

func TestReadyOrderHighestPriorityFirst(t *testing.T) {
	k := NewKernel(false)
	order := make(chan string, 3)
	k.Create("low", 10, func(ctx context.Context) { order <- "low" })
	k.Create("high", 50, func(ctx context.Context) { order <- "high" })
	k.Create("mid", 30, func(ctx context.Context) { order <- "mid" })

	// One Yield from idle dispatches the highest-priority thread; each
	// thread's own exit() pops and switches to the next ready thread in
	// turn, so the three sends below arrive in priority order without
	// further driving.
	idleCtx := WithThread(context.Background(), k.idle)
	k.Yield(idleCtx)

	require.Equal(t, "high", <-order)
	require.Equal(t, "mid", <-order)
	require.Equal(t, "low", <-order)
}

func TestSetPriorityResortsReadyQueueBeforeDispatch(t *testing.T) {
	k := NewKernel(false)
	k.Create("a", 10, func(ctx context.Context) { <-Self(ctx).run })
	tidB := k.Create("b", 20, func(ctx context.Context) { <-Self(ctx).run })

	k.mu.Lock()
	require.Equal(t, 2, len(k.ready))
	require.Equal(t, "b", k.ready[0].Name) // higher priority sorts first
	k.mu.Unlock()

	k.mu.Lock()
	b := k.threads[tidB]
	k.mu.Unlock()
	k.SetPriority(b, 5)

	k.mu.Lock()
	require.Equal(t, "a", k.ready[0].Name) // b demoted below a
	require.Equal(t, 5, b.effPriority)
	k.mu.Unlock()
}

func TestExitReleasesWaitersAndTid(t *testing.T) {
	k := NewKernel(false)
	tid := k.Create("short", 20, func(ctx context.Context) {
		k.Exit(ctx, 7)
	})
	k.Yield(WithThread(context.Background(), k.idle))
	k.Wait(tid)

	k.mu.Lock()
	_, ok := k.threads[tid]
	k.mu.Unlock()
	require.False(t, ok)
}

func TestForEachThreadVisitsInTidOrder(t *testing.T) {
	k := NewKernel(false)
	k.Create("a", 10, func(ctx context.Context) { <-Self(ctx).run })
	k.Create("b", 10, func(ctx context.Context) { <-Self(ctx).run })

	var seen []defs.TID
	k.ForEachThread(func(th *Thread) { seen = append(seen, th.Tid) })
	require.GreaterOrEqual(t, len(seen), 2)
	for i := 1; i < len(seen); i++ {
		require.Less(t, int(seen[i-1]), int(seen[i]))
	}
}

func TestCreateRejectsOutOfRangePriority(t *testing.T) {
	k := NewKernel(false)
	tid := k.Create("bad", defs.PriMax+1, func(context.Context) {})
	require.Equal(t, defs.TIDError, tid)
}
