package proc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWaitChildReturnsExitStatusAndMergesAccounting(t *testing.T) {
	k := NewKernel(false)
	var parentAccnt *Accnt_t
	var childTid int
	result := make(chan int, 1)

	k.Create("parent", 20, func(ctx context.Context) {
		parent := Self(ctx)
		parentAccnt = &parent.accnt
		_, h := k.CreateChild(parent, "child", 10, func(cctx context.Context) {
			Self(cctx).accnt.Tick()
			k.Exit(cctx, 42)
		})
		childTid = int(h.Tid)
		result <- k.WaitChild(ctx, h)
	})

	k.Yield(WithThread(context.Background(), k.idle))

	require.Equal(t, 42, <-result)
	require.NotZero(t, childTid)
	require.EqualValues(t, 1, parentAccnt.Snapshot())
}

func TestWaitChildOnAlreadyExitedChildReturnsCachedStatus(t *testing.T) {
	k := NewKernel(false)
	done := make(chan struct{})

	k.Create("parent", 20, func(ctx context.Context) {
		parent := Self(ctx)
		// Give the child a higher priority so it runs to completion
		// the moment the parent yields, before WaitChild is called.
		_, h := k.CreateChild(parent, "child", 40, func(cctx context.Context) {
			k.Exit(cctx, 7)
		})
		k.Yield(ctx)

		first := k.WaitChild(ctx, h)
		second := k.WaitChild(ctx, h)
		if first == 7 && second == 7 {
			close(done)
		}
	})

	k.Yield(WithThread(context.Background(), k.idle))
	<-done
}
