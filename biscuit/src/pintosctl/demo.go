package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"defs"
	"klog"
	"proc"
)

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "run the priority-donation and MLFQ scripted scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _ := errgroup.WithContext(cmd.Context())
			g.Go(runPriorityDemo)
			g.Go(runDonationDemo)
			g.Go(runWaitDemo)
			g.Go(func() error { return runMlfqDemo(cfg.GetInt("nice")) })
			return g.Wait()
		},
	}
	return cmd
}

// runPriorityDemo is spec.md §4.2 scenario S1: a high-priority thread
// created after a low-priority one still runs first, because Create
// inserts into the ready queue in priority order rather than FIFO.
func runPriorityDemo() error {
	k := proc.NewKernel(false)
	order := make(chan string, 2)
	k.Create("low", 20, func(ctx context.Context) { order <- "low" })
	k.Create("high", 40, func(ctx context.Context) { order <- "high" })

	idle := k.Current()
	k.Yield(proc.WithThread(context.Background(), idle))

	first, second := <-order, <-order
	klog.Debugf("demo: priority preemption ran %s before %s", first, second)
	if first != "high" {
		return fmt.Errorf("demo: priority preemption: expected high first, got %s", first)
	}
	fmt.Printf("priority:  %s ran before %s\n", first, second)
	return nil
}

// runDonationDemo is spec.md §4.2 scenario S2: a low-priority thread
// holding a lock has its effective priority raised to match a blocked
// higher-priority waiter, and the donation is withdrawn on release.
func runDonationDemo() error {
	k := proc.NewKernel(false)
	lock := proc.NewLock(k)
	acquired := make(chan struct{})
	observed := make(chan int, 1)

	k.Create("low", 10, func(ctx context.Context) {
		lock.Acquire(ctx)
		close(acquired)
		k.Create("high", 40, func(hctx context.Context) {
			lock.Acquire(hctx)
			lock.Release(hctx)
		})
		k.Yield(ctx) // let high block on the lock and donate
		observed <- proc.Self(ctx).EffectivePriority()
		lock.Release(ctx)
	})

	idle := k.Current()
	k.Yield(proc.WithThread(context.Background(), idle))
	<-acquired

	donated := <-observed
	klog.Debugf("demo: low's effective priority rose to %d while holding the contested lock", donated)
	if donated != 40 {
		return fmt.Errorf("demo: donation: expected effective priority 40, got %d", donated)
	}
	fmt.Printf("donation:  low's priority rose to %d while high waited on its lock\n", donated)
	return nil
}

// runWaitDemo exercises the recovered parent/child wait bookkeeping
// (SPEC_FULL.md §9): a parent spawns a child via CreateChild, blocks
// in WaitChild until it exits, and observes both the exit status and
// the child's CPU ticks folded into its own accounting.
func runWaitDemo() error {
	k := proc.NewKernel(false)
	result := make(chan int, 1)

	k.Create("parent", 20, func(ctx context.Context) {
		parent := proc.Self(ctx)
		_, h := k.CreateChild(parent, "child", 10, func(cctx context.Context) {
			k.Exit(cctx, 5)
		})
		result <- k.WaitChild(ctx, h)
	})

	idle := k.Current()
	k.Yield(proc.WithThread(context.Background(), idle))

	status := <-result
	klog.Debugf("demo: wait: child exited with status %d", status)
	if status != 5 {
		return fmt.Errorf("demo: wait: expected exit status 5, got %d", status)
	}
	fmt.Printf("wait:      parent observed child exit status %d\n", status)
	return nil
}

// runMlfqDemo is spec.md §4.3: a thread burning ticks accrues
// recent_cpu, which the once-a-second recompute decays through
// load_avg, matching scenario S5's shape without needing real wall
// time to pass.
func runMlfqDemo(nice int) error {
	k := proc.NewKernel(true)
	const burstTicks = 250
	done := make(chan struct{})

	k.Create("cpuhog", defs.PriMax/2, func(ctx context.Context) {
		self := proc.Self(ctx)
		k.SetNice(self, nice)
		for i := 0; i < burstTicks; i++ {
			k.Tick()
			if i%100 == 0 {
				klog.Debugf("demo: mlfq tick %d recent_cpu_x100=%d load_avg_x100=%d", i, k.RecentCPUX100(self), k.LoadAvgX100())
			}
		}
		close(done)
	})

	idle := k.Current()
	k.Yield(proc.WithThread(context.Background(), idle))
	<-done
	fmt.Printf("mlfq:      after %d ticks load_avg_x100=%d\n", burstTicks, k.LoadAvgX100())
	return nil
}
