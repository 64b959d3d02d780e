package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"proc"
)

func newPsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "build a small demo kernel and dump its thread table",
		RunE: func(cmd *cobra.Command, args []string) error {
			k := proc.NewKernel(cfg.GetBool("mlfqs"))
			hold := make(chan struct{})
			lock := proc.NewLock(k)

			holder := k.Create("holder", 20, func(ctx context.Context) {
				lock.Acquire(ctx)
				<-hold
				lock.Release(ctx)
			})
			k.Create("waiter", 30, func(ctx context.Context) {
				lock.Acquire(ctx)
				lock.Release(ctx)
			})

			idle := k.Current()
			k.Yield(proc.WithThread(context.Background(), idle))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "TID\tNAME\tSTATUS\tPRIO")
			k.ForEachThread(func(t *proc.Thread) {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", t.Tid, t.Name, t.Status(), t.EffectivePriority())
			})
			w.Flush()

			close(hold)
			k.Wait(holder) // let the holder exit cleanly before the process ends
			return nil
		},
	}
}
