package main

import (
	"bytes"
	"fmt"
	"runtime/pprof"
	"sort"

	"github.com/google/pprof/profile"
	"github.com/spf13/cobra"

	"klog"
)

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "CPU-profile a run of the MLFQ demo and print the hottest functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var buf bytes.Buffer
			if err := pprof.StartCPUProfile(&buf); err != nil {
				return fmt.Errorf("pintosctl: starting cpu profile: %w", err)
			}
			if err := runMlfqDemo(cfg.GetInt("nice")); err != nil {
				pprof.StopCPUProfile()
				return err
			}
			pprof.StopCPUProfile()

			prof, err := profile.Parse(&buf)
			if err != nil {
				return fmt.Errorf("pintosctl: parsing cpu profile: %w", err)
			}
			printTopSamples(cmd.OutOrStdout(), prof)
			return nil
		},
	}
}

// printTopSamples prints up to the ten functions with the highest
// cumulative sample count, the minimal read google/pprof/profile.Profile
// supports without pulling in its full report/graph machinery.
func printTopSamples(w interface{ Write([]byte) (int, error) }, prof *profile.Profile) {
	totals := make(map[string]int64)
	for _, s := range prof.Sample {
		for _, loc := range s.Location {
			for _, line := range loc.Line {
				if line.Function == nil {
					continue
				}
				var v int64
				if len(s.Value) > 0 {
					v = s.Value[0]
				}
				totals[line.Function.Name] += v
			}
		}
	}
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return totals[names[i]] > totals[names[j]] })

	klog.Debugf("pintosctl: profile captured %d samples across %d functions", len(prof.Sample), len(names))
	fmt.Fprintf(w, "%-8s  %s\n", "SAMPLES", "FUNCTION")
	for i, name := range names {
		if i >= 10 {
			break
		}
		fmt.Fprintf(w, "%-8d  %s\n", totals[name], name)
	}
}
