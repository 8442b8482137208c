// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianIntegrity/services/benchmark"
)

func runBenchmarkCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	fmt.Printf("Running %d prompt(s) across backends, this can take a while...\n", len(benchPrompts))

	var report benchmark.Report
	err := client.do(http.MethodPost, "/v1/benchmarks", map[string]any{
		"prompts":  benchPrompts,
		"backends": benchBackends,
	}, &report)
	if err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}

	fmt.Printf("\nRun %s finished in %s (%d results)\n\n",
		report.RunID, report.Duration, len(report.Results))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tATTEMPTS\tFAILURES\tAVG LATENCY\tTOTAL COST USD")
	for _, s := range report.Summaries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0fms\t%.4f\n",
			s.Backend, s.Attempts, s.Failures, s.AvgLatencyMs, s.TotalCostUSD)
	}
	_ = w.Flush()

	failures := 0
	for _, r := range report.Results {
		if !r.Success {
			failures++
		}
	}
	if failures > 0 {
		fmt.Printf("\n%d pair(s) failed:\n", failures)
		for _, r := range report.Results {
			if !r.Success {
				fmt.Printf("  [%s] %q: %s\n", r.Backend, truncate(r.Prompt, 40), r.Reason)
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
