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
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func runHealthCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	if err := client.health(); err != nil {
		log.Fatalf("Orchestrator is DOWN: %v", err)
	}
	fmt.Printf("Orchestrator is UP at %s\n", client.baseURL)
}

func runBackendsCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	resp, err := client.backends()
	if err != nil {
		log.Fatalf("Failed to fetch backend status: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tBREAKER\tAVAILABLE\tQUALITY\tAVG LATENCY\tCALLS\tFAILURES\tCOST USD")
	for _, b := range resp.Backends {
		fmt.Fprintf(w, "%s\t%s\t%t\t%.2f\t%.0fms\t%d\t%d\t%.4f\n",
			b.Backend, b.BreakerState, b.Available, b.QualityScore,
			b.AvgLatencyMs, b.TotalCalls, b.TotalFailures, b.TotalCostUSD)
	}
	_ = w.Flush()
}
