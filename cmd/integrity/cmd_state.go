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

	"github.com/spf13/cobra"
)

func runStateCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	state, err := client.state(args[0])
	if err != nil {
		log.Fatalf("Failed to fetch state: %v", err)
	}

	fmt.Printf("User:   %s\n", state.UserID)
	fmt.Printf("Points: %d\n", state.Points)
	fmt.Printf("Tier:   %s\n", state.Tier.Name)
	fmt.Printf("Events: %d\n", state.EventCount)

	fmt.Println("\nTier ladder:")
	for _, tier := range state.Tiers {
		marker := "  "
		if tier.Name == state.Tier.Name {
			marker = "► "
		}
		fmt.Printf("%s%-24s %d+\n", marker, tier.Name, tier.Threshold)
	}
}
