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

func runSessionStart(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	sess, err := client.startSession(userID, characterID, scenarioID)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	fmt.Println("Session started.")
	fmt.Printf("  Session ID: %s\n", sess.SessionID)
	fmt.Printf("  Character:  %s\n", sess.Character)
	fmt.Printf("  Scenario:   %s\n", sess.ScenarioID)
	fmt.Printf("\nChat with: integrity chat %s\n", sess.SessionID)
}

func runSessionEnd(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	if err := client.endSession(args[0]); err != nil {
		log.Fatalf("Failed to end session: %v", err)
	}
	fmt.Println("Session ended.")
}

func runSessionComplete(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	result, err := client.completeScenario(args[0])
	if err != nil {
		log.Fatalf("Failed to complete scenario: %v", err)
	}

	fmt.Printf("Scenario completed: +%d points\n", result.ScoreDelta)
	if result.ConsistencyBonus {
		fmt.Println("Consistency bonus earned for a clean run.")
	}
	fmt.Printf("Total: %d points (%s)\n", result.Points, result.Tier)
}
