// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func runChatCommand(cmd *cobra.Command, args []string) {
	sessionID := args[0]
	client := newAPIClient()

	fmt.Println("Interactive session. Type 'exit' to leave, 'complete' to finish the scenario.")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" {
			return
		}
		if line == "complete" {
			result, err := client.completeScenario(sessionID)
			if err != nil {
				log.Fatalf("Failed to complete scenario: %v", err)
			}
			fmt.Printf("\nScenario completed: +%d points, total %d (%s)\n",
				result.ScoreDelta, result.Points, result.Tier)
			return
		}

		result, err := client.sendMessage(sessionID, line)
		if err != nil {
			// Degraded service is retryable; keep the session alive.
			fmt.Printf("! %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n", result.Reply)
		if result.Escalated {
			fmt.Println("\n[Esta conversación ha sido escalada al auditor de cumplimiento.]")
		}
		if result.ScoreDelta > 0 {
			fmt.Printf("[+%d puntos — total %d, %s]\n", result.ScoreDelta, result.Points, result.Tier)
		}
		fmt.Println("---")
	}
}
