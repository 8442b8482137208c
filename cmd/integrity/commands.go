// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianIntegrity/pkg/logging"
)

// --- Global Command Variables ---
var (
	userID        string
	characterID   string
	scenarioID    string
	benchPrompts  []string
	benchBackends []string
	verbose       bool

	rootCmd = &cobra.Command{
		Use:   "integrity",
		Short: "A cli for the Aleutian integrity training service",
		Long: `Integrity drives ethics-training conversations against the
				orchestrator: start sessions, chat with scenario characters,
				inspect gamification state and backend health.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.LevelError
			if verbose {
				level = logging.LevelDebug
			}
			slog.SetDefault(logging.New(logging.Config{Level: level, Service: "cli"}).Slog())
		},
	}

	// --- Sessions ---
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Manage training sessions",
	}
	sessionStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start a training session for a user",
		Run:   runSessionStart, // Defined in cmd_session.go
	}
	sessionEndCmd = &cobra.Command{
		Use:   "end [session-id]",
		Short: "Cancel a session and abort its in-flight work",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionEnd, // Defined in cmd_session.go
	}
	sessionCompleteCmd = &cobra.Command{
		Use:   "complete [session-id]",
		Short: "Finish the session's scenario and collect completion points",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionComplete, // Defined in cmd_session.go
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat [session-id]",
		Short: "Hold an interactive conversation within a session",
		Args:  cobra.ExactArgs(1),
		Run:   runChatCommand, // Defined in cmd_chat.go
	}

	// --- Gamification ---
	stateCmd = &cobra.Command{
		Use:   "state [user-id]",
		Short: "Show a user's points, tier, and progress",
		Args:  cobra.ExactArgs(1),
		Run:   runStateCommand, // Defined in cmd_state.go
	}

	// --- Operations ---
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check whether the orchestrator is up",
		Run:   runHealthCommand, // Defined in cmd_status.go
	}
	backendsCmd = &cobra.Command{
		Use:   "backends",
		Short: "Show backend breaker states and quality profiles",
		Run:   runBackendsCommand, // Defined in cmd_status.go
	}
	benchmarkCmd = &cobra.Command{
		Use:   "benchmark",
		Short: "Fan a prompt set across backends and report the outcomes",
		Run:   runBenchmarkCommand, // Defined in cmd_benchmark.go
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	sessionStartCmd.Flags().StringVar(&userID, "user", "", "user identifier (required)")
	sessionStartCmd.Flags().StringVar(&characterID, "character", "catalina", "scenario character")
	sessionStartCmd.Flags().StringVar(&scenarioID, "scenario", "procurement_bribery_01", "training scenario")
	_ = sessionStartCmd.MarkFlagRequired("user")

	benchmarkCmd.Flags().StringArrayVar(&benchPrompts, "prompt", nil, "prompt to run (repeatable, required)")
	benchmarkCmd.Flags().StringArrayVar(&benchBackends, "backend", nil, "backend to include (repeatable, default all)")
	_ = benchmarkCmd.MarkFlagRequired("prompt")

	sessionCmd.AddCommand(sessionStartCmd, sessionEndCmd, sessionCompleteCmd)
	rootCmd.AddCommand(sessionCmd, chatCmd, stateCmd, healthCmd, backendsCmd, benchmarkCmd)
}
