// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command integrity is the CLI for the integrity training service.
//
// It talks to a running orchestrator over HTTP:
//
//	integrity session start --user ana --character catalina --scenario procurement_bribery_01
//	integrity chat <session-id>
//	integrity state ana
//	integrity backends
//	integrity benchmark --prompt "hola" --prompt "adiós"
//	integrity health
//
// The orchestrator location comes from INTEGRITY_ORCHESTRATOR_URL or
// defaults to http://localhost:12230.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
