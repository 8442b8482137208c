// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orchestrator starts the integrity training HTTP server.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12230)
//   - INTEGRITY_DATA_DIR: ledger storage directory (default: ./data)
//   - INTEGRITY_LOG_LEVEL: minimum log level (debug/info/warn/error, default: info)
//   - INTEGRITY_LOG_DIR: directory for JSON log files (optional)
//   - ROUTING_POLICY_PATH: routing policy YAML, hot-reloaded on change (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: aleutian-otel-collector:4317)
//   - OPENAI_API_KEY, MOONSHOT_API_KEY, QWEN_BASE_URL: backend credentials;
//     backends with missing configuration are skipped
//   - INFLUXDB_URL, INFLUXDB_TOKEN: benchmark result storage (optional)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/AleutianIntegrity/pkg/logging"
	"github.com/AleutianAI/AleutianIntegrity/services/orchestrator"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("INTEGRITY_LOG_LEVEL")),
		LogDir:  os.Getenv("INTEGRITY_LOG_DIR"),
		Service: "orchestrator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := orchestrator.Config{
		Port:          getEnvInt("ORCHESTRATOR_PORT", 12230),
		DataDir:       getEnvString("INTEGRITY_DATA_DIR", "./data"),
		PolicyPath:    os.Getenv("ROUTING_POLICY_PATH"),
		OTelEndpoint:  getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
		InfluxEnabled: os.Getenv("INFLUXDB_TOKEN") != "",
	}

	slog.Info("Starting integrity orchestrator",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"policy_path", cfg.PolicyPath,
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
