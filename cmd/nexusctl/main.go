// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianNexus/pkg/logging"
)

var (
	serverURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "nexusctl",
	Short: "CLI for the Aleutian Nexus semantic network service",
	Long: `nexusctl queries a running nexus service.

Examples:
  nexusctl network idea 42 --depth 2
  nexusctl network issue 1337 --depth 3 --summaries --json`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	defaultURL := os.Getenv("NEXUS_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8090"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "nexus service URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cobra.OnInitialize(func() {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger, err := logging.New(logging.Config{Level: level, Service: "nexusctl"})
		if err != nil {
			log.Fatalf("could not set up logging: %v", err)
		}
		slog.SetDefault(logger.Logger)
	})

	log.SetFlags(0)
}
