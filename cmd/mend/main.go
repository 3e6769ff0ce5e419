// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command mend is the test healing engine CLI.
//
// It runs the healing API server and provides client commands for
// impact analysis, healing, and execution history against a running
// server.
//
// # Usage
//
//	# Start the server
//	mend serve
//
//	# Analyze a source change
//	mend impact --class Calculator --old old/Calculator.java --new src/Calculator.java
//
//	# Heal a broken test, or everything that is broken
//	mend heal <test-id>
//	mend heal --all
//
//	# Inspect execution history
//	mend history <test-id>
package main

import (
	"log"

	"github.com/mendhq/mend/cmd/mend/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if err := config.Load(); err != nil {
			log.Fatalf("Error loading configuration: %v", err)
		}
	}
}
