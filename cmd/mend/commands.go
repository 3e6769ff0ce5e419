// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mend",
	Short: "Mend keeps generated tests alive as the code they target changes",
	Long: `Mend is a test healing engine.

It indexes Java sources, detects structural method changes, marks the
tests that target them as broken, diagnoses the breakage, and repairs
the tests through targeted patches or LLM regeneration with a
verification run.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(healCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(testsCmd)
}
