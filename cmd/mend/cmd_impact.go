// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/mendhq/mend/services/healing"
)

var (
	impactClass string
	impactOld   string
	impactNew   string
	impactJSON  bool
)

var impactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Analyze the impact of a Java source change",
	Long: `Analyze the impact of a Java source change.

Compares the old and new versions of a class, reports the methods
whose structure changed, and marks the tests targeting those methods
as broken on the server.

Examples:
  mend impact --class Calculator --old /tmp/Calculator.java.orig --new src/Calculator.java
  mend impact --class Calculator --old old.java --new new.java --json`,
	RunE: runImpact,
}

func init() {
	impactCmd.Flags().StringVar(&impactClass, "class", "",
		"Simple name of the changed class (required)")
	impactCmd.Flags().StringVar(&impactOld, "old", "",
		"Path to the pre-change source file (required)")
	impactCmd.Flags().StringVar(&impactNew, "new", "",
		"Path to the post-change source file (required)")
	impactCmd.Flags().BoolVar(&impactJSON, "json", false,
		"Output as JSON for scripting")
	impactCmd.MarkFlagRequired("class")
	impactCmd.MarkFlagRequired("old")
	impactCmd.MarkFlagRequired("new")
}

func runImpact(cmd *cobra.Command, args []string) error {
	oldSource, err := os.ReadFile(impactOld)
	if err != nil {
		return fmt.Errorf("failed to read the old source: %w", err)
	}
	newSource, err := os.ReadFile(impactNew)
	if err != nil {
		return fmt.Errorf("failed to read the new source: %w", err)
	}

	ctx, cancel := clientContext()
	defer cancel()

	var resp healing.ImpactResponse
	err = callAPI(ctx, http.MethodPost, "/v1/healing/impact", healing.ImpactRequest{
		ClassName: impactClass,
		OldSource: string(oldSource),
		NewSource: string(newSource),
	}, &resp)
	if err != nil {
		return err
	}

	if impactJSON {
		return outputJSON(resp)
	}

	fmt.Printf("Class: %s\n", resp.ClassName)
	fmt.Printf("Changed methods: %d\n", resp.ChangedMethods)
	fmt.Printf("Tests marked broken: %d\n", len(resp.Impacted))
	for _, test := range resp.Impacted {
		fmt.Printf("  %s  %s (%s.%s)\n", test.ID, test.Name, test.TargetClass, test.TargetMethod)
	}
	return nil
}
