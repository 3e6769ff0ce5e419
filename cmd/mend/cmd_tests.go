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
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mendhq/mend/services/healing"
)

var (
	testsStatus string
	testsJSON   bool
)

var testsCmd = &cobra.Command{
	Use:   "tests",
	Short: "List tracked tests",
	Long: `List tracked tests.

Examples:
  mend tests
  mend tests --status BROKEN`,
	RunE: runTests,
}

func init() {
	testsCmd.Flags().StringVar(&testsStatus, "status", "",
		"Filter by status: GENERATED, PASSED, FAILED, BROKEN, HEALED")
	testsCmd.Flags().BoolVar(&testsJSON, "json", false,
		"Output as JSON for scripting")
}

func runTests(cmd *cobra.Command, args []string) error {
	ctx, cancel := clientContext()
	defer cancel()

	path := "/v1/healing/tests"
	if testsStatus != "" {
		path += "?status=" + url.QueryEscape(testsStatus)
	}

	var resp healing.ListTestsResponse
	if err := callAPI(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return err
	}
	if testsJSON {
		return outputJSON(resp)
	}
	if len(resp.Tests) == 0 {
		fmt.Println("No tests.")
		return nil
	}
	for _, test := range resp.Tests {
		fmt.Printf("%s  %-9s  %s (%s.%s)\n",
			test.ID, test.Status, test.Name, test.TargetClass, test.TargetMethod)
	}
	return nil
}
