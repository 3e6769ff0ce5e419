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

	"github.com/spf13/cobra"

	"github.com/mendhq/mend/services/healing"
	"github.com/mendhq/mend/services/healing/model"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history [test-id]",
	Short: "Show execution history and trend for tests",
	Long: `Show execution history and trend for tests.

With a test id, prints that test's full history including recent
executions and healing attempts. Without arguments, prints a one-line
summary per tracked test.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false,
		"Output as JSON for scripting")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := clientContext()
	defer cancel()

	if len(args) == 0 {
		var resp healing.ListHistoriesResponse
		if err := callAPI(ctx, http.MethodGet, "/v1/healing/history", nil, &resp); err != nil {
			return err
		}
		if historyJSON {
			return outputJSON(resp)
		}
		if len(resp.Histories) == 0 {
			fmt.Println("No execution history recorded.")
			return nil
		}
		for _, h := range resp.Histories {
			fmt.Printf("%s  %-12s  %d runs, %.0f%% pass  %s\n",
				h.TestID, h.Trend, h.TotalExecutions, h.PassRate*100, h.TestName)
		}
		return nil
	}

	var resp healing.HistoryResponse
	if err := callAPI(ctx, http.MethodGet, "/v1/healing/tests/"+args[0]+"/history", nil, &resp); err != nil {
		return err
	}
	if historyJSON {
		return outputJSON(resp)
	}
	printHistory(resp.History)
	return nil
}

func printHistory(h model.TestExecutionHistory) {
	fmt.Printf("Test: %s (%s)\n", h.TestName, h.TestID)
	fmt.Printf("Trend: %s\n", h.Trend)
	fmt.Printf("Executions: %d total, %d passed, %d failed (%.0f%% pass rate)\n",
		h.TotalExecutions, h.PassedExecutions, h.FailedExecutions, h.PassRate*100)
	fmt.Printf("Average execution time: %.1fms\n", h.AverageExecutionTimeMillis)
	if len(h.HealingAttempts) > 0 {
		fmt.Printf("Healing attempts: %d (%.0f%% successful)\n",
			len(h.HealingAttempts), h.HealingSuccessRate*100)
		for _, attempt := range h.HealingAttempts {
			outcome := "FAILURE"
			if attempt.Successful {
				outcome = "SUCCESS"
			}
			fmt.Printf("  [%s] %s  %s\n",
				outcome, attempt.Timestamp.Format("2006-01-02 15:04:05"), attempt.Description)
		}
	}
	if len(h.RecentExecutions) > 0 {
		fmt.Println("Recent executions:")
		for _, record := range h.RecentExecutions {
			status := "FAIL"
			if record.Passed {
				status = "PASS"
			}
			fmt.Printf("  %s  %s  %dms", status,
				record.Timestamp.Format("2006-01-02 15:04:05"), record.DurationMillis)
			if record.ErrorMessage != "" {
				fmt.Printf("  %s", record.ErrorMessage)
			}
			fmt.Println()
		}
	}
}
