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

var (
	healAll  bool
	healJSON bool
)

var healCmd = &cobra.Command{
	Use:   "heal [test-id]",
	Short: "Heal a broken test, or every broken test",
	Long: `Heal a broken test, or every broken test.

Runs the full pipeline on the server: diagnose, patch or regenerate,
and verify with an execution run. The final status reflects the
verification outcome.

Examples:
  mend heal 6f1c9a2e-...
  mend heal --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHeal,
}

func init() {
	healCmd.Flags().BoolVar(&healAll, "all", false,
		"Heal every test currently marked broken")
	healCmd.Flags().BoolVar(&healJSON, "json", false,
		"Output as JSON for scripting")
}

func runHeal(cmd *cobra.Command, args []string) error {
	if healAll == (len(args) == 1) {
		return fmt.Errorf("provide exactly one of a test id or --all")
	}

	ctx, cancel := clientContext()
	defer cancel()

	if healAll {
		var resp healing.HealAllResponse
		if err := callAPI(ctx, http.MethodPost, "/v1/healing/heal-all", nil, &resp); err != nil {
			return err
		}
		if healJSON {
			return outputJSON(resp)
		}
		if len(resp.Results) == 0 {
			fmt.Println("No broken tests.")
			return nil
		}
		for _, test := range resp.Results {
			printHealResult(test)
		}
		return nil
	}

	var resp healing.HealResponse
	if err := callAPI(ctx, http.MethodPost, "/v1/healing/tests/"+args[0]+"/heal", nil, &resp); err != nil {
		return err
	}
	if healJSON {
		return outputJSON(resp)
	}
	printHealResult(resp.Test)
	return nil
}

func printHealResult(test model.TestCase) {
	fmt.Printf("%s  %s  %s\n", test.ID, test.Status, test.Name)
}
