// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package execute submits candidate tests to the sandboxed execution
// runner and reports the outcome.
package execute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mendhq/mend/services/healing/model"
)

// ExecutionResult is the outcome of running one test in the sandbox.
type ExecutionResult struct {
	TestID         string `json:"test_id"`
	Passed         bool   `json:"passed"`
	ErrorMessage   string `json:"error_message,omitempty"`
	StackTrace     string `json:"stack_trace,omitempty"`
	DurationMillis int64  `json:"duration_millis"`
}

// Runner executes a candidate test.
type Runner interface {
	Execute(ctx context.Context, test *model.TestCase) (ExecutionResult, error)
}

// executeRequest is the wire form sent to the runner service.
type executeRequest struct {
	TestID      string `json:"test_id"`
	PackageName string `json:"package_name"`
	ClassName   string `json:"class_name"`
	SourceCode  string `json:"source_code"`
}

// HTTPRunner talks to a remote execution-runner service.
//
// # Thread Safety
//
// Safe for concurrent use.
type HTTPRunner struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRunner creates a runner client for the given base URL.
// A timeout <= 0 defaults to 60 seconds.
func NewHTTPRunner(baseURL string, timeout time.Duration) (*HTTPRunner, error) {
	if baseURL == "" {
		return nil, errors.New("runner base URL is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPRunner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Execute posts the test to the runner's /execute endpoint.
func (r *HTTPRunner) Execute(ctx context.Context, test *model.TestCase) (ExecutionResult, error) {
	body, err := json.Marshal(executeRequest{
		TestID:      test.ID,
		PackageName: test.PackageName,
		ClassName:   test.ClassName,
		SourceCode:  test.SourceCode,
	})
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("build execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("runner call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ExecutionResult{}, fmt.Errorf("runner returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var result ExecutionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ExecutionResult{}, fmt.Errorf("decode runner response: %w", err)
	}
	if result.TestID == "" {
		result.TestID = test.ID
	}
	return result, nil
}
