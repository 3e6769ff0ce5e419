// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package healing

import (
	"github.com/mendhq/mend/services/healing/model"
)

// ServiceVersion is the healing service version.
const ServiceVersion = "0.1.0"

// ImpactRequest asks for change-impact analysis of one class.
type ImpactRequest struct {
	// ClassName is the production class both sources describe.
	ClassName string `json:"class_name" binding:"required"`

	// OldSource is the class source before the change.
	OldSource string `json:"old_source" binding:"required"`

	// NewSource is the class source after the change.
	NewSource string `json:"new_source" binding:"required"`
}

// ImpactResponse lists the tests the change broke.
type ImpactResponse struct {
	// ClassName echoes the analyzed class.
	ClassName string `json:"class_name"`

	// ChangedMethods is how many methods were removed or changed.
	ChangedMethods int `json:"changed_methods"`

	// Impacted are the tests transitioned to BROKEN.
	Impacted []model.TestCase `json:"impacted"`
}

// HealResponse is the outcome of one heal pipeline.
type HealResponse struct {
	Test model.TestCase `json:"test"`
}

// HealAllResponse is the best-effort outcome of a batch heal.
type HealAllResponse struct {
	// Results holds one entry per test that was BROKEN when the batch
	// started, in snapshot order.
	Results []model.TestCase `json:"results"`
}

// ExecutionRequest reports an externally observed test run.
type ExecutionRequest struct {
	Passed         bool   `json:"passed"`
	ErrorMessage   string `json:"error_message,omitempty"`
	StackTrace     string `json:"stack_trace,omitempty"`
	DurationMillis int64  `json:"duration_millis"`
}

// ListTestsResponse lists stored tests.
type ListTestsResponse struct {
	Tests []model.TestCase `json:"tests"`
}

// HistoryResponse wraps one test's execution history.
type HistoryResponse struct {
	History model.TestExecutionHistory `json:"history"`
}

// ListHistoriesResponse lists every stored history record.
type ListHistoriesResponse struct {
	Histories []model.TestExecutionHistory `json:"histories"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
