// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package healing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mendhq/mend/services/healing/model"
	"github.com/mendhq/mend/services/healing/orchestrator"
	"github.com/mendhq/mend/services/healing/repo"
)

// Handlers contains the HTTP handlers for the healing service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleImpact handles POST /v1/healing/impact.
//
// Request:
//
//	ImpactRequest
//
// Response:
//
//	200 OK: ImpactResponse
//	400 Bad Request: Validation or extraction error
//	500 Internal Server Error: Repository error
func (h *Handlers) HandleImpact(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleImpact")

	var req ImpactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	impacted, changed, err := h.svc.AnalyzeImpactSources(c.Request.Context(),
		req.ClassName, []byte(req.OldSource), []byte(req.NewSource))
	if err != nil {
		logger.Error("Impact analysis failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "IMPACT_FAILED",
		})
		return
	}

	logger.Info("Impact analysis completed",
		"class_name", req.ClassName,
		"changed_methods", changed,
		"impacted", len(impacted))
	c.JSON(http.StatusOK, ImpactResponse{
		ClassName:      req.ClassName,
		ChangedMethods: changed,
		Impacted:       impacted,
	})
}

// HandleHealTest handles POST /v1/healing/tests/:id/heal.
//
// Response:
//
//	200 OK: HealResponse (final status PASSED or BROKEN, or the test
//	unchanged when it was not healable)
//	404 Not Found: Unknown test id
//	500 Internal Server Error: Repository error
func (h *Handlers) HandleHealTest(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleHealTest")
	testID := c.Param("id")

	test, err := h.svc.HealTest(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrTestNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "Test not found",
				Code:  "TEST_NOT_FOUND",
			})
			return
		}
		logger.Error("Heal failed", "test_id", testID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "HEAL_FAILED",
		})
		return
	}

	logger.Info("Heal completed", "test_id", testID, "status", test.Status)
	c.JSON(http.StatusOK, HealResponse{Test: *test})
}

// HandleHealAll handles POST /v1/healing/heal-all.
//
// Response:
//
//	200 OK: HealAllResponse (best effort, order preserving)
//	500 Internal Server Error: Repository error listing broken tests
func (h *Handlers) HandleHealAll(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleHealAll")

	results, err := h.svc.HealAllBrokenTests(c.Request.Context())
	if err != nil {
		logger.Error("Batch heal failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "HEAL_ALL_FAILED",
		})
		return
	}

	logger.Info("Batch heal completed", "tests", len(results))
	c.JSON(http.StatusOK, HealAllResponse{Results: results})
}

// HandleGetTest handles GET /v1/healing/tests/:id.
func (h *Handlers) HandleGetTest(c *gin.Context) {
	testID := c.Param("id")

	test, err := h.svc.FindTest(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "Test not found",
				Code:  "TEST_NOT_FOUND",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LOOKUP_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, test)
}

// HandleListTests handles GET /v1/healing/tests.
//
// The optional "status" query parameter filters by lifecycle state and
// the optional "class" parameter filters by target class.
func (h *Handlers) HandleListTests(c *gin.Context) {
	if className := c.Query("class"); className != "" {
		tests, err := h.svc.ListTestsByClass(c.Request.Context(), className)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: err.Error(),
				Code:  "LOOKUP_FAILED",
			})
			return
		}
		c.JSON(http.StatusOK, ListTestsResponse{Tests: tests})
		return
	}

	status := model.TestStatus(c.Query("status"))
	tests, err := h.svc.ListTests(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_STATUS",
		})
		return
	}
	c.JSON(http.StatusOK, ListTestsResponse{Tests: tests})
}

// HandleSaveTest handles POST /v1/healing/tests.
//
// Creates or replaces a test case. An empty id is assigned one.
func (h *Handlers) HandleSaveTest(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSaveTest")

	var test model.TestCase
	if err := c.ShouldBindJSON(&test); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	if test.Status == "" {
		test.Status = model.StatusGenerated
	}
	if !test.Status.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Unknown status " + string(test.Status),
			Code:  "INVALID_STATUS",
		})
		return
	}

	if err := h.svc.SaveTest(c.Request.Context(), &test); err != nil {
		logger.Error("Save failed", "test_id", test.ID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "SAVE_FAILED",
		})
		return
	}
	c.JSON(http.StatusCreated, test)
}

// HandleRecordExecution handles POST /v1/healing/tests/:id/executions.
//
// Reports an externally observed run of a test. Advances GENERATED
// tests to PASSED or FAILED and appends to the execution history.
func (h *Handlers) HandleRecordExecution(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRecordExecution")
	testID := c.Param("id")

	var req ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h2, err := h.svc.RecordExecution(c.Request.Context(), testID, model.ExecutionRecord{
		Passed:         req.Passed,
		ErrorMessage:   req.ErrorMessage,
		StackTrace:     req.StackTrace,
		DurationMillis: req.DurationMillis,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrTestNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "Test not found",
				Code:  "TEST_NOT_FOUND",
			})
			return
		}
		logger.Error("Record execution failed", "test_id", testID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "RECORD_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{History: *h2})
}

// HandleGetHistory handles GET /v1/healing/tests/:id/history.
func (h *Handlers) HandleGetHistory(c *gin.Context) {
	testID := c.Param("id")

	hist, exists, err := h.svc.History(c.Request.Context(), testID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LOOKUP_FAILED",
		})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "No history recorded for test",
			Code:  "HISTORY_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{History: *hist})
}

// HandleListHistories handles GET /v1/healing/history.
func (h *Handlers) HandleListHistories(c *gin.Context) {
	histories, err := h.svc.ListHistories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LOOKUP_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, ListHistoriesResponse{Histories: histories})
}

// HandleHealth handles GET /v1/healing/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: ServiceVersion})
}

// HandleReady handles GET /v1/healing/ready.
//
// Readiness requires reachable storage; liveness does not.
func (h *Handlers) HandleReady(c *gin.Context) {
	if err := h.svc.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: err.Error(),
			Code:  "STORAGE_UNAVAILABLE",
		})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ready", Version: ServiceVersion})
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
