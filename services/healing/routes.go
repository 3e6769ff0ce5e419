// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package healing

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the healing endpoints on the given group.
//
// Usage:
//
//	v1 := router.Group("/v1")
//	healing.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	h := rg.Group("/healing")
	{
		// Change impact
		h.POST("/impact", handlers.HandleImpact)

		// Heal pipeline
		h.POST("/tests/:id/heal", handlers.HandleHealTest)
		h.POST("/heal-all", handlers.HandleHealAll)

		// Test storage
		h.GET("/tests", handlers.HandleListTests)
		h.POST("/tests", handlers.HandleSaveTest)
		h.GET("/tests/:id", handlers.HandleGetTest)

		// Execution history
		h.POST("/tests/:id/executions", handlers.HandleRecordExecution)
		h.GET("/tests/:id/history", handlers.HandleGetHistory)
		h.GET("/history", handlers.HandleListHistories)

		// Health checks
		h.GET("/health", handlers.HandleHealth)
		h.GET("/ready", handlers.HandleReady)
	}
}
