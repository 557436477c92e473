package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaswantjat/field-service-os/services"
)

// RecordCompletion handles POST /api/v1/job-completions - records the field
// evidence and completes the slot and order together
func (h *Handler) RecordCompletion(c *gin.Context) {
	var req services.CompletionInput
	if !bindJSON(c, &req) {
		return
	}

	completion, err := h.Completions.Record(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, completion)
}

// ListCompletions handles GET /api/v1/job-completions
func (h *Handler) ListCompletions(c *gin.Context) {
	q := newQueryParser(c)
	filter := services.CompletionFilter{
		OrderID:         q.uintPtr("order_id"),
		SubcontractorID: q.uintPtr("subcontractor_id"),
	}
	page := q.page()
	if !q.ok() {
		return
	}

	completions, err := h.Completions.List(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, completions)
}

// GetCompletion handles GET /api/v1/job-completions/:id
func (h *Handler) GetCompletion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	completion, err := h.Completions.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, completion)
}
