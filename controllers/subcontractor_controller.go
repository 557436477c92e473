package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaswantjat/field-service-os/services"
)

// CreateSubcontractor handles POST /api/v1/subcontractors
func (h *Handler) CreateSubcontractor(c *gin.Context) {
	var req services.SubcontractorInput
	if !bindJSON(c, &req) {
		return
	}

	sub, err := h.Subcontractors.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, sub)
}

// ListSubcontractors handles GET /api/v1/subcontractors
func (h *Handler) ListSubcontractors(c *gin.Context) {
	q := newQueryParser(c)
	filter := services.SubcontractorFilter{
		Active:      q.boolPtr("active"),
		ServiceArea: q.str("service_area"),
		Search:      q.str("search"),
	}
	page := q.page()
	if !q.ok() {
		return
	}

	subs, err := h.Subcontractors.List(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, subs)
}

// GetSubcontractor handles GET /api/v1/subcontractors/:id. The optional
// ?date=YYYY-MM-DD selects the day the capacity figures refer to.
func (h *Handler) GetSubcontractor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	sub, err := h.Subcontractors.Get(c.Request.Context(), id, c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sub)
}

// UpdateSubcontractor handles PATCH /api/v1/subcontractors/:id
func (h *Handler) UpdateSubcontractor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req services.SubcontractorPatch
	if !bindJSON(c, &req) {
		return
	}

	sub, err := h.Subcontractors.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sub)
}
