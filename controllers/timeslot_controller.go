package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaswantjat/field-service-os/services"
)

// ClaimRequest is the body of a claim
type ClaimRequest struct {
	SubcontractorID *uint `json:"subcontractor_id"`
}

// CreateTimeSlot handles POST /api/v1/time-slots
func (h *Handler) CreateTimeSlot(c *gin.Context) {
	var req services.TimeSlotInput
	if !bindJSON(c, &req) {
		return
	}

	slot, err := h.TimeSlots.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, slot)
}

// ListTimeSlots handles GET /api/v1/time-slots in calendar order
func (h *Handler) ListTimeSlots(c *gin.Context) {
	q := newQueryParser(c)
	filter := services.TimeSlotFilter{
		OrderID:         q.uintPtr("order_id"),
		SubcontractorID: q.uintPtr("subcontractor_id"),
		SlotDate:        q.str("slot_date"),
		Status:          q.str("status"),
		IsAvailable:     q.boolPtr("is_available"),
	}
	page := q.page()
	if !q.ok() {
		return
	}

	slots, err := h.TimeSlots.List(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, slots)
}

// GetTimeSlot handles GET /api/v1/time-slots/:id
func (h *Handler) GetTimeSlot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	slot, err := h.TimeSlots.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, slot)
}

// ClaimTimeSlot handles POST /api/v1/time-slots/:id/claim
func (h *Handler) ClaimTimeSlot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ClaimRequest
	if !bindJSON(c, &req) {
		return
	}
	var subcontractorID uint
	if req.SubcontractorID != nil {
		subcontractorID = *req.SubcontractorID
	}

	slot, err := h.TimeSlots.Claim(c.Request.Context(), id, subcontractorID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, slot)
}

// CancelTimeSlot handles DELETE /api/v1/time-slots/:id. The slot is kept as
// cancelled; the response says whether its order went back to unassigned.
func (h *Handler) CancelTimeSlot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.TimeSlots.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Time slot cancelled"
	if result.OrderStatusReverted {
		message = "Time slot cancelled and order returned to unassigned"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
		"message": message,
	})
}
