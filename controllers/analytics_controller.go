package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaswantjat/field-service-os/services"
)

// GetAnalytics handles GET /api/v1/analytics - summary over an optional
// start_date/end_date range, with events listed when event_type is set
func (h *Handler) GetAnalytics(c *gin.Context) {
	q := newQueryParser(c)
	filter := services.AnalyticsFilter{
		StartDate: q.str("start_date"),
		EndDate:   q.str("end_date"),
		EventType: q.str("event_type"),
	}

	summary, err := h.Analytics.Summary(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}

// GetDoubleBookings handles GET /api/v1/analytics/double-bookings. Any row
// means capacity was exceeded by a write that bypassed the claim engine.
func (h *Handler) GetDoubleBookings(c *gin.Context) {
	bookings, err := h.Analytics.DoubleBookings(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, bookings)
}

// RecordEvent handles POST /api/v1/analytics/events
func (h *Handler) RecordEvent(c *gin.Context) {
	var req services.EventInput
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.Analytics.RecordEvent(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, event)
}
