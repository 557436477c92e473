package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/jaswantjat/field-service-os/middleware"
)

// RegisterRoutes mounts the dispatch API on v1. When auth is non-nil every
// route requires a valid token, and dispatcher routes also require the
// write:dispatch scope.
func RegisterRoutes(v1 *gin.RouterGroup, h *Handler, auth gin.HandlerFunc) {
	api := v1.Group("")
	dispatch := []gin.HandlerFunc{}
	if auth != nil {
		api.Use(auth)
		dispatch = append(dispatch, middleware.RequireScope(middleware.ScopeWriteDispatch))
	}
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, dispatch...), handler)
	}

	orders := api.Group("/orders")
	{
		orders.POST("", guarded(h.CreateOrder)...)
		orders.GET("", h.ListOrders)
		orders.GET("/available", h.ListAvailableOrders)
		orders.GET("/:id", h.GetOrder)
		orders.PATCH("/:id", guarded(h.UpdateOrder)...)
		orders.DELETE("/:id", guarded(h.DeleteOrder)...)
	}

	subcontractors := api.Group("/subcontractors")
	{
		subcontractors.POST("", guarded(h.CreateSubcontractor)...)
		subcontractors.GET("", h.ListSubcontractors)
		subcontractors.GET("/:id", h.GetSubcontractor)
		subcontractors.PATCH("/:id", guarded(h.UpdateSubcontractor)...)
	}

	slots := api.Group("/time-slots")
	{
		slots.POST("", guarded(h.CreateTimeSlot)...)
		slots.GET("", h.ListTimeSlots)
		slots.GET("/:id", h.GetTimeSlot)
		slots.POST("/:id/claim", h.ClaimTimeSlot)
		slots.DELETE("/:id", guarded(h.CancelTimeSlot)...)
	}

	completions := api.Group("/job-completions")
	{
		completions.POST("", h.RecordCompletion)
		completions.GET("", h.ListCompletions)
		completions.GET("/:id", h.GetCompletion)
	}

	uploads := api.Group("/uploads")
	{
		uploads.POST("/photos", h.UploadPhoto)
		uploads.DELETE("/photos/*key", h.DeletePhoto)
	}

	analytics := api.Group("/analytics")
	{
		analytics.GET("", h.GetAnalytics)
		analytics.GET("/double-bookings", h.GetDoubleBookings)
		analytics.POST("/events", guarded(h.RecordEvent)...)
	}
}
