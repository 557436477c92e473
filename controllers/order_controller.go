package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaswantjat/field-service-os/services"
)

// CreateOrder handles POST /api/v1/orders - creates a new order
func (h *Handler) CreateOrder(c *gin.Context) {
	var req services.OrderInput
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.Orders.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders - lists orders, most urgent first
func (h *Handler) ListOrders(c *gin.Context) {
	q := newQueryParser(c)
	filter := services.OrderFilter{
		Status:          q.str("status"),
		Priority:        q.str("priority"),
		InventoryStatus: q.str("inventory_status"),
		City:            q.str("city"),
		Search:          q.str("search"),
	}
	page := q.page()
	if !q.ok() {
		return
	}

	orders, err := h.Orders.List(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, orders)
}

// ListAvailableOrders handles GET /api/v1/orders/available - the feed
// subcontractors browse for work
func (h *Handler) ListAvailableOrders(c *gin.Context) {
	q := newQueryParser(c)
	filter := services.AvailableFilter{
		City:        q.str("city"),
		ServiceType: q.str("service_type"),
		Priority:    q.str("priority"),
	}
	page := q.page()
	if !q.ok() {
		return
	}

	orders, err := h.Orders.ListAvailable(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, orders)
}

// GetOrder handles GET /api/v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.Orders.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, order)
}

// UpdateOrder handles PATCH /api/v1/orders/:id - partial update
func (h *Handler) UpdateOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req services.OrderPatch
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.Orders.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, order)
}

// DeleteOrder handles DELETE /api/v1/orders/:id - admin delete of an order
// and its time slots
func (h *Handler) DeleteOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.Orders.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, order)
}
