package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jaswantjat/field-service-os/models"
)

const (
	defaultOrderLimit     = 50
	maxOrderLimit         = 100
	defaultAvailableLimit = 20
	maxAvailableLimit     = 50
)

// patchableOrderStatuses are the targets an order update may set directly.
// claimed/unassigned follow slot claims and cancellations, completed follows
// a recorded completion.
var patchableOrderStatuses = []models.OrderStatus{
	models.OrderStatusScheduled,
	models.OrderStatusInProgress,
	models.OrderStatusCancelled,
}

// InventoryItemInput is one inventory line as submitted by a client
type InventoryItemInput struct {
	Name     *string `json:"name"`
	Quantity *int    `json:"quantity"`
	InStock  *bool   `json:"in_stock"`
}

// OrderInput carries the order fields of a create or update request. Pointer
// fields distinguish "absent" from the zero value.
type OrderInput struct {
	CustomerName        *string              `json:"customer_name"`
	CustomerEmail       *string              `json:"customer_email"`
	CustomerPhone       *string              `json:"customer_phone"`
	Address             *string              `json:"address"`
	City                *string              `json:"city"`
	LocationLat         *float64             `json:"location_lat"`
	LocationLng         *float64             `json:"location_lng"`
	ServiceType         *string              `json:"service_type"`
	InventoryItems      []InventoryItemInput `json:"inventory_items"`
	InventoryStatus     *string              `json:"inventory_status"`
	Priority            *string              `json:"priority"`
	EstimatedDuration   *int                 `json:"estimated_duration"`
	SpecialInstructions *string              `json:"special_instructions"`
	Status              *string              `json:"status"`
	DueDate             *string              `json:"due_date"`

	dueDate time.Time
	items   []models.InventoryItem
}

// OrderPatch is a partial order update. ID and CreatedAt are only captured to
// detect attempts to change them.
type OrderPatch struct {
	OrderInput
	ID        json.RawMessage `json:"id"`
	CreatedAt json.RawMessage `json:"created_at"`
}

// OrderFilter narrows an order listing
type OrderFilter struct {
	Status          string
	Priority        string
	InventoryStatus string
	City            string
	Search          string
}

// AvailableFilter narrows the feed subcontractors browse
type AvailableFilter struct {
	City        string
	ServiceType string
	Priority    string
}

// OrderService owns order validation and the order lifecycle
type OrderService struct {
	db *gorm.DB
}

// NewOrderService creates an OrderService backed by db
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// validate checks every present field and, when partial is false, that all
// required fields are present. Normalized values are written back into in.
func (in *OrderInput) validate(partial bool) error {
	required := func(value *string, field, code, label string) error {
		if value == nil && partial {
			return nil
		}
		if isBlank(value) {
			return ValidationError(field, code, label+" is required")
		}
		*value = strings.TrimSpace(*value)
		return nil
	}

	if err := required(in.CustomerName, "customer_name", "MISSING_CUSTOMER_NAME", "Customer name"); err != nil {
		return err
	}
	if err := required(in.CustomerEmail, "customer_email", "MISSING_CUSTOMER_EMAIL", "Customer email"); err != nil {
		return err
	}
	if in.CustomerEmail != nil {
		*in.CustomerEmail = normalizeEmail(*in.CustomerEmail)
		if !validEmail(*in.CustomerEmail) {
			return ValidationError("customer_email", "INVALID_EMAIL", "Invalid email format")
		}
	}
	if err := required(in.CustomerPhone, "customer_phone", "MISSING_CUSTOMER_PHONE", "Customer phone"); err != nil {
		return err
	}
	if err := required(in.Address, "address", "MISSING_ADDRESS", "Address"); err != nil {
		return err
	}
	if err := required(in.City, "city", "MISSING_CITY", "City"); err != nil {
		return err
	}

	if in.LocationLat == nil && !partial {
		return ValidationError("location_lat", "MISSING_LOCATION_LAT", "Location latitude is required")
	}
	if in.LocationLat != nil && (!validFloat(*in.LocationLat) || *in.LocationLat < -90 || *in.LocationLat > 90) {
		return ValidationError("location_lat", "INVALID_LATITUDE", "Latitude must be between -90 and 90")
	}
	if in.LocationLng == nil && !partial {
		return ValidationError("location_lng", "MISSING_LOCATION_LNG", "Location longitude is required")
	}
	if in.LocationLng != nil && (!validFloat(*in.LocationLng) || *in.LocationLng < -180 || *in.LocationLng > 180) {
		return ValidationError("location_lng", "INVALID_LONGITUDE", "Longitude must be between -180 and 180")
	}

	if in.ServiceType == nil && !partial {
		return ValidationError("service_type", "MISSING_SERVICE_TYPE", "Service type is required")
	}
	if in.ServiceType != nil {
		*in.ServiceType = strings.TrimSpace(*in.ServiceType)
		if !contains(models.ServiceTypes, *in.ServiceType) {
			return ValidationError("service_type", "INVALID_SERVICE_TYPE",
				fmt.Sprintf("Service type must be one of: %s", strings.Join(models.ServiceTypes, ", ")))
		}
	}

	if in.InventoryItems == nil && !partial {
		return ValidationError("inventory_items", "INVALID_INVENTORY_ITEMS", "Inventory items must be an array")
	}
	if in.InventoryItems != nil {
		items := make([]models.InventoryItem, 0, len(in.InventoryItems))
		for i, item := range in.InventoryItems {
			if isBlank(item.Name) || item.Quantity == nil || *item.Quantity < 0 || item.InStock == nil {
				return ValidationError(fmt.Sprintf("inventory_items[%d]", i), "INVALID_INVENTORY_ITEM",
					"Each inventory item needs a name, a non-negative quantity and in_stock")
			}
			items = append(items, models.InventoryItem{
				Name:     strings.TrimSpace(*item.Name),
				Quantity: *item.Quantity,
				InStock:  *item.InStock,
			})
		}
		in.items = items
	}

	if in.EstimatedDuration == nil && !partial {
		return ValidationError("estimated_duration", "INVALID_ESTIMATED_DURATION", "Estimated duration is required")
	}
	if in.EstimatedDuration != nil && *in.EstimatedDuration <= 0 {
		return ValidationError("estimated_duration", "INVALID_ESTIMATED_DURATION", "Estimated duration must be a positive number")
	}

	if in.DueDate == nil && !partial {
		return ValidationError("due_date", "MISSING_DUE_DATE", "Due date is required")
	}
	if in.DueDate != nil {
		due, ok := ParseDate(*in.DueDate)
		if !ok {
			return ValidationError("due_date", "INVALID_DUE_DATE", "Due date must be YYYY-MM-DD or an RFC 3339 timestamp")
		}
		in.dueDate = due
	}

	if in.Priority == nil && !partial {
		in.Priority = ptr(models.PriorityMedium)
	}
	if in.Priority != nil && !contains(models.Priorities, *in.Priority) {
		return ValidationError("priority", "INVALID_PRIORITY",
			fmt.Sprintf("Priority must be one of: %s", strings.Join(models.Priorities, ", ")))
	}

	if in.InventoryStatus == nil && !partial {
		in.InventoryStatus = ptr(models.InventoryStatusPending)
	}
	if in.InventoryStatus != nil && !contains(models.InventoryStatuses, *in.InventoryStatus) {
		return ValidationError("inventory_status", "INVALID_INVENTORY_STATUS",
			fmt.Sprintf("Inventory status must be one of: %s", strings.Join(models.InventoryStatuses, ", ")))
	}

	if in.Status != nil && !models.OrderStatus(*in.Status).Valid() {
		return ValidationError("status", "INVALID_STATUS", fmt.Sprintf("Invalid order status %q", *in.Status))
	}

	if in.SpecialInstructions != nil {
		trimmed := strings.TrimSpace(*in.SpecialInstructions)
		in.SpecialInstructions = &trimmed
	}
	return nil
}

// updates returns the column values of the present, already validated fields.
// Status is handled separately through the transition table.
func (in *OrderInput) updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if in.CustomerName != nil {
		updates["customer_name"] = *in.CustomerName
	}
	if in.CustomerEmail != nil {
		updates["customer_email"] = *in.CustomerEmail
	}
	if in.CustomerPhone != nil {
		updates["customer_phone"] = *in.CustomerPhone
	}
	if in.Address != nil {
		updates["address"] = *in.Address
	}
	if in.City != nil {
		updates["city"] = *in.City
	}
	if in.LocationLat != nil {
		updates["location_lat"] = *in.LocationLat
	}
	if in.LocationLng != nil {
		updates["location_lng"] = *in.LocationLng
	}
	if in.ServiceType != nil {
		updates["service_type"] = *in.ServiceType
	}
	if in.InventoryItems != nil {
		updates["inventory_items"] = datatypes.NewJSONSlice(in.items)
	}
	if in.InventoryStatus != nil {
		updates["inventory_status"] = *in.InventoryStatus
	}
	if in.Priority != nil {
		updates["priority"] = *in.Priority
	}
	if in.EstimatedDuration != nil {
		updates["estimated_duration"] = *in.EstimatedDuration
	}
	if in.SpecialInstructions != nil {
		if *in.SpecialInstructions == "" {
			updates["special_instructions"] = nil
		} else {
			updates["special_instructions"] = *in.SpecialInstructions
		}
	}
	if in.DueDate != nil {
		updates["due_date"] = in.dueDate
	}
	return updates
}

// Create validates input and persists a new order
func (s *OrderService) Create(ctx context.Context, in OrderInput) (*models.Order, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	status := models.OrderStatusUnassigned
	if in.Status != nil {
		status = models.OrderStatus(*in.Status)
		if status != models.OrderStatusUnassigned && status != models.OrderStatusScheduled {
			return nil, ValidationError("status", "INVALID_INITIAL_STATUS",
				"New orders start as 'unassigned' or 'scheduled'")
		}
	}

	order := models.Order{
		CustomerName:      *in.CustomerName,
		CustomerEmail:     *in.CustomerEmail,
		CustomerPhone:     *in.CustomerPhone,
		Address:           *in.Address,
		City:              *in.City,
		LocationLat:       *in.LocationLat,
		LocationLng:       *in.LocationLng,
		ServiceType:       *in.ServiceType,
		InventoryItems:    datatypes.NewJSONSlice(in.items),
		InventoryStatus:   *in.InventoryStatus,
		Priority:          *in.Priority,
		EstimatedDuration: *in.EstimatedDuration,
		Status:            status,
		DueDate:           in.dueDate,
	}
	if in.SpecialInstructions != nil && *in.SpecialInstructions != "" {
		order.SpecialInstructions = in.SpecialInstructions
	}

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, InternalError("Failed to create order", err)
	}
	return &order, nil
}

// Get returns the order with the given id
func (s *OrderService) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundError("ORDER_NOT_FOUND", "Order not found")
		}
		return nil, InternalError("Failed to fetch order", err)
	}
	return &order, nil
}

// Update applies a partial update. A status change is routed through the
// order state machine, audited as a status_override event, and a
// cancellation also cancels the order's open slots.
func (s *OrderService) Update(ctx context.Context, id uint, patch OrderPatch) (*models.Order, error) {
	if len(patch.ID) > 0 {
		return nil, ImmutableFieldError("id")
	}
	if len(patch.CreatedAt) > 0 {
		return nil, ImmutableFieldError("created_at")
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockOrder(tx, id)
		if err != nil {
			return err
		}

		in := patch.OrderInput
		if err := in.validate(true); err != nil {
			return err
		}
		updates := in.updates()
		if len(updates) == 0 && in.Status == nil {
			return ValidationError("", "NO_UPDATES", "No valid fields provided for update")
		}

		if len(updates) > 0 {
			if err := tx.Model(current).Updates(updates).Error; err != nil {
				return InternalError("Failed to update order", err)
			}
		}

		if in.Status != nil && models.OrderStatus(*in.Status) != current.Status {
			if err := s.overrideStatus(tx, current, models.OrderStatus(*in.Status)); err != nil {
				return err
			}
		}

		order = &models.Order{}
		if err := tx.First(order, id).Error; err != nil {
			return InternalError("Failed to reload order", err)
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "Failed to update order")
	}
	return order, nil
}

// overrideStatus performs a dispatcher status change inside tx
func (s *OrderService) overrideStatus(tx *gorm.DB, order *models.Order, next models.OrderStatus) error {
	allowed := false
	for _, status := range patchableOrderStatuses {
		if status == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return ValidationError("status", "STATUS_REQUIRES_WORKFLOW",
			fmt.Sprintf("Status '%s' is set by the claim, cancel and completion workflows", next))
	}

	from := order.Status
	if err := transitionOrder(tx, order, next); err != nil {
		return err
	}

	cancelledSlots := 0
	if next == models.OrderStatusCancelled {
		var slots []models.TimeSlot
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ? AND status IN ?", order.ID,
			[]models.SlotStatus{models.SlotStatusAvailable, models.SlotStatusClaimed}).
			Order("id").Find(&slots).Error
		if err != nil {
			return InternalError("Failed to load order time slots", err)
		}
		for i := range slots {
			if err := transitionSlot(tx, &slots[i], models.SlotStatusCancelled, nil); err != nil {
				return err
			}
			cancelledSlots++
		}
	}

	orderID := order.ID
	event := models.AnalyticsEvent{
		EventType: models.EventStatusOverride,
		OrderID:   &orderID,
		Metadata: datatypes.JSONMap{
			"from":            string(from),
			"to":              string(next),
			"cancelled_slots": cancelledSlots,
		},
	}
	if err := tx.Create(&event).Error; err != nil {
		return InternalError("Failed to record status change", err)
	}
	return nil
}

// List returns orders matching filter, most urgent first then newest first
func (s *OrderService) List(ctx context.Context, filter OrderFilter, page Page) ([]models.Order, error) {
	page = page.clamp(defaultOrderLimit, maxOrderLimit)

	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(customer_name) LIKE ? OR LOWER(customer_email) LIKE ? OR LOWER(address) LIKE ?",
			pattern, pattern, pattern)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.InventoryStatus != "" {
		query = query.Where("inventory_status = ?", filter.InventoryStatus)
	}
	if filter.City != "" {
		query = query.Where("city = ?", filter.City)
	}

	orders := []models.Order{}
	err := query.
		Order(models.PriorityRankSQL).
		Order("created_at DESC").
		Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, InternalError("Failed to fetch orders", err)
	}
	return orders, nil
}

// ListAvailable returns the orders open for claiming, most urgent and
// soonest due first
func (s *OrderService) ListAvailable(ctx context.Context, filter AvailableFilter, page Page) ([]models.Order, error) {
	page = page.clamp(defaultAvailableLimit, maxAvailableLimit)

	query := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("status IN ?", []models.OrderStatus{models.OrderStatusUnassigned, models.OrderStatusScheduled})
	if filter.City != "" {
		query = query.Where("city = ?", filter.City)
	}
	if filter.ServiceType != "" {
		query = query.Where("service_type = ?", filter.ServiceType)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}

	orders := []models.Order{}
	err := query.
		Order(models.PriorityRankSQL).
		Order("due_date ASC").
		Order("id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, InternalError("Failed to fetch available orders", err)
	}
	return orders, nil
}

// Delete removes an order and its time slots. Completions referencing the
// order are kept.
func (s *OrderService) Delete(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockOrder(tx, id)
		if err != nil {
			return err
		}
		order = *locked

		if err := tx.Where("order_id = ?", id).Delete(&models.TimeSlot{}).Error; err != nil {
			return InternalError("Failed to delete order time slots", err)
		}
		if err := tx.Delete(&models.Order{}, id).Error; err != nil {
			return InternalError("Failed to delete order", err)
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "Failed to delete order")
	}
	return &order, nil
}
