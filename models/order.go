package models

import (
	"time"

	"gorm.io/datatypes"
)

// Service types an order can be dispatched for
const (
	ServiceTypeInstallation = "Installation"
	ServiceTypeDelivery     = "Delivery"
	ServiceTypeRepair       = "Repair"
)

// Inventory readiness of an order
const (
	InventoryStatusPending     = "pending"
	InventoryStatusAvailable   = "available"
	InventoryStatusUnavailable = "unavailable"
	InventoryStatusPartial     = "partial"
)

// Order priorities, most urgent first
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

var (
	ServiceTypes      = []string{ServiceTypeInstallation, ServiceTypeDelivery, ServiceTypeRepair}
	InventoryStatuses = []string{InventoryStatusPending, InventoryStatusAvailable, InventoryStatusUnavailable, InventoryStatusPartial}
	Priorities        = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
)

// PriorityRankSQL orders rows urgent=1 ... low=4
const PriorityRankSQL = "CASE priority WHEN 'urgent' THEN 1 WHEN 'high' THEN 2 WHEN 'medium' THEN 3 WHEN 'low' THEN 4 ELSE 5 END"

// PriorityRank returns the sort rank of a priority (urgent=1 ... low=4)
func PriorityRank(priority string) int {
	switch priority {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	case PriorityLow:
		return 4
	default:
		return 5
	}
}

// InventoryItem is one line of the material needed on site
type InventoryItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	InStock  bool   `json:"in_stock"`
}

// Order represents a field-service job created by dispatch
type Order struct {
	ID                  uint                               `gorm:"primaryKey" json:"id"`
	CustomerName        string                             `gorm:"not null" json:"customer_name"`
	CustomerEmail       string                             `gorm:"not null;index" json:"customer_email"`
	CustomerPhone       string                             `gorm:"not null" json:"customer_phone"`
	Address             string                             `gorm:"not null" json:"address"`
	City                string                             `gorm:"not null;index" json:"city"`
	LocationLat         float64                            `gorm:"not null" json:"location_lat"`
	LocationLng         float64                            `gorm:"not null" json:"location_lng"`
	ServiceType         string                             `gorm:"not null;index" json:"service_type"`
	InventoryItems      datatypes.JSONSlice[InventoryItem] `gorm:"not null" json:"inventory_items"`
	InventoryStatus     string                             `gorm:"not null;default:'pending'" json:"inventory_status"`
	Priority            string                             `gorm:"not null;default:'medium';index" json:"priority"`
	EstimatedDuration   int                                `gorm:"not null;check:estimated_duration > 0" json:"estimated_duration"` // minutes
	SpecialInstructions *string                            `json:"special_instructions"`
	Status              OrderStatus                        `gorm:"type:varchar(32);not null;default:'unassigned';index" json:"status"`
	DueDate             time.Time                          `gorm:"not null;index" json:"due_date"`
	CreatedAt           time.Time                          `gorm:"not null;index" json:"created_at"`
	UpdatedAt           time.Time                          `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}
