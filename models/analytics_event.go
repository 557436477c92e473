package models

import (
	"time"

	"gorm.io/datatypes"
)

// Analytics event types. These rows are observational only and never drive
// scheduling decisions.
const (
	EventGhostJob       = "ghost_job"
	EventDoubleBook     = "double_book"
	EventCancellation   = "cancellation"
	EventCompletion     = "completion"
	EventStatusOverride = "status_override"
)

var EventTypes = []string{EventGhostJob, EventDoubleBook, EventCancellation, EventCompletion, EventStatusOverride}

// AnalyticsEvent records something that happened to an order or crew
type AnalyticsEvent struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	EventType       string            `gorm:"type:varchar(32);not null;index" json:"event_type"`
	OrderID         *uint             `gorm:"index" json:"order_id"`
	SubcontractorID *uint             `gorm:"index" json:"subcontractor_id"`
	Metadata        datatypes.JSONMap `gorm:"not null" json:"metadata"`
	CreatedAt       time.Time         `gorm:"not null;index" json:"created_at"`
}

// TableName specifies the table name for the AnalyticsEvent model
func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}
