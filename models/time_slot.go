package models

import "time"

// Layouts of the slot calendar fields
const (
	SlotDateLayout = "2006-01-02"
	SlotTimeLayout = "15:04"
)

// TimeSlot is one claimable window of work on an order
type TimeSlot struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OrderID         uint       `gorm:"not null;index" json:"order_id"`
	SubcontractorID *uint      `gorm:"index:idx_time_slots_sub_date" json:"subcontractor_id"` // nullable until claimed
	SlotDate        string     `gorm:"type:varchar(10);not null;index;index:idx_time_slots_sub_date" json:"slot_date"`
	SlotStartTime   string     `gorm:"type:varchar(5);not null" json:"slot_start_time"`
	SlotEndTime     string     `gorm:"type:varchar(5);not null" json:"slot_end_time"`
	IsAvailable     bool       `gorm:"not null" json:"is_available"`
	ClaimedAt       *time.Time `json:"claimed_at"`
	Status          SlotStatus `gorm:"type:varchar(32);not null;default:'available';index" json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the TimeSlot model
func (TimeSlot) TableName() string {
	return "time_slots"
}

// HeldBy reports whether the slot is assigned to the given subcontractor
func (t TimeSlot) HeldBy(subcontractorID uint) bool {
	return t.SubcontractorID != nil && *t.SubcontractorID == subcontractorID
}
