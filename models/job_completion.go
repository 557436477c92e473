package models

import (
	"time"

	"gorm.io/datatypes"
)

// JobCompletion is the write-once evidence that a claimed slot was worked
type JobCompletion struct {
	ID                   uint                        `gorm:"primaryKey" json:"id"`
	OrderID              uint                        `gorm:"not null;index" json:"order_id"`
	SubcontractorID      uint                        `gorm:"not null;index" json:"subcontractor_id"`
	TimeSlotID           uint                        `gorm:"not null;uniqueIndex" json:"time_slot_id"` // one completion per slot
	CompletionPhotos     datatypes.JSONSlice[string] `gorm:"not null" json:"completion_photos"`
	PhotoURLs            []string                    `gorm:"-" json:"photo_urls,omitempty"` // computed, presigned URLs for stored photos
	SignatureData        string                      `gorm:"type:text;not null" json:"signature_data"`
	GPSLat               float64                     `gorm:"not null" json:"gps_lat"`
	GPSLng               float64                     `gorm:"not null" json:"gps_lng"`
	GPSTimestamp         time.Time                   `gorm:"not null" json:"gps_timestamp"`
	CompletionNotes      *string                     `gorm:"type:text" json:"completion_notes"`
	CompletedAt          time.Time                   `gorm:"not null;index" json:"completed_at"`
	CustomerSatisfaction *int                        `gorm:"check:customer_satisfaction IS NULL OR (customer_satisfaction BETWEEN 1 AND 5)" json:"customer_satisfaction"`
}

// TableName specifies the table name for the JobCompletion model
func (JobCompletion) TableName() string {
	return "job_completions"
}
