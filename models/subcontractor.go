package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Subcontractor is an independent crew that claims time slots
type Subcontractor struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	Name         string                      `gorm:"not null" json:"name"`
	Email        string                      `gorm:"uniqueIndex;not null" json:"email"`
	Phone        string                      `gorm:"not null" json:"phone"`
	ServiceAreas datatypes.JSONSlice[string] `gorm:"not null" json:"service_areas"`
	MaxDailyJobs int                         `gorm:"not null;check:max_daily_jobs > 0" json:"max_daily_jobs"`
	Rating       float64                     `gorm:"not null;default:0" json:"rating"`
	Active       bool                        `gorm:"not null" json:"active"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// TableName specifies the table name for the Subcontractor model
func (Subcontractor) TableName() string {
	return "subcontractors"
}

// ServesArea reports whether the subcontractor covers the given area (case-insensitive)
func (s Subcontractor) ServesArea(area string) bool {
	for _, a := range s.ServiceAreas {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(area)) {
			return true
		}
	}
	return false
}
