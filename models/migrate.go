package models

import "gorm.io/gorm"

// All returns every persisted model in dependency order
func All() []interface{} {
	return []interface{}{
		&Subcontractor{},
		&Order{},
		&TimeSlot{},
		&JobCompletion{},
		&AnalyticsEvent{},
	}
}

// AutoMigrate creates or updates the schema for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
