package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jaswantjat/field-service-os/models"
)

const (
	defaultSlotLimit = 50
	maxSlotLimit     = 100
)

// TimeSlotInput is a request to open a slot on an order
type TimeSlotInput struct {
	OrderID       *uint   `json:"order_id"`
	SlotDate      *string `json:"slot_date"`
	SlotStartTime *string `json:"slot_start_time"`
	SlotEndTime   *string `json:"slot_end_time"`
	Status        *string `json:"status"`
}

// TimeSlotFilter narrows a slot listing
type TimeSlotFilter struct {
	OrderID         *uint
	SubcontractorID *uint
	SlotDate        string
	Status          string
	IsAvailable     *bool
}

// CancelResult is a cancelled slot plus what happened to its order
type CancelResult struct {
	Slot                *models.TimeSlot `json:"slot"`
	OrderStatusReverted bool             `json:"order_status_reverted"`
}

// TimeSlotService runs slot creation, claiming and cancellation
type TimeSlotService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTimeSlotService creates a TimeSlotService backed by db
func NewTimeSlotService(db *gorm.DB) *TimeSlotService {
	return &TimeSlotService{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (in *TimeSlotInput) validate() error {
	if in.OrderID == nil || *in.OrderID == 0 {
		return ValidationError("order_id", "MISSING_ORDER_ID", "Order ID is required")
	}
	if isBlank(in.SlotDate) {
		return ValidationError("slot_date", "MISSING_SLOT_DATE", "Slot date is required")
	}
	if isBlank(in.SlotStartTime) {
		return ValidationError("slot_start_time", "MISSING_SLOT_START_TIME", "Slot start time is required")
	}
	if isBlank(in.SlotEndTime) {
		return ValidationError("slot_end_time", "MISSING_SLOT_END_TIME", "Slot end time is required")
	}

	*in.SlotDate = strings.TrimSpace(*in.SlotDate)
	*in.SlotStartTime = strings.TrimSpace(*in.SlotStartTime)
	*in.SlotEndTime = strings.TrimSpace(*in.SlotEndTime)

	if !validSlotDate(*in.SlotDate) {
		return ValidationError("slot_date", "INVALID_DATE_FORMAT", "Slot date must be in YYYY-MM-DD format")
	}
	if !validSlotTime(*in.SlotStartTime) {
		return ValidationError("slot_start_time", "INVALID_START_TIME_FORMAT", "Start time must be in HH:MM format")
	}
	if !validSlotTime(*in.SlotEndTime) {
		return ValidationError("slot_end_time", "INVALID_END_TIME_FORMAT", "End time must be in HH:MM format")
	}
	// fixed-width HH:MM compares correctly as strings
	if *in.SlotStartTime >= *in.SlotEndTime {
		return ValidationError("slot_end_time", "INVALID_TIME_RANGE", "Start time must be before end time")
	}

	if in.Status != nil && !models.SlotStatus(*in.Status).Valid() {
		return ValidationError("status", "INVALID_STATUS", fmt.Sprintf("Invalid time slot status %q", *in.Status))
	}
	return nil
}

// Create opens a slot on an existing order
func (s *TimeSlotService) Create(ctx context.Context, in TimeSlotInput) (*models.TimeSlot, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	status := models.SlotStatusAvailable
	if in.Status != nil {
		status = models.SlotStatus(*in.Status)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", *in.OrderID).Count(&count).Error; err != nil {
		return nil, InternalError("Failed to verify order", err)
	}
	if count == 0 {
		return nil, ValidationError("order_id", "ORDER_NOT_FOUND", "Order not found")
	}

	slot := models.TimeSlot{
		OrderID:       *in.OrderID,
		SlotDate:      *in.SlotDate,
		SlotStartTime: *in.SlotStartTime,
		SlotEndTime:   *in.SlotEndTime,
		IsAvailable:   status == models.SlotStatusAvailable,
		Status:        status,
	}
	if err := s.db.WithContext(ctx).Create(&slot).Error; err != nil {
		return nil, InternalError("Failed to create time slot", err)
	}
	return &slot, nil
}

// Get returns the slot with the given id
func (s *TimeSlotService) Get(ctx context.Context, id uint) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	if err := s.db.WithContext(ctx).First(&slot, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundError("TIME_SLOT_NOT_FOUND", "Time slot not found")
		}
		return nil, InternalError("Failed to fetch time slot", err)
	}
	return &slot, nil
}

// Claim assigns an available slot to a subcontractor. The slot row and the
// subcontractor row stay locked for the whole transaction, which serializes
// claims per slot and per subcontractor so the capacity count cannot go
// stale before the write.
func (s *TimeSlotService) Claim(ctx context.Context, slotID, subcontractorID uint) (*models.TimeSlot, error) {
	if subcontractorID == 0 {
		return nil, ValidationError("subcontractor_id", "MISSING_SUBCONTRACTOR_ID", "Subcontractor ID is required")
	}

	var claimed *models.TimeSlot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot, order, err := lockSlotAndOrder(tx, slotID)
		if err != nil {
			return err
		}
		if !slot.Status.CanTransitionTo(models.SlotStatusClaimed) {
			return slotTransitionError(slot.Status, models.SlotStatusClaimed)
		}

		var sub models.Subcontractor
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sub, subcontractorID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFoundError("SUBCONTRACTOR_NOT_FOUND", "Subcontractor not found")
			}
			return InternalError("Failed to load subcontractor", err)
		}
		if !sub.Active {
			return ConflictError("SUBCONTRACTOR_INACTIVE", "Subcontractor is not active")
		}

		committed, err := committedJobs(tx, sub.ID, slot.SlotDate)
		if err != nil {
			return err
		}
		if committed >= int64(sub.MaxDailyJobs) {
			return ConflictError("MAX_DAILY_JOBS_REACHED",
				fmt.Sprintf("Subcontractor has reached maximum daily jobs limit (%d)", sub.MaxDailyJobs)).
				WithDetails(map[string]interface{}{
					"max_daily_jobs":     sub.MaxDailyJobs,
					"current_daily_jobs": committed,
					"slot_date":          slot.SlotDate,
				})
		}

		claimedAt := s.now()
		err = transitionSlot(tx, slot, models.SlotStatusClaimed, map[string]interface{}{
			"subcontractor_id": sub.ID,
			"claimed_at":       claimedAt,
		})
		if err != nil {
			return err
		}

		if _, err := cascadeOrder(tx, order, models.OrderStatusClaimed, models.OrderStatusUnassigned); err != nil {
			return err
		}

		claimed = slot
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "Failed to claim time slot")
	}
	return claimed, nil
}

// Cancel retires a slot. The record is kept; an order that was claimed or
// scheduled through it goes back to unassigned.
func (s *TimeSlotService) Cancel(ctx context.Context, slotID uint) (*CancelResult, error) {
	result := &CancelResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot, order, err := lockSlotAndOrder(tx, slotID)
		if err != nil {
			return err
		}
		if err := transitionSlot(tx, slot, models.SlotStatusCancelled, nil); err != nil {
			return err
		}

		reverted, err := cascadeOrder(tx, order, models.OrderStatusUnassigned,
			models.OrderStatusClaimed, models.OrderStatusScheduled)
		if err != nil {
			return err
		}

		result.Slot = slot
		result.OrderStatusReverted = reverted
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "Failed to cancel time slot")
	}
	return result, nil
}

// List returns slots matching filter in calendar order
func (s *TimeSlotService) List(ctx context.Context, filter TimeSlotFilter, page Page) ([]models.TimeSlot, error) {
	page = page.clamp(defaultSlotLimit, maxSlotLimit)

	query := s.db.WithContext(ctx).Model(&models.TimeSlot{})
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.SubcontractorID != nil {
		query = query.Where("subcontractor_id = ?", *filter.SubcontractorID)
	}
	if filter.SlotDate != "" {
		query = query.Where("slot_date = ?", filter.SlotDate)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.IsAvailable != nil {
		query = query.Where("is_available = ?", *filter.IsAvailable)
	}

	slots := []models.TimeSlot{}
	err := query.
		Order("slot_date ASC").
		Order("slot_start_time ASC").
		Order("id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&slots).Error
	if err != nil {
		return nil, InternalError("Failed to fetch time slots", err)
	}
	return slots, nil
}

// committedJobs counts the slots a subcontractor holds on date that occupy
// capacity (everything except cancelled)
func committedJobs(tx *gorm.DB, subcontractorID uint, date string) (int64, error) {
	var count int64
	err := tx.Model(&models.TimeSlot{}).
		Where("subcontractor_id = ? AND slot_date = ? AND status <> ?", subcontractorID, date, models.SlotStatusCancelled).
		Count(&count).Error
	if err != nil {
		return 0, InternalError("Failed to count daily jobs", err)
	}
	return count, nil
}
