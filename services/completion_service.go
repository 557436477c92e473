package services

import (
	"context"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jaswantjat/field-service-os/models"
)

const (
	defaultCompletionLimit = 50
	maxCompletionLimit     = 100
)

// CompletionInput is the evidence a subcontractor submits from the field
type CompletionInput struct {
	OrderID              *uint    `json:"order_id"`
	SubcontractorID      *uint    `json:"subcontractor_id"`
	TimeSlotID           *uint    `json:"time_slot_id"`
	CompletionPhotos     []string `json:"completion_photos"`
	SignatureData        *string  `json:"signature_data"`
	GPSLat               *float64 `json:"gps_lat"`
	GPSLng               *float64 `json:"gps_lng"`
	CompletionNotes      *string  `json:"completion_notes"`
	CustomerSatisfaction *int     `json:"customer_satisfaction"`
}

// CompletionFilter narrows a completion listing
type CompletionFilter struct {
	OrderID         *uint
	SubcontractorID *uint
}

// CompletionService records and serves job completions
type CompletionService struct {
	db     *gorm.DB
	photos PhotoService
	now    func() time.Time
}

// NewCompletionService creates a CompletionService. photos may be nil when
// photo storage is not configured; photo references are then returned as is.
func NewCompletionService(db *gorm.DB, photos PhotoService) *CompletionService {
	return &CompletionService{
		db:     db,
		photos: photos,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (in *CompletionInput) validate() error {
	if in.OrderID == nil || *in.OrderID == 0 {
		return ValidationError("order_id", "MISSING_ORDER_ID", "Order ID is required")
	}
	if in.SubcontractorID == nil || *in.SubcontractorID == 0 {
		return ValidationError("subcontractor_id", "MISSING_SUBCONTRACTOR_ID", "Subcontractor ID is required")
	}
	if in.TimeSlotID == nil || *in.TimeSlotID == 0 {
		return ValidationError("time_slot_id", "MISSING_TIME_SLOT_ID", "Time slot ID is required")
	}

	if len(in.CompletionPhotos) == 0 {
		return ValidationError("completion_photos", "INVALID_COMPLETION_PHOTOS", "At least one completion photo is required")
	}
	photos := make([]string, 0, len(in.CompletionPhotos))
	for _, photo := range in.CompletionPhotos {
		photo = strings.TrimSpace(photo)
		if photo == "" {
			return ValidationError("completion_photos", "INVALID_COMPLETION_PHOTOS", "Completion photos must be non-empty strings")
		}
		photos = append(photos, photo)
	}
	in.CompletionPhotos = photos

	if isBlank(in.SignatureData) {
		return ValidationError("signature_data", "MISSING_SIGNATURE_DATA", "Signature data is required")
	}
	*in.SignatureData = strings.TrimSpace(*in.SignatureData)

	if in.GPSLat == nil || !validFloat(*in.GPSLat) || *in.GPSLat < -90 || *in.GPSLat > 90 {
		return ValidationError("gps_lat", "INVALID_GPS_LAT", "GPS latitude must be a number between -90 and 90")
	}
	if in.GPSLng == nil || !validFloat(*in.GPSLng) || *in.GPSLng < -180 || *in.GPSLng > 180 {
		return ValidationError("gps_lng", "INVALID_GPS_LNG", "GPS longitude must be a number between -180 and 180")
	}

	if in.CustomerSatisfaction != nil && (*in.CustomerSatisfaction < 1 || *in.CustomerSatisfaction > 5) {
		return ValidationError("customer_satisfaction", "INVALID_CUSTOMER_SATISFACTION", "Customer satisfaction must be an integer between 1 and 5")
	}

	if in.CompletionNotes != nil {
		notes := strings.TrimSpace(*in.CompletionNotes)
		if notes == "" {
			in.CompletionNotes = nil
		} else {
			in.CompletionNotes = &notes
		}
	}
	return nil
}

// Record validates the order/subcontractor/slot triple and, in one
// transaction, inserts the completion and completes both the slot and the
// order. Nothing is written when any check fails.
func (s *CompletionService) Record(ctx context.Context, in CompletionInput) (*models.JobCompletion, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var completion models.JobCompletion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, *in.OrderID)
		if err != nil {
			return err
		}
		slot, err := lockSlot(tx, *in.TimeSlotID)
		if err != nil && !IsCode(err, "TIME_SLOT_NOT_FOUND") {
			return err
		}

		var sub models.Subcontractor
		if err := tx.First(&sub, *in.SubcontractorID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFoundError("SUBCONTRACTOR_NOT_FOUND", "Subcontractor not found")
			}
			return InternalError("Failed to load subcontractor", err)
		}
		if slot == nil {
			return NotFoundError("TIME_SLOT_NOT_FOUND", "Time slot not found")
		}
		if slot.OrderID != order.ID {
			return ConflictError("TIME_SLOT_ORDER_MISMATCH", "Time slot does not belong to the specified order")
		}
		if !slot.HeldBy(sub.ID) {
			return ConflictError("TIME_SLOT_SUBCONTRACTOR_MISMATCH", "Time slot is not assigned to the specified subcontractor")
		}
		if !slot.Status.CanTransitionTo(models.SlotStatusCompleted) {
			return slotTransitionError(slot.Status, models.SlotStatusCompleted)
		}
		if order.Status == models.OrderStatusCancelled {
			return orderTransitionError(order.Status, models.OrderStatusCompleted)
		}

		now := s.now()
		completion = models.JobCompletion{
			OrderID:              order.ID,
			SubcontractorID:      sub.ID,
			TimeSlotID:           slot.ID,
			CompletionPhotos:     datatypes.NewJSONSlice(in.CompletionPhotos),
			SignatureData:        *in.SignatureData,
			GPSLat:               *in.GPSLat,
			GPSLng:               *in.GPSLng,
			GPSTimestamp:         now,
			CompletionNotes:      in.CompletionNotes,
			CompletedAt:          now,
			CustomerSatisfaction: in.CustomerSatisfaction,
		}
		if err := tx.Create(&completion).Error; err != nil {
			if isDuplicateKey(err) {
				return ConflictError("TIME_SLOT_ALREADY_COMPLETED", "Time slot is already completed")
			}
			return InternalError("Failed to create job completion", err)
		}

		// A sibling slot may already have completed the order.
		if order.Status != models.OrderStatusCompleted {
			if err := transitionOrder(tx, order, models.OrderStatusCompleted); err != nil {
				return err
			}
		}
		return transitionSlot(tx, slot, models.SlotStatusCompleted, nil)
	})
	if err != nil {
		return nil, passthrough(err, "Failed to record job completion")
	}

	s.attachPhotoURLs(ctx, &completion)
	return &completion, nil
}

// Get returns the completion with the given id
func (s *CompletionService) Get(ctx context.Context, id uint) (*models.JobCompletion, error) {
	var completion models.JobCompletion
	if err := s.db.WithContext(ctx).First(&completion, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundError("COMPLETION_NOT_FOUND", "Job completion not found")
		}
		return nil, InternalError("Failed to fetch job completion", err)
	}
	s.attachPhotoURLs(ctx, &completion)
	return &completion, nil
}

// List returns completions, newest first
func (s *CompletionService) List(ctx context.Context, filter CompletionFilter, page Page) ([]models.JobCompletion, error) {
	page = page.clamp(defaultCompletionLimit, maxCompletionLimit)

	query := s.db.WithContext(ctx).Model(&models.JobCompletion{})
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.SubcontractorID != nil {
		query = query.Where("subcontractor_id = ?", *filter.SubcontractorID)
	}

	completions := []models.JobCompletion{}
	err := query.
		Order("completed_at DESC").
		Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&completions).Error
	if err != nil {
		return nil, InternalError("Failed to fetch job completions", err)
	}

	for i := range completions {
		s.attachPhotoURLs(ctx, &completions[i])
	}
	return completions, nil
}

// attachPhotoURLs fills PhotoURLs for photos held in storage. A photo whose
// URL cannot be generated is logged and skipped.
func (s *CompletionService) attachPhotoURLs(ctx context.Context, completion *models.JobCompletion) {
	if s.photos == nil {
		return
	}
	for _, ref := range completion.CompletionPhotos {
		if !IsStoredPhoto(ref) {
			continue
		}
		url, err := s.photos.PhotoURL(ctx, ref)
		if err != nil {
			log.Printf("Failed to generate photo URL for completion %d: %v", completion.ID, err)
			continue
		}
		completion.PhotoURLs = append(completion.PhotoURLs, url)
	}
}
