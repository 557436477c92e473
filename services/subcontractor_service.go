package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jaswantjat/field-service-os/models"
)

const (
	defaultSubcontractorLimit = 50
	maxSubcontractorLimit     = 100
)

// SubcontractorInput carries the fields of a subcontractor create or update
type SubcontractorInput struct {
	Name         *string  `json:"name"`
	Email        *string  `json:"email"`
	Phone        *string  `json:"phone"`
	ServiceAreas []string `json:"service_areas"`
	MaxDailyJobs *int     `json:"max_daily_jobs"`
	Rating       *float64 `json:"rating"`
	Active       *bool    `json:"active"`
}

// SubcontractorPatch is a partial subcontractor update
type SubcontractorPatch struct {
	SubcontractorInput
	ID        json.RawMessage `json:"id"`
	CreatedAt json.RawMessage `json:"created_at"`
}

// SubcontractorFilter narrows a subcontractor listing
type SubcontractorFilter struct {
	Active      *bool
	ServiceArea string
	Search      string
}

// SubcontractorCapacity is a subcontractor with its load on one date
type SubcontractorCapacity struct {
	models.Subcontractor
	Date              string `json:"date"`
	CurrentDailyJobs  int64  `json:"current_daily_jobs"`
	AvailableCapacity int64  `json:"available_capacity"`
}

// SubcontractorService manages the subcontractor registry
type SubcontractorService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSubcontractorService creates a SubcontractorService backed by db
func NewSubcontractorService(db *gorm.DB) *SubcontractorService {
	return &SubcontractorService{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (in *SubcontractorInput) validate(partial bool) error {
	if in.Name != nil || !partial {
		if isBlank(in.Name) {
			return ValidationError("name", "MISSING_NAME", "Name is required and must be a non-empty string")
		}
		*in.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil || !partial {
		if isBlank(in.Email) {
			return ValidationError("email", "MISSING_EMAIL", "Email is required")
		}
		*in.Email = normalizeEmail(*in.Email)
		if !validEmail(*in.Email) {
			return ValidationError("email", "INVALID_EMAIL_FORMAT", "Invalid email format")
		}
	}
	if in.Phone != nil || !partial {
		if isBlank(in.Phone) {
			return ValidationError("phone", "MISSING_PHONE", "Phone is required and must be a non-empty string")
		}
		*in.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.ServiceAreas != nil || !partial {
		if len(in.ServiceAreas) == 0 {
			return ValidationError("service_areas", "INVALID_SERVICE_AREAS", "Service areas must be a non-empty array")
		}
		areas := make([]string, 0, len(in.ServiceAreas))
		for _, area := range in.ServiceAreas {
			area = strings.TrimSpace(area)
			if area == "" {
				return ValidationError("service_areas", "INVALID_SERVICE_AREA_FORMAT", "All service areas must be non-empty strings")
			}
			areas = append(areas, area)
		}
		in.ServiceAreas = areas
	}
	if in.MaxDailyJobs != nil || !partial {
		if in.MaxDailyJobs == nil || *in.MaxDailyJobs <= 0 {
			return ValidationError("max_daily_jobs", "INVALID_MAX_DAILY_JOBS", "Max daily jobs must be a positive integer")
		}
	}
	if in.Rating != nil && (!validFloat(*in.Rating) || *in.Rating < 0 || *in.Rating > 5) {
		return ValidationError("rating", "INVALID_RATING", "Rating must be a number between 0 and 5")
	}
	return nil
}

// emailTaken reports whether another subcontractor already uses email
func emailTaken(tx *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	query := tx.Model(&models.Subcontractor{}).Where("email = ?", email)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, InternalError("Failed to check email", err)
	}
	return count > 0, nil
}

func emailExistsError() *Error {
	return UniquenessError("email", "EMAIL_EXISTS", "Email already exists")
}

// Create registers a new subcontractor. The friendly duplicate check runs
// first; the unique index on email is what actually guarantees uniqueness.
func (s *SubcontractorService) Create(ctx context.Context, in SubcontractorInput) (*models.Subcontractor, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	taken, err := emailTaken(db, *in.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, emailExistsError()
	}

	sub := models.Subcontractor{
		Name:         *in.Name,
		Email:        *in.Email,
		Phone:        *in.Phone,
		ServiceAreas: datatypes.NewJSONSlice(in.ServiceAreas),
		MaxDailyJobs: *in.MaxDailyJobs,
		Active:       true,
	}
	if in.Rating != nil {
		sub.Rating = *in.Rating
	}
	if in.Active != nil {
		sub.Active = *in.Active
	}

	if err := db.Create(&sub).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, emailExistsError()
		}
		return nil, InternalError("Failed to create subcontractor", err)
	}
	return &sub, nil
}

// Get returns a subcontractor with its committed jobs on date. An empty date
// means today (UTC).
func (s *SubcontractorService) Get(ctx context.Context, id uint, date string) (*SubcontractorCapacity, error) {
	if date == "" {
		date = s.now().Format(models.SlotDateLayout)
	} else if !validSlotDate(date) {
		return nil, ValidationError("date", "INVALID_DATE_FORMAT", "Date must be in YYYY-MM-DD format")
	}

	db := s.db.WithContext(ctx)
	var sub models.Subcontractor
	if err := db.First(&sub, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundError("SUBCONTRACTOR_NOT_FOUND", "Subcontractor not found")
		}
		return nil, InternalError("Failed to fetch subcontractor", err)
	}

	committed, err := committedJobs(db, sub.ID, date)
	if err != nil {
		return nil, err
	}

	available := int64(sub.MaxDailyJobs) - committed
	if available < 0 {
		available = 0
	}
	return &SubcontractorCapacity{
		Subcontractor:     sub,
		Date:              date,
		CurrentDailyJobs:  committed,
		AvailableCapacity: available,
	}, nil
}

// List returns subcontractors best rated first. Service areas live in a JSON
// column, so the area filter runs after the query.
func (s *SubcontractorService) List(ctx context.Context, filter SubcontractorFilter, page Page) ([]models.Subcontractor, error) {
	page = page.clamp(defaultSubcontractorLimit, maxSubcontractorLimit)

	query := s.db.WithContext(ctx).Model(&models.Subcontractor{})
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	query = query.Order("rating DESC").Order("name ASC").Order("id ASC")

	subs := []models.Subcontractor{}
	if filter.ServiceArea == "" {
		if err := query.Limit(page.Limit).Offset(page.Offset).Find(&subs).Error; err != nil {
			return nil, InternalError("Failed to fetch subcontractors", err)
		}
		return subs, nil
	}

	if err := query.Find(&subs).Error; err != nil {
		return nil, InternalError("Failed to fetch subcontractors", err)
	}
	matching := make([]models.Subcontractor, 0, len(subs))
	for _, sub := range subs {
		if sub.ServesArea(filter.ServiceArea) {
			matching = append(matching, sub)
		}
	}
	return paginate(matching, page), nil
}

// Update applies a partial update to a subcontractor
func (s *SubcontractorService) Update(ctx context.Context, id uint, patch SubcontractorPatch) (*models.Subcontractor, error) {
	if len(patch.ID) > 0 {
		return nil, ValidationError("id", "FORBIDDEN_FIELD_UPDATE", "Cannot update id field")
	}
	if len(patch.CreatedAt) > 0 {
		return nil, ValidationError("created_at", "FORBIDDEN_FIELD_UPDATE", "Cannot update created_at field")
	}

	var sub models.Subcontractor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFoundError("SUBCONTRACTOR_NOT_FOUND", "Subcontractor not found")
			}
			return InternalError("Failed to fetch subcontractor", err)
		}

		in := patch.SubcontractorInput
		if err := in.validate(true); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if in.Name != nil {
			updates["name"] = *in.Name
		}
		if in.Email != nil {
			taken, err := emailTaken(tx, *in.Email, id)
			if err != nil {
				return err
			}
			if taken {
				return emailExistsError()
			}
			updates["email"] = *in.Email
		}
		if in.Phone != nil {
			updates["phone"] = *in.Phone
		}
		if in.ServiceAreas != nil {
			updates["service_areas"] = datatypes.NewJSONSlice(in.ServiceAreas)
		}
		if in.MaxDailyJobs != nil {
			updates["max_daily_jobs"] = *in.MaxDailyJobs
		}
		if in.Rating != nil {
			updates["rating"] = *in.Rating
		}
		if in.Active != nil {
			updates["active"] = *in.Active
		}
		if len(updates) == 0 {
			return ValidationError("", "NO_UPDATES", "No valid fields provided for update")
		}

		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			if isDuplicateKey(err) {
				return emailExistsError()
			}
			return InternalError("Failed to update subcontractor", err)
		}
		if err := tx.First(&sub, id).Error; err != nil {
			return InternalError("Failed to reload subcontractor", err)
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "Failed to update subcontractor")
	}
	return &sub, nil
}
