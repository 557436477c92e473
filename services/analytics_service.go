package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jaswantjat/field-service-os/models"
)

const (
	topSubcontractorLimit = 10
	maxSummaryEvents      = 100
)

// AnalyticsFilter bounds a summary. Dates are inclusive calendar days or
// exact RFC 3339 instants.
type AnalyticsFilter struct {
	StartDate string
	EndDate   string
	EventType string
}

// Summary is the aggregated reporting view over orders, completions and events
type Summary struct {
	Summary             SummaryCounts           `json:"summary"`
	OrdersByStatus      map[string]int64        `json:"orders_by_status"`
	OrdersByPriority    map[string]int64        `json:"orders_by_priority"`
	OrdersByServiceType map[string]int64        `json:"orders_by_service_type"`
	TopSubcontractors   []TopSubcontractor      `json:"top_subcontractors"`
	Events              []models.AnalyticsEvent `json:"events,omitempty"`
}

// SummaryCounts are the headline numbers of a summary
type SummaryCounts struct {
	TotalOrders        int64   `json:"total_orders"`
	CompletedOrders    int64   `json:"completed_orders"`
	CompletionRate     float64 `json:"completion_rate"` // percent
	GhostJobs          int64   `json:"ghost_jobs"`
	DoubleBookings     int64   `json:"double_bookings"`
	Cancellations      int64   `json:"cancellations"`
	CapacityViolations int     `json:"capacity_violations"`
}

// TopSubcontractor ranks a subcontractor by completed jobs
type TopSubcontractor struct {
	SubcontractorID uint     `json:"subcontractor_id"`
	Name            string   `json:"name"`
	CompletionCount int64    `json:"completion_count"`
	AvgRating       *float64 `json:"avg_rating"`
}

// DoubleBooking is a subcontractor holding more committed slots on a date
// than their capacity allows
type DoubleBooking struct {
	SubcontractorID uint   `json:"subcontractor_id"`
	Name            string `json:"name"`
	SlotDate        string `json:"slot_date"`
	Committed       int64  `json:"committed"`
	MaxDailyJobs    int    `json:"max_daily_jobs"`
}

// EventInput is an externally reported analytics event
type EventInput struct {
	EventType       string                 `json:"event_type"`
	OrderID         *uint                  `json:"order_id"`
	SubcontractorID *uint                  `json:"subcontractor_id"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// AnalyticsService computes read-side reporting and accepts observational events
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates an AnalyticsService backed by db
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// timeRange is a half-open [from, to) interval; zero bounds are open
type timeRange struct {
	from time.Time
	to   time.Time
}

func (f AnalyticsFilter) timeRange() (timeRange, error) {
	var r timeRange
	if f.StartDate != "" {
		start, ok := ParseDate(f.StartDate)
		if !ok {
			return r, ValidationError("start_date", "INVALID_DATE_FORMAT", "start_date must be YYYY-MM-DD or an RFC 3339 timestamp")
		}
		r.from = start
	}
	if f.EndDate != "" {
		end, ok := ParseDate(f.EndDate)
		if !ok {
			return r, ValidationError("end_date", "INVALID_DATE_FORMAT", "end_date must be YYYY-MM-DD or an RFC 3339 timestamp")
		}
		if validSlotDate(strings.TrimSpace(f.EndDate)) {
			// a calendar end date includes the whole day
			end = end.AddDate(0, 0, 1)
		} else {
			end = end.Add(time.Nanosecond)
		}
		r.to = end
	}
	if !r.from.IsZero() && !r.to.IsZero() && !r.from.Before(r.to) {
		return r, ValidationError("end_date", "INVALID_DATE_RANGE", "end_date must not be before start_date")
	}
	return r, nil
}

func (r timeRange) apply(query *gorm.DB, column string) *gorm.DB {
	if !r.from.IsZero() {
		query = query.Where(column+" >= ?", r.from)
	}
	if !r.to.IsZero() {
		query = query.Where(column+" < ?", r.to)
	}
	return query
}

// slotDates converts the range to inclusive slot_date bounds
func (r timeRange) slotDates() (from, to string) {
	if !r.from.IsZero() {
		from = r.from.Format(models.SlotDateLayout)
	}
	if !r.to.IsZero() {
		to = r.to.Add(-time.Nanosecond).Format(models.SlotDateLayout)
	}
	return from, to
}

// roundHalfUp rounds to 2 decimal places, halves away from zero
func roundHalfUp(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// CompletionRate returns completed/total as a percentage with 2 decimals
func CompletionRate(completed, total int64) float64 {
	if total == 0 {
		return 0
	}
	return roundHalfUp(decimal.NewFromInt(completed).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(total)))
}

// Summary aggregates orders, completions and events over the filter's range
func (s *AnalyticsService) Summary(ctx context.Context, filter AnalyticsFilter) (*Summary, error) {
	if filter.EventType != "" && !contains(models.EventTypes, filter.EventType) {
		return nil, invalidEventType()
	}
	r, err := filter.timeRange()
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	out := &Summary{
		OrdersByStatus:      map[string]int64{},
		OrdersByPriority:    map[string]int64{},
		OrdersByServiceType: map[string]int64{},
		TopSubcontractors:   []TopSubcontractor{},
	}

	orders := func() *gorm.DB { return r.apply(db.Model(&models.Order{}), "created_at") }
	if err := orders().Count(&out.Summary.TotalOrders).Error; err != nil {
		return nil, InternalError("Failed to count orders", err)
	}
	if err := orders().Where("status = ?", models.OrderStatusCompleted).Count(&out.Summary.CompletedOrders).Error; err != nil {
		return nil, InternalError("Failed to count completed orders", err)
	}
	out.Summary.CompletionRate = CompletionRate(out.Summary.CompletedOrders, out.Summary.TotalOrders)

	for column, target := range map[string]map[string]int64{
		"status":       out.OrdersByStatus,
		"priority":     out.OrdersByPriority,
		"service_type": out.OrdersByServiceType,
	} {
		var rows []struct {
			GroupKey string
			Total    int64
		}
		err := orders().Select(column + " AS group_key, COUNT(*) AS total").Group(column).Scan(&rows).Error
		if err != nil {
			return nil, InternalError("Failed to group orders", err)
		}
		for _, row := range rows {
			target[row.GroupKey] = row.Total
		}
	}

	eventCounts := map[string]*int64{
		models.EventGhostJob:     &out.Summary.GhostJobs,
		models.EventDoubleBook:   &out.Summary.DoubleBookings,
		models.EventCancellation: &out.Summary.Cancellations,
	}
	for eventType, dst := range eventCounts {
		query := r.apply(db.Model(&models.AnalyticsEvent{}), "created_at").Where("event_type = ?", eventType)
		if err := query.Count(dst).Error; err != nil {
			return nil, InternalError("Failed to count analytics events", err)
		}
	}

	from, to := r.slotDates()
	violations, err := s.doubleBookings(db, from, to)
	if err != nil {
		return nil, err
	}
	out.Summary.CapacityViolations = len(violations)

	top, err := s.topSubcontractors(db, r)
	if err != nil {
		return nil, err
	}
	out.TopSubcontractors = top

	if filter.EventType != "" {
		events := []models.AnalyticsEvent{}
		err := r.apply(db.Model(&models.AnalyticsEvent{}), "created_at").
			Where("event_type = ?", filter.EventType).
			Order("created_at DESC").
			Order("id DESC").
			Limit(maxSummaryEvents).
			Find(&events).Error
		if err != nil {
			return nil, InternalError("Failed to fetch analytics events", err)
		}
		out.Events = events
	}

	return out, nil
}

// topSubcontractors ranks subcontractors by completions in range. AVG skips
// completions without a satisfaction score.
func (s *AnalyticsService) topSubcontractors(db *gorm.DB, r timeRange) ([]TopSubcontractor, error) {
	var rows []struct {
		SubcontractorID uint
		Name            string
		CompletionCount int64
		AvgRating       *float64
	}
	query := db.Table("job_completions AS jc").
		Select("jc.subcontractor_id AS subcontractor_id, s.name AS name, COUNT(*) AS completion_count, AVG(jc.customer_satisfaction) AS avg_rating").
		Joins("JOIN subcontractors s ON s.id = jc.subcontractor_id")
	query = r.apply(query, "jc.completed_at")
	err := query.
		Group("jc.subcontractor_id, s.name").
		Order("completion_count DESC").
		Order("jc.subcontractor_id ASC").
		Limit(topSubcontractorLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, InternalError("Failed to rank subcontractors", err)
	}

	top := make([]TopSubcontractor, 0, len(rows))
	for _, row := range rows {
		entry := TopSubcontractor{
			SubcontractorID: row.SubcontractorID,
			Name:            row.Name,
			CompletionCount: row.CompletionCount,
		}
		if row.AvgRating != nil {
			avg := roundHalfUp(decimal.NewFromFloat(*row.AvgRating))
			entry.AvgRating = &avg
		}
		top = append(top, entry)
	}
	return top, nil
}

// DoubleBookings lists every (subcontractor, date) whose committed slots
// exceed max_daily_jobs. Claims through the claim engine cannot produce one,
// so any row here means a write bypassed admission control. An empty date
// checks all dates.
func (s *AnalyticsService) DoubleBookings(ctx context.Context, date string) ([]DoubleBooking, error) {
	if date != "" && !validSlotDate(date) {
		return nil, ValidationError("date", "INVALID_DATE_FORMAT", "Date must be in YYYY-MM-DD format")
	}
	return s.doubleBookings(s.db.WithContext(ctx), date, date)
}

func (s *AnalyticsService) doubleBookings(db *gorm.DB, from, to string) ([]DoubleBooking, error) {
	query := db.Table("time_slots AS ts").
		Select("ts.subcontractor_id AS subcontractor_id, s.name AS name, ts.slot_date AS slot_date, COUNT(*) AS committed, s.max_daily_jobs AS max_daily_jobs").
		Joins("JOIN subcontractors s ON s.id = ts.subcontractor_id").
		Where("ts.subcontractor_id IS NOT NULL AND ts.status <> ?", models.SlotStatusCancelled)
	if from != "" {
		query = query.Where("ts.slot_date >= ?", from)
	}
	if to != "" {
		query = query.Where("ts.slot_date <= ?", to)
	}

	bookings := []DoubleBooking{}
	err := query.
		Group("ts.subcontractor_id, s.name, ts.slot_date, s.max_daily_jobs").
		Having("COUNT(*) > s.max_daily_jobs").
		Order("ts.slot_date ASC").
		Order("ts.subcontractor_id ASC").
		Scan(&bookings).Error
	if err != nil {
		return nil, InternalError("Failed to compute double bookings", err)
	}
	return bookings, nil
}

// RecordEvent stores an externally reported event. Events are observational
// and never change scheduling state.
func (s *AnalyticsService) RecordEvent(ctx context.Context, in EventInput) (*models.AnalyticsEvent, error) {
	in.EventType = strings.TrimSpace(in.EventType)
	if in.EventType == "" {
		return nil, ValidationError("event_type", "MISSING_EVENT_TYPE", "Event type is required")
	}
	if !contains(models.EventTypes, in.EventType) {
		return nil, invalidEventType()
	}

	db := s.db.WithContext(ctx)
	if in.OrderID != nil {
		var count int64
		if err := db.Model(&models.Order{}).Where("id = ?", *in.OrderID).Count(&count).Error; err != nil {
			return nil, InternalError("Failed to verify order", err)
		}
		if count == 0 {
			return nil, NotFoundError("ORDER_NOT_FOUND", "Order not found")
		}
	}
	if in.SubcontractorID != nil {
		var count int64
		if err := db.Model(&models.Subcontractor{}).Where("id = ?", *in.SubcontractorID).Count(&count).Error; err != nil {
			return nil, InternalError("Failed to verify subcontractor", err)
		}
		if count == 0 {
			return nil, NotFoundError("SUBCONTRACTOR_NOT_FOUND", "Subcontractor not found")
		}
	}

	metadata := datatypes.JSONMap{}
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	event := models.AnalyticsEvent{
		EventType:       in.EventType,
		OrderID:         in.OrderID,
		SubcontractorID: in.SubcontractorID,
		Metadata:        metadata,
	}
	if err := db.Create(&event).Error; err != nil {
		return nil, InternalError("Failed to record analytics event", err)
	}
	return &event, nil
}

func invalidEventType() *Error {
	return ValidationError("event_type", "INVALID_EVENT_TYPE",
		fmt.Sprintf("Event type must be one of: %s", strings.Join(models.EventTypes, ", ")))
}
