package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaswantjat/field-service-os/models"
	"github.com/jaswantjat/field-service-os/tests/testutil"
)

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		completed, total int64
		want             float64
	}{
		{0, 0, 0},
		{0, 4, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{1, 8, 12.5},
		{5, 5, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompletionRate(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}

func TestAnalyticsService_Summary(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewAnalyticsService(db)
	completions := NewCompletionService(db, nil)
	ctx := context.Background()

	first := newClaimedJob(t, db)
	second := newClaimedJob(t, db)
	testutil.CreateOrder(t, db, func(o *models.Order) {
		o.Priority = models.PriorityUrgent
		o.ServiceType = models.ServiceTypeRepair
	})

	in := completionInput(first)
	in.CustomerSatisfaction = ptr(4)
	_, err := completions.Record(ctx, in)
	require.NoError(t, err)

	in = completionInput(second)
	in.CustomerSatisfaction = ptr(5)
	_, err = completions.Record(ctx, in)
	require.NoError(t, err)

	sibling := testutil.CreateSlot(t, db, first.order.ID, "2025-06-02", testutil.ClaimedBy(first.sub.ID))
	in = completionInput(first)
	in.TimeSlotID = ptr(sibling.ID)
	_, err = completions.Record(ctx, in)
	require.NoError(t, err)

	for _, eventType := range []string{models.EventGhostJob, models.EventGhostJob, models.EventCancellation} {
		_, err := svc.RecordEvent(ctx, EventInput{EventType: eventType})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, AnalyticsFilter{})
	require.NoError(t, err)

	assert.EqualValues(t, 3, summary.Summary.TotalOrders)
	assert.EqualValues(t, 2, summary.Summary.CompletedOrders)
	assert.Equal(t, 66.67, summary.Summary.CompletionRate)
	assert.EqualValues(t, 2, summary.Summary.GhostJobs)
	assert.EqualValues(t, 1, summary.Summary.Cancellations)
	assert.EqualValues(t, 0, summary.Summary.DoubleBookings)
	assert.Zero(t, summary.Summary.CapacityViolations)

	assert.Equal(t, map[string]int64{"completed": 2, "unassigned": 1}, summary.OrdersByStatus)
	assert.Equal(t, map[string]int64{"medium": 2, "urgent": 1}, summary.OrdersByPriority)
	assert.Equal(t, map[string]int64{"Installation": 2, "Repair": 1}, summary.OrdersByServiceType)

	require.Len(t, summary.TopSubcontractors, 2)
	assert.Equal(t, first.sub.ID, summary.TopSubcontractors[0].SubcontractorID)
	assert.EqualValues(t, 2, summary.TopSubcontractors[0].CompletionCount)
	require.NotNil(t, summary.TopSubcontractors[0].AvgRating)
	assert.Equal(t, 4.0, *summary.TopSubcontractors[0].AvgRating)
	assert.Equal(t, second.sub.ID, summary.TopSubcontractors[1].SubcontractorID)

	assert.Nil(t, summary.Events, "events are only listed for an event_type filter")
}

func TestAnalyticsService_SummaryDateRange(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewAnalyticsService(db)
	ctx := context.Background()

	at := func(day string) func(*models.Order) {
		return func(o *models.Order) {
			ts, err := time.Parse(time.RFC3339, day+"T12:00:00Z")
			require.NoError(t, err)
			o.CreatedAt = ts
		}
	}
	testutil.CreateOrder(t, db, at("2025-05-31"))
	testutil.CreateOrder(t, db, at("2025-06-01"))
	testutil.CreateOrder(t, db, at("2025-06-02"))
	testutil.CreateOrder(t, db, at("2025-06-03"))

	summary, err := svc.Summary(ctx, AnalyticsFilter{StartDate: "2025-06-01", EndDate: "2025-06-02"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Summary.TotalOrders, "end date includes the whole day")

	summary, err = svc.Summary(ctx, AnalyticsFilter{StartDate: "2025-06-01T13:00:00Z"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Summary.TotalOrders)

	summary, err = svc.Summary(ctx, AnalyticsFilter{EndDate: "2025-06-01T12:00:00Z"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Summary.TotalOrders, "an exact end instant is inclusive")
}

func TestAnalyticsService_SummaryValidation(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewAnalyticsService(db)

	tests := []struct {
		name   string
		filter AnalyticsFilter
		code   string
	}{
		{"bad start", AnalyticsFilter{StartDate: "yesterday"}, "INVALID_DATE_FORMAT"},
		{"bad end", AnalyticsFilter{EndDate: "2025-13-01"}, "INVALID_DATE_FORMAT"},
		{"reversed", AnalyticsFilter{StartDate: "2025-06-05", EndDate: "2025-06-01"}, "INVALID_DATE_RANGE"},
		{"bad event type", AnalyticsFilter{EventType: "no_show"}, "INVALID_EVENT_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Summary(context.Background(), tt.filter)
			requireCode(t, err, KindValidation, tt.code)
		})
	}
}

func TestAnalyticsService_SummaryEvents(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewAnalyticsService(db)
	ctx := context.Background()
	order := testutil.CreateOrder(t, db)

	_, err := svc.RecordEvent(ctx, EventInput{EventType: models.EventGhostJob, OrderID: &order.ID})
	require.NoError(t, err)
	_, err = svc.RecordEvent(ctx, EventInput{EventType: models.EventDoubleBook})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, AnalyticsFilter{EventType: models.EventGhostJob})
	require.NoError(t, err)
	require.Len(t, summary.Events, 1)
	assert.Equal(t, models.EventGhostJob, summary.Events[0].EventType)
	assert.EqualValues(t, 1, summary.Summary.DoubleBookings)
}

func TestAnalyticsService_DoubleBookings(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewAnalyticsService(db)
	ctx := context.Background()

	over := testutil.CreateSubcontractor(t, db, func(s *models.Subcontractor) { s.MaxDailyJobs = 1 })
	fine := testutil.CreateSubcontractor(t, db, func(s *models.Subcontractor) { s.MaxDailyJobs = 2 })
	order := testutil.CreateOrder(t, db)

	// written directly, bypassing the claim engine
	testutil.CreateSlot(t, db, order.ID, slotDay, testutil.ClaimedBy(over.ID))
	testutil.CreateSlot(t, db, order.ID, slotDay, testutil.ClaimedBy(over.ID))
	testutil.CreateSlot(t, db, order.ID, slotDay, testutil.ClaimedBy(fine.ID))
	testutil.CreateSlot(t, db, order.ID, slotDay, testutil.ClaimedBy(fine.ID))
	testutil.CreateSlot(t, db, order.ID, "2025-06-02", testutil.ClaimedBy(over.ID))
	testutil.CreateSlot(t, db, order.ID, "2025-06-02", testutil.ClaimedBy(over.ID), func(s *models.TimeSlot) {
		s.Status = models.SlotStatusCancelled
	})

	bookings, err := svc.DoubleBookings(ctx, "")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, over.ID, bookings[0].SubcontractorID)
	assert.Equal(t, slotDay, bookings[0].SlotDate)
	assert.EqualValues(t, 2, bookings[0].Committed)
	assert.Equal(t, 1, bookings[0].MaxDailyJobs)

	bookings, err = svc.DoubleBookings(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.Empty(t, bookings)

	_, err = svc.DoubleBookings(ctx, "June 1")
	requireCode(t, err, KindValidation, "INVALID_DATE_FORMAT")

	summary, err := svc.Summary(ctx, AnalyticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Summary.CapacityViolations)
}

func TestAnalyticsService_RecordEvent(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewAnalyticsService(db)
	ctx := context.Background()
	order := testutil.CreateOrder(t, db)
	sub := testutil.CreateSubcontractor(t, db)

	event, err := svc.RecordEvent(ctx, EventInput{
		EventType:       " " + models.EventGhostJob + " ",
		OrderID:         &order.ID,
		SubcontractorID: &sub.ID,
		Metadata:        map[string]interface{}{"reason": "no access"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventGhostJob, event.EventType)
	assert.Equal(t, "no access", event.Metadata["reason"])

	event, err = svc.RecordEvent(ctx, EventInput{EventType: models.EventCompletion})
	require.NoError(t, err)
	assert.NotNil(t, event.Metadata)
	assert.Empty(t, event.Metadata)

	_, err = svc.RecordEvent(ctx, EventInput{})
	requireCode(t, err, KindValidation, "MISSING_EVENT_TYPE")

	_, err = svc.RecordEvent(ctx, EventInput{EventType: "teleport"})
	requireCode(t, err, KindValidation, "INVALID_EVENT_TYPE")

	_, err = svc.RecordEvent(ctx, EventInput{EventType: models.EventGhostJob, OrderID: ptr(uint(9999))})
	requireCode(t, err, KindNotFound, "ORDER_NOT_FOUND")

	_, err = svc.RecordEvent(ctx, EventInput{EventType: models.EventGhostJob, SubcontractorID: ptr(uint(9999))})
	requireCode(t, err, KindNotFound, "SUBCONTRACTOR_NOT_FOUND")
}
