// Package seed loads demo data through the same services the API uses, so
// every seeded claim and completion passes the dispatch rules.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/jaswantjat/field-service-os/models"
	"github.com/jaswantjat/field-service-os/services"
)

// Result counts what a run inserted
type Result struct {
	Subcontractors int
	Orders         int
	TimeSlots      int
	Events         int

	// Skipped subcontractors already existed
	Skipped int
}

type demoCrew struct {
	name    string
	email   string
	phone   string
	areas   []string
	maxJobs int
	rating  float64
}

type demoOrder struct {
	customer    string
	email       string
	address     string
	city        string
	lat, lng    float64
	serviceType string
	priority    string
	duration    int
	items       []models.InventoryItem
	dueInDays   int

	// crew claims the first slot when set
	crew string
	// complete marks the claimed job done
	complete bool
}

var crews = []demoCrew{
	{"Lone Star Solar Crew", "dispatch@lonestarsolar.example.com", "512-555-0142", []string{"Austin", "Round Rock"}, 3, 4.7},
	{"Bayou Installers", "jobs@bayouinstallers.example.com", "713-555-0190", []string{"Houston"}, 2, 4.4},
	{"Hill Country Electric", "ops@hillcountry.example.com", "512-555-0177", []string{"Austin", "San Marcos"}, 4, 4.9},
}

var orders = []demoOrder{
	{
		customer:    "Dana Reyes",
		email:       "dana.reyes@example.com",
		address:     "400 Lavaca St",
		city:        "Austin",
		lat:         30.2676,
		lng:         -97.7452,
		serviceType: models.ServiceTypeInstallation,
		priority:    models.PriorityUrgent,
		duration:    240,
		dueInDays:   2,
		items:       []models.InventoryItem{{Name: "Solar panel", Quantity: 12, InStock: true}, {Name: "Inverter", Quantity: 1, InStock: true}},
		crew:        "dispatch@lonestarsolar.example.com",
		complete:    true,
	},
	{
		customer:    "Marcus Bell",
		email:       "marcus.bell@example.com",
		address:     "1200 Main St",
		city:        "Houston",
		lat:         29.7545,
		lng:         -95.3650,
		serviceType: models.ServiceTypeRepair,
		priority:    models.PriorityHigh,
		duration:    90,
		dueInDays:   3,
		items:       []models.InventoryItem{{Name: "Breaker", Quantity: 2, InStock: true}},
		crew:        "jobs@bayouinstallers.example.com",
	},
	{
		customer:    "Priya Natarajan",
		email:       "priya.n@example.com",
		address:     "88 Sessom Dr",
		city:        "San Marcos",
		lat:         29.8884,
		lng:         -97.9384,
		serviceType: models.ServiceTypeDelivery,
		priority:    models.PriorityMedium,
		duration:    60,
		dueInDays:   5,
		items:       []models.InventoryItem{{Name: "Battery pack", Quantity: 1, InStock: false}},
	},
	{
		customer:    "Tom Alvarez",
		email:       "tom.alvarez@example.com",
		address:     "310 E Main St",
		city:        "Round Rock",
		lat:         30.5083,
		lng:         -97.6789,
		serviceType: models.ServiceTypeInstallation,
		priority:    models.PriorityLow,
		duration:    180,
		dueInDays:   7,
		items:       []models.InventoryItem{{Name: "Mounting rail", Quantity: 6, InStock: true}},
	},
}

var slotWindows = [][2]string{{"08:00", "10:00"}, {"13:00", "15:00"}}

// Run inserts the demo data. Subcontractors are matched by email and demo
// orders by customer email, so repeated runs insert nothing new.
func Run(ctx context.Context, db *gorm.DB) (*Result, error) {
	return run(ctx, db, time.Now().UTC())
}

func run(ctx context.Context, db *gorm.DB, now time.Time) (*Result, error) {
	result := &Result{}
	subcontractorSvc := services.NewSubcontractorService(db)
	orderSvc := services.NewOrderService(db)
	slotSvc := services.NewTimeSlotService(db)
	completionSvc := services.NewCompletionService(db, nil)
	analyticsSvc := services.NewAnalyticsService(db)

	crewIDs := make(map[string]uint, len(crews))
	for _, crew := range crews {
		var existing models.Subcontractor
		err := db.WithContext(ctx).Where("email = ?", crew.email).First(&existing).Error
		if err == nil {
			crewIDs[crew.email] = existing.ID
			result.Skipped++
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("looking up %s: %w", crew.email, err)
		}

		sub, err := subcontractorSvc.Create(ctx, services.SubcontractorInput{
			Name:         ptr(crew.name),
			Email:        ptr(crew.email),
			Phone:        ptr(crew.phone),
			ServiceAreas: crew.areas,
			MaxDailyJobs: ptr(crew.maxJobs),
			Rating:       ptr(crew.rating),
		})
		if err != nil {
			return nil, fmt.Errorf("creating subcontractor %s: %w", crew.email, err)
		}
		crewIDs[crew.email] = sub.ID
		result.Subcontractors++
	}

	for _, demo := range orders {
		var count int64
		if err := db.WithContext(ctx).Model(&models.Order{}).Where("customer_email = ?", demo.email).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("looking up order for %s: %w", demo.email, err)
		}
		if count > 0 {
			continue
		}
		if err := seedOrder(ctx, demo, now, crewIDs, orderSvc, slotSvc, completionSvc, analyticsSvc, result); err != nil {
			return nil, err
		}
	}

	log.Printf("Seed complete: %d subcontractors, %d orders, %d slots, %d events",
		result.Subcontractors, result.Orders, result.TimeSlots, result.Events)
	return result, nil
}

func seedOrder(
	ctx context.Context,
	demo demoOrder,
	now time.Time,
	crewIDs map[string]uint,
	orderSvc *services.OrderService,
	slotSvc *services.TimeSlotService,
	completionSvc *services.CompletionService,
	analyticsSvc *services.AnalyticsService,
	result *Result,
) error {
	items := make([]services.InventoryItemInput, 0, len(demo.items))
	for _, item := range demo.items {
		items = append(items, services.InventoryItemInput{
			Name:     ptr(item.Name),
			Quantity: ptr(item.Quantity),
			InStock:  ptr(item.InStock),
		})
	}
	inventory := models.InventoryStatusAvailable
	for _, item := range demo.items {
		if !item.InStock {
			inventory = models.InventoryStatusUnavailable
		}
	}

	order, err := orderSvc.Create(ctx, services.OrderInput{
		CustomerName:      ptr(demo.customer),
		CustomerEmail:     ptr(demo.email),
		CustomerPhone:     ptr("555-0100"),
		Address:           ptr(demo.address),
		City:              ptr(demo.city),
		LocationLat:       ptr(demo.lat),
		LocationLng:       ptr(demo.lng),
		ServiceType:       ptr(demo.serviceType),
		InventoryItems:    items,
		InventoryStatus:   ptr(inventory),
		Priority:          ptr(demo.priority),
		EstimatedDuration: ptr(demo.duration),
		DueDate:           ptr(now.AddDate(0, 0, demo.dueInDays).Format(models.SlotDateLayout)),
	})
	if err != nil {
		return fmt.Errorf("creating order for %s: %w", demo.email, err)
	}
	result.Orders++

	slotDate := now.AddDate(0, 0, demo.dueInDays-1).Format(models.SlotDateLayout)
	slots := make([]*models.TimeSlot, 0, len(slotWindows))
	for _, window := range slotWindows {
		slot, err := slotSvc.Create(ctx, services.TimeSlotInput{
			OrderID:       ptr(order.ID),
			SlotDate:      ptr(slotDate),
			SlotStartTime: ptr(window[0]),
			SlotEndTime:   ptr(window[1]),
		})
		if err != nil {
			return fmt.Errorf("creating slot for order %d: %w", order.ID, err)
		}
		slots = append(slots, slot)
		result.TimeSlots++
	}

	if demo.crew == "" {
		return nil
	}
	crewID := crewIDs[demo.crew]
	claimed, err := slotSvc.Claim(ctx, slots[0].ID, crewID)
	if err != nil {
		return fmt.Errorf("claiming slot %d: %w", slots[0].ID, err)
	}

	if !demo.complete {
		return nil
	}
	_, err = completionSvc.Record(ctx, services.CompletionInput{
		OrderID:              ptr(order.ID),
		SubcontractorID:      ptr(crewID),
		TimeSlotID:           ptr(claimed.ID),
		CompletionPhotos:     []string{"https://photos.example.com/demo/after-install.jpg"},
		SignatureData:        ptr("data:image/png;base64,iVBORw0KGgo="),
		GPSLat:               ptr(demo.lat),
		GPSLng:               ptr(demo.lng),
		CompletionNotes:      ptr("Demo job completed on schedule"),
		CustomerSatisfaction: ptr(5),
	})
	if err != nil {
		return fmt.Errorf("completing order %d: %w", order.ID, err)
	}

	_, err = analyticsSvc.RecordEvent(ctx, services.EventInput{
		EventType:       models.EventCompletion,
		OrderID:         ptr(order.ID),
		SubcontractorID: ptr(crewID),
		Metadata:        map[string]interface{}{"source": "seed"},
	})
	if err != nil {
		return fmt.Errorf("recording event for order %d: %w", order.ID, err)
	}
	result.Events++
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
