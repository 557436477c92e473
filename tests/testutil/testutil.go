package testutil

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jaswantjat/field-service-os/models"
)

var fixtureSeq atomic.Int64

// MustSetTestEnvironment sets GO_ENV to test and fails if it cannot be set.
// Use this in TestMain or suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}
	if os.Getenv("GO_ENV") != "test" {
		t.Fatal("Failed to verify GO_ENV=test")
	}
}

// NewTestDB opens a migrated in-memory SQLite database. A single connection
// keeps every statement on the same in-memory database and serializes
// concurrent transactions the way row locks would.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// CreateSubcontractor inserts an active subcontractor. mutate may adjust the
// record before it is saved.
func CreateSubcontractor(t *testing.T, db *gorm.DB, mutate ...func(*models.Subcontractor)) *models.Subcontractor {
	t.Helper()

	n := fixtureSeq.Add(1)
	sub := &models.Subcontractor{
		Name:         fmt.Sprintf("Crew %d", n),
		Email:        fmt.Sprintf("crew%d@example.com", n),
		Phone:        "555-0100",
		ServiceAreas: datatypes.NewJSONSlice([]string{"Austin"}),
		MaxDailyJobs: 3,
		Rating:       4.5,
		Active:       true,
	}
	for _, m := range mutate {
		m(sub)
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create subcontractor: %v", err)
	}
	return sub
}

// CreateOrder inserts an unassigned medium-priority order
func CreateOrder(t *testing.T, db *gorm.DB, mutate ...func(*models.Order)) *models.Order {
	t.Helper()

	n := fixtureSeq.Add(1)
	order := &models.Order{
		CustomerName:      fmt.Sprintf("Customer %d", n),
		CustomerEmail:     fmt.Sprintf("customer%d@example.com", n),
		CustomerPhone:     "555-0199",
		Address:           fmt.Sprintf("%d Main St", n),
		City:              "Austin",
		LocationLat:       30.2672,
		LocationLng:       -97.7431,
		ServiceType:       models.ServiceTypeInstallation,
		InventoryItems:    datatypes.NewJSONSlice([]models.InventoryItem{{Name: "Panel", Quantity: 1, InStock: true}}),
		InventoryStatus:   models.InventoryStatusAvailable,
		Priority:          models.PriorityMedium,
		EstimatedDuration: 120,
		Status:            models.OrderStatusUnassigned,
		DueDate:           time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour),
	}
	for _, m := range mutate {
		m(order)
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	return order
}

// CreateSlot inserts an available 09:00-11:00 slot on date for order
func CreateSlot(t *testing.T, db *gorm.DB, orderID uint, date string, mutate ...func(*models.TimeSlot)) *models.TimeSlot {
	t.Helper()

	slot := &models.TimeSlot{
		OrderID:       orderID,
		SlotDate:      date,
		SlotStartTime: "09:00",
		SlotEndTime:   "11:00",
		IsAvailable:   true,
		Status:        models.SlotStatusAvailable,
	}
	for _, m := range mutate {
		m(slot)
	}
	if err := db.Create(slot).Error; err != nil {
		t.Fatalf("Failed to create time slot: %v", err)
	}
	return slot
}

// ClaimedBy marks a fixture slot as already claimed by subcontractorID
func ClaimedBy(subcontractorID uint) func(*models.TimeSlot) {
	return func(slot *models.TimeSlot) {
		now := time.Now().UTC()
		slot.SubcontractorID = &subcontractorID
		slot.Status = models.SlotStatusClaimed
		slot.IsAvailable = false
		slot.ClaimedAt = &now
	}
}

// Minimal file heads that sniff as the matching image type
var (
	PNGBytes  = append([]byte("\x89PNG\r\n\x1a\n"), []byte("fake png body")...)
	JPEGBytes = append([]byte("\xff\xd8\xff\xe0"), []byte("fake jpeg body")...)
)

// MultipartBody builds a multipart form with a single file part under field
func MultipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

// NewFileHeader parses a one-file multipart form and returns its header
func NewFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body, contentType := MultipartBody(t, "photo", filename, content)
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("Failed to parse content type: %v", err)
	}
	form, err := multipart.NewReader(body, params["boundary"]).ReadForm(int64(len(content)) + 1024)
	if err != nil {
		t.Fatalf("Failed to read multipart form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })

	files := form.File["photo"]
	if len(files) == 0 {
		t.Fatal("multipart form has no photo")
	}
	return files[0]
}
