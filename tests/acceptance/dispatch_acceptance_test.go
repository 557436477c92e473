package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/jaswantjat/field-service-os/controllers"
	"github.com/jaswantjat/field-service-os/middleware"
	"github.com/jaswantjat/field-service-os/tests/testutil"
)

const crewDay = "2025-07-14"

// DispatchAcceptanceTestSuite exercises a dispatch day against a live HTTP server
type DispatchAcceptanceTestSuite struct {
	suite.Suite
	server *httptest.Server
	db     *gorm.DB
}

// SetupSuite runs once before all tests
func (suite *DispatchAcceptanceTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	testutil.MustSetTestEnvironment(suite.T())
}

// SetupTest starts a fresh server and database for each test
func (suite *DispatchAcceptanceTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())

	router := gin.New()
	router.Use(gin.Recovery())
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint (public)
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"message": "Field Service OS API is running",
			})
		})
	}
	auth := testutil.MockAuthMiddleware("auth0|dispatcher", middleware.ScopeWriteDispatch)
	controllers.RegisterRoutes(v1, controllers.NewHandler(suite.db, nil), auth)

	suite.server = httptest.NewServer(router)
}

// TearDownTest stops the server
func (suite *DispatchAcceptanceTestSuite) TearDownTest() {
	suite.server.Close()
}

// makeRequest sends a request to the live server and decodes the JSON envelope
func (suite *DispatchAcceptanceTestSuite) makeRequest(method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, suite.server.URL+path, reader)
	suite.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(raw, &response), string(raw))
	return resp, response
}

func (suite *DispatchAcceptanceTestSuite) id(response map[string]interface{}) uint {
	data, ok := response["data"].(map[string]interface{})
	suite.Require().True(ok, "response has no data object: %v", response)
	return uint(data["id"].(float64))
}

func (suite *DispatchAcceptanceTestSuite) createOrderWithSlot(customer, priority string) (orderID, slotID uint) {
	resp, response := suite.makeRequest(http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"customer_name":      customer,
		"customer_email":     fmt.Sprintf("%s@example.com", customer),
		"customer_phone":     "512-555-0100",
		"address":            "1 Congress Ave",
		"city":               "Austin",
		"location_lat":       30.2649,
		"location_lng":       -97.7466,
		"service_type":       "Repair",
		"inventory_items":    []map[string]interface{}{},
		"estimated_duration": 60,
		"due_date":           crewDay,
		"priority":           priority,
	})
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, response)
	orderID = suite.id(response)

	resp, response = suite.makeRequest(http.MethodPost, "/api/v1/time-slots", map[string]interface{}{
		"order_id":        orderID,
		"slot_date":       crewDay,
		"slot_start_time": "10:00",
		"slot_end_time":   "12:00",
	})
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, response)
	return orderID, suite.id(response)
}

func (suite *DispatchAcceptanceTestSuite) claim(slotID, subID uint) (*http.Response, map[string]interface{}) {
	return suite.makeRequest(http.MethodPost, fmt.Sprintf("/api/v1/time-slots/%d/claim", slotID), map[string]interface{}{"subcontractor_id": subID})
}

// TestCrewDay_Acceptance fills a crew's day, frees a job and completes one
func (suite *DispatchAcceptanceTestSuite) TestCrewDay_Acceptance() {
	t := suite.T()

	resp, response := suite.makeRequest(http.MethodPost, "/api/v1/subcontractors", map[string]interface{}{
		"name":           "Capitol Repairs",
		"email":          "crew@capitolrepairs.example.com",
		"phone":          "512-555-0123",
		"service_areas":  []string{"Austin"},
		"max_daily_jobs": 2,
	})
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, response)
	crew := suite.id(response)

	_, urgentSlot := suite.createOrderWithSlot("alice", "urgent")
	_, lowSlot := suite.createOrderWithSlot("bob", "low")
	thirdOrder, thirdSlot := suite.createOrderWithSlot("carol", "medium")

	// the feed lists the most urgent order first
	resp, response = suite.makeRequest(http.MethodGet, "/api/v1/orders/available", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	feed := response["data"].([]interface{})
	assert.Len(t, feed, 3)
	assert.Equal(t, "urgent", feed[0].(map[string]interface{})["priority"])

	// Step 1: the crew fills its day
	resp, _ = suite.claim(urgentSlot, crew)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = suite.claim(lowSlot, crew)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Step 2: a third job the same day is refused
	resp, response = suite.claim(thirdSlot, crew)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errObj := response["error"].(map[string]interface{})
	assert.Equal(t, "MAX_DAILY_JOBS_REACHED", errObj["code"])

	// Step 3: dispatch cancels the low priority job, freeing capacity
	resp, _ = suite.makeRequest(http.MethodDelete, fmt.Sprintf("/api/v1/time-slots/%d", lowSlot), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, response = suite.claim(thirdSlot, crew)
	suite.Require().Equal(http.StatusOK, resp.StatusCode, response)

	// Step 4: the crew finishes the third job
	resp, response = suite.makeRequest(http.MethodPost, "/api/v1/job-completions", map[string]interface{}{
		"order_id":          thirdOrder,
		"subcontractor_id":  crew,
		"time_slot_id":      thirdSlot,
		"completion_photos": []string{"https://photos.example.com/carol.jpg"},
		"signature_data":    "data:image/png;base64,iVBORw0KGgo=",
		"gps_lat":           30.2649,
		"gps_lng":           -97.7466,
	})
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, response)

	resp, response = suite.makeRequest(http.MethodGet, fmt.Sprintf("/api/v1/job-completions?subcontractor_id=%d", crew), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), response["count"])

	// Step 5: the day's numbers add up
	resp, response = suite.makeRequest(http.MethodGet, fmt.Sprintf("/api/v1/subcontractors/%d?date=%s", crew, crewDay), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["current_daily_jobs"])
	assert.Equal(t, float64(0), data["available_capacity"])

	resp, response = suite.makeRequest(http.MethodGet, "/api/v1/analytics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	summary := response["data"].(map[string]interface{})["summary"].(map[string]interface{})
	assert.Equal(t, float64(3), summary["total_orders"])
	assert.Equal(t, float64(1), summary["completed_orders"])
	assert.Equal(t, float64(33.33), summary["completion_rate"])
	assert.Equal(t, float64(0), summary["double_bookings"])
}

// TestErrorResponseFormat validates consistent error response format
func (suite *DispatchAcceptanceTestSuite) TestErrorResponseFormat() {
	resp, response := suite.makeRequest(http.MethodGet, "/api/v1/orders/9999", nil)
	assert.Equal(suite.T(), http.StatusNotFound, resp.StatusCode)

	assert.Contains(suite.T(), response, "success")
	assert.False(suite.T(), response["success"].(bool))
	assert.Contains(suite.T(), response, "error")

	errorObj := response["error"].(map[string]interface{})
	assert.IsType(suite.T(), "", errorObj["code"])
	assert.IsType(suite.T(), "", errorObj["message"])
	assert.Equal(suite.T(), "ORDER_NOT_FOUND", errorObj["code"])
	assert.NotEmpty(suite.T(), errorObj["message"])
}

// TestContentTypeHeaders validates that responses have correct content type
func (suite *DispatchAcceptanceTestSuite) TestContentTypeHeaders() {
	testCases := []struct {
		name     string
		endpoint string
	}{
		{"Health endpoint", "/api/v1/health"},
		{"Order list", "/api/v1/orders"},
		{"Missing order", "/api/v1/orders/9999"},
		{"Invalid id", "/api/v1/orders/abc"},
	}

	for _, tc := range testCases {
		suite.T().Run(tc.name, func(t *testing.T) {
			resp, _ := suite.makeRequest(http.MethodGet, tc.endpoint, nil)
			assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
		})
	}
}

// TestDispatchAcceptanceTestSuite runs the acceptance test suite
func TestDispatchAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(DispatchAcceptanceTestSuite))
}
