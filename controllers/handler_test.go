package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jaswantjat/field-service-os/services"
	"github.com/jaswantjat/field-service-os/tests/testutil"
)

type testAPI struct {
	router *gin.Engine
	db     *gorm.DB
	s3     *services.MockS3Service
}

// setupTestAPI mounts every route on a fresh in-memory database with photo
// storage backed by the mock S3 service
func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	s3 := services.NewMockS3Service()
	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), NewHandler(db, services.NewPhotoService(db, s3)), nil)
	return &testAPI{router: router, db: db, s3: s3}
}

// do sends a request with an optional JSON body and decodes the envelope
func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w, response
}

func errorCode(t *testing.T, response map[string]interface{}) string {
	t.Helper()
	assert.Equal(t, false, response["success"])
	errData, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object: %v", response)
	code, _ := errData["code"].(string)
	return code
}

func dataObject(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	assert.Equal(t, true, response["success"])
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response data is not an object: %v", response)
	return data
}

func dataList(t *testing.T, response map[string]interface{}) []interface{} {
	t.Helper()
	assert.Equal(t, true, response["success"])
	data, ok := response["data"].([]interface{})
	require.True(t, ok, "response data is not a list: %v", response)
	assert.Equal(t, float64(len(data)), response["count"])
	return data
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(services.KindValidation))
	assert.Equal(t, http.StatusBadRequest, statusFor(services.KindConflict))
	assert.Equal(t, http.StatusNotFound, statusFor(services.KindNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(services.KindUniqueness))
	assert.Equal(t, http.StatusInternalServerError, statusFor(services.KindInternal))
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name          string
		err           error
		expectedCode  int
		expectedBody  string
		notInResponse string
	}{
		{
			name:         "validation error carries its field",
			err:          services.ValidationError("city", "MISSING_CITY", "City is required"),
			expectedCode: http.StatusBadRequest,
			expectedBody: `"field":"city"`,
		},
		{
			name: "details are passed through",
			err: services.ConflictError("MAX_DAILY_JOBS_REACHED", "full").
				WithDetails(map[string]interface{}{"max_daily_jobs": 2}),
			expectedCode: http.StatusBadRequest,
			expectedBody: `"max_daily_jobs":2`,
		},
		{
			name:          "internal errors hide the cause",
			err:           services.InternalError("Failed to fetch orders", errors.New("pq: relation does not exist")),
			expectedCode:  http.StatusInternalServerError,
			expectedBody:  `"code":"INTERNAL_ERROR"`,
			notInResponse: "relation",
		},
		{
			name:          "plain errors are internal",
			err:           errors.New("boom"),
			expectedCode:  http.StatusInternalServerError,
			expectedBody:  `"code":"INTERNAL_ERROR"`,
			notInResponse: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			if tt.notInResponse != "" {
				assert.NotContains(t, w.Body.String(), tt.notInResponse)
			}
		})
	}
}

func TestBadRequests(t *testing.T) {
	api := setupTestAPI(t)

	tests := []struct {
		name          string
		method        string
		path          string
		body          interface{}
		expectedCode  string
		expectedField string
	}{
		{"non-numeric id", http.MethodGet, "/api/v1/orders/abc", nil, "INVALID_ID", ""},
		{"zero id", http.MethodGet, "/api/v1/time-slots/0", nil, "INVALID_ID", ""},
		{"bad limit", http.MethodGet, "/api/v1/orders?limit=ten", nil, "INVALID_QUERY", "limit"},
		{"negative offset", http.MethodGet, "/api/v1/subcontractors?offset=-1", nil, "INVALID_QUERY", "offset"},
		{"bad boolean", http.MethodGet, "/api/v1/time-slots?is_available=maybe", nil, "INVALID_QUERY", "is_available"},
		{"bad id filter", http.MethodGet, "/api/v1/job-completions?order_id=x", nil, "INVALID_QUERY", "order_id"},
		{"malformed json", http.MethodPost, "/api/v1/orders", `{"customer_name":`, "VALIDATION_ERROR", ""},
		{"wrong type", http.MethodPost, "/api/v1/time-slots", `{"order_id":"one"}`, "VALIDATION_ERROR", "order_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.expectedCode, errorCode(t, response))
			if tt.expectedField != "" {
				assert.Equal(t, tt.expectedField, response["error"].(map[string]interface{})["field"])
			}
		})
	}
}

func TestDispatcherRoutesRequireScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewTestDB(t)

	newRouter := func(scopes ...string) *gin.Engine {
		router := gin.New()
		RegisterRoutes(router.Group("/api/v1"), NewHandler(db, nil), testutil.MockAuthMiddleware("auth0|crew", scopes...))
		return router
	}

	body := `{"order_id":1,"slot_date":"2025-06-01","slot_start_time":"09:00","slot_end_time":"11:00"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/time-slots", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter("read:orders").ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_SCOPE")

	// reads only need a valid token
	req = httptest.NewRequest(http.MethodGet, "/api/v1/time-slots", nil)
	w = httptest.NewRecorder()
	newRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/time-slots", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	newRouter("write:dispatch").ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "passes the guard and fails on the missing order")
	assert.Contains(t, w.Body.String(), "ORDER_NOT_FOUND")
}
