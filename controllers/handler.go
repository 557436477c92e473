package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jaswantjat/field-service-os/services"
)

// Handler holds the services the HTTP surface dispatches to
type Handler struct {
	Orders         *services.OrderService
	Subcontractors *services.SubcontractorService
	TimeSlots      *services.TimeSlotService
	Completions    *services.CompletionService
	Analytics      *services.AnalyticsService

	// Photos is nil when no S3 bucket is configured
	Photos services.PhotoService
}

// NewHandler wires every service to db. photos may be nil.
func NewHandler(db *gorm.DB, photos services.PhotoService) *Handler {
	return &Handler{
		Orders:         services.NewOrderService(db),
		Subcontractors: services.NewSubcontractorService(db),
		TimeSlots:      services.NewTimeSlotService(db),
		Completions:    services.NewCompletionService(db, photos),
		Analytics:      services.NewAnalyticsService(db),
		Photos:         photos,
	}
}

// statusFor maps a service error kind to its HTTP status
func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindConflict:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindUniqueness:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondList[T any](c *gin.Context, items []T) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"count":   len(items),
	})
}

func respondCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondError writes a service error. Anything that is not a service error
// is treated as internal; its message is logged and never sent.
func respondError(c *gin.Context, err error) {
	svcErr, ok := services.AsError(err)
	if !ok {
		svcErr = services.InternalError("Internal server error", err)
	}

	if svcErr.Kind == services.KindInternal {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, svcErr)
		respondCode(c, http.StatusInternalServerError, svcErr.Code, svcErr.Message)
		return
	}

	body := gin.H{
		"code":    svcErr.Code,
		"message": svcErr.Message,
	}
	if svcErr.Field != "" {
		body["field"] = svcErr.Field
	}
	if len(svcErr.Details) > 0 {
		body["details"] = svcErr.Details
	}
	c.JSON(statusFor(svcErr.Kind), gin.H{
		"success": false,
		"error":   body,
	})
}

// respondBindError reports a request body that could not be decoded
func respondBindError(c *gin.Context, err error) {
	body := gin.H{
		"code":    "VALIDATION_ERROR",
		"message": "Invalid request data",
		"details": err.Error(),
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		body["field"] = typeErr.Field
		body["message"] = typeErr.Field + " has the wrong type"
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   body,
	})
}

// bindJSON decodes the request body into dst, answering 400 on failure
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

// pathID parses the :id route parameter
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondCode(c, http.StatusBadRequest, "INVALID_ID", "ID must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// queryParser collects query parameters and remembers the first one that
// failed to parse
type queryParser struct {
	c   *gin.Context
	bad string
}

func newQueryParser(c *gin.Context) *queryParser {
	return &queryParser{c: c}
}

func (q *queryParser) str(name string) string {
	return strings.TrimSpace(q.c.Query(name))
}

func (q *queryParser) uintPtr(name string) *uint {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		q.fail(name)
		return nil
	}
	id := uint(v)
	return &id
}

func (q *queryParser) boolPtr(name string) *bool {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name)
		return nil
	}
	return &v
}

func (q *queryParser) nonNegative(name string) int {
	raw := q.str(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		q.fail(name)
		return 0
	}
	return v
}

func (q *queryParser) page() services.Page {
	return services.Page{
		Limit:  q.nonNegative("limit"),
		Offset: q.nonNegative("offset"),
	}
}

func (q *queryParser) fail(name string) {
	if q.bad == "" {
		q.bad = name
	}
}

// ok answers 400 INVALID_QUERY if any parameter failed to parse
func (q *queryParser) ok() bool {
	if q.bad == "" {
		return true
	}
	q.c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INVALID_QUERY",
			"message": "Invalid value for query parameter " + q.bad,
			"field":   q.bad,
		},
	})
	return false
}
