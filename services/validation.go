package services

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/jaswantjat/field-service-os/models"
)

var (
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	slotDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	slotTimeRegex = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
)

// Page is a limit/offset window over a list
type Page struct {
	Limit  int
	Offset int
}

// clamp applies the default limit when none is given and caps it at max
func (p Page) clamp(defaultLimit, maxLimit int) Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// paginate slices an already-ordered list in memory
func paginate[T any](items []T, page Page) []T {
	start := page.Offset
	if start > len(items) {
		start = len(items)
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func validEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func validFloat(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseDate accepts a calendar date (YYYY-MM-DD) or an RFC 3339 timestamp
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(models.SlotDateLayout, value); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// validSlotDate checks the YYYY-MM-DD format and that the date exists
func validSlotDate(value string) bool {
	if !slotDateRegex.MatchString(value) {
		return false
	}
	_, err := time.Parse(models.SlotDateLayout, value)
	return err == nil
}

func validSlotTime(value string) bool {
	return slotTimeRegex.MatchString(value)
}

func ptr[T any](v T) *T {
	return &v
}
