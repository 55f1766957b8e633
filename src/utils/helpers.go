package utils

import (
	"fmt"
	"regexp"
	"strings"
	"tbs/src/config"
	"time"
)

var (
	dateKeyPattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	phonePattern    = regexp.MustCompile(`^[0-9+\s().-]{6,25}$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func IsValidDateKey(input string) bool {
	return dateKeyPattern.MatchString(input)
}

func IsValidMonthKey(input string) bool {
	if !monthKeyPattern.MatchString(input) {
		return false
	}
	_, err := time.Parse(config.MONTH_KEY_FORMAT, input)
	return err == nil
}

// ParseDateKey parses a YYYY-MM-DD key into a UTC date, rejecting keys
// that do not name a real calendar day.
func ParseDateKey(value string) (time.Time, error) {
	if !IsValidDateKey(value) {
		return time.Time{}, fmt.Errorf("invalid date key %q", value)
	}
	date, err := time.ParseInLocation(config.DATE_KEY_FORMAT, value, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return date, nil
}

func FormatDateKey(date time.Time) string {
	return date.Format(config.DATE_KEY_FORMAT)
}

// MonthBounds resolves a YYYY-MM key to its [first day, first day of next
// month) range and day count.
func MonthBounds(monthKey string) (from time.Time, to time.Time, daysInMonth int, err error) {
	if !IsValidMonthKey(monthKey) {
		err = fmt.Errorf("invalid month key %q", monthKey)
		return
	}
	from, err = time.ParseInLocation(config.MONTH_KEY_FORMAT+"-02", monthKey+"-01", time.UTC)
	if err != nil {
		return
	}
	to = from.AddDate(0, 1, 0)
	daysInMonth = int(to.Sub(from).Hours() / 24)
	return
}

// SanitizeCustomerField trims, collapses inner whitespace and truncates a
// free-text customer value.
func SanitizeCustomerField(value string, maxLength int) string {
	clean := whitespaceRuns.ReplaceAllString(strings.TrimSpace(value), " ")
	runes := []rune(clean)
	if len(runes) > maxLength {
		return string(runes[:maxLength])
	}
	return clean
}

func IsValidCustomerPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func IsValidCustomerEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ResolveTourLabel maps a tour id to its display label, title-casing
// unknown ids from their slug.
func ResolveTourLabel(tourIDRaw string) string {
	tourID := strings.TrimSpace(tourIDRaw)
	if tourID == "" {
		return "Tour non specificato"
	}
	if label, ok := config.TourLabelByID[tourID]; ok {
		return label
	}
	tokens := []string{}
	for _, token := range strings.Split(tourID, "-") {
		if token == "" {
			continue
		}
		tokens = append(tokens, strings.ToUpper(token[:1])+token[1:])
	}
	return strings.Join(tokens, " ")
}
