package cleaner

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PincodeSentinel replaces any pincode that cannot be coerced.
const PincodeSentinel = "000000"

// DateLayouts are tried in order; the first that parses wins. Day-first
// comes before year-first, so "01-02-2020" is 1 February.
var DateLayouts = []string{
	"2-1-2006",
	"2006-1-2",
	"2/1/2006",
	"2006/1/2",
}

// ISODate is the layout dates are re-emitted in.
const ISODate = "2006-01-02"

// ParseDate parses raw with the first matching layout in DateLayouts.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// CleanInt truncates a float-formatted value to an integer. Anything that
// does not parse, and any negative value, becomes 0.
func CleanInt(raw string) int {
	f, ok := parseFinite(raw)
	if !ok || f < 0 || f >= math.MaxInt64 {
		return 0
	}
	return int(f)
}

// CleanPincode converts "110001", "110001.0" or "1.10001e5" to a six-digit
// string. Values that do not parse or fall outside 0..999999 become the sentinel.
func CleanPincode(raw string) string {
	f, ok := parseFinite(raw)
	if !ok || f < 0 || f > 999999 {
		return PincodeSentinel
	}
	return fmt.Sprintf("%06d", int(f))
}

var floatSuffix = regexp.MustCompile(`\.0$`)
var sixDigits = regexp.MustCompile(`^\d{6}$`)

// StripPincode removes a trailing ".0" left by float-typed exports and keeps
// the value only if it is exactly six digits.
func StripPincode(raw string) string {
	s := floatSuffix.ReplaceAllString(strings.TrimSpace(raw), "")
	if !sixDigits.MatchString(s) {
		return PincodeSentinel
	}
	return s
}

func parseFinite(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
