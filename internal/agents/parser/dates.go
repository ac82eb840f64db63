package parser

import (
	"regexp"
	"strings"
	"time"
)

type dateRecognizer struct {
	name   string
	re     *regexp.Regexp
	layout string
}

// Tried in order; the first match strictly after now wins.
var dateRecognizers = []dateRecognizer{
	{name: "iso", re: regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})(?:T|\b)`), layout: "2006-01-02"}, // also the date of an ISO timestamp
	{name: "ymd_slash", re: regexp.MustCompile(`\b(\d{4}/\d{2}/\d{2})\b`), layout: "2006/01/02"},
	{name: "mdy_slash", re: regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`), layout: "01/02/2006"},
}

// fieldLayouts are accepted for an explicit reevaluation_date field.
var fieldLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parseDateField(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range fieldLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	// a field can still carry prose around the date
	if t, ok := scanFutureDate(value, time.Time{}); ok {
		return t, true
	}
	return time.Time{}, false
}

// scanFutureDate returns the first recognised date in text strictly after now.
func scanFutureDate(text string, now time.Time) (time.Time, bool) {
	for _, r := range dateRecognizers {
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			t, err := time.Parse(r.layout, m[1])
			if err != nil {
				continue
			}
			if t.After(now) {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
