package core

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. The slash forms are what a ja-JP locale
// writes into the sheet ("2025/6/22").
var dateLayouts = []string{
	"2006-01-02",
	"2006/1/2",
	"2006-1-2",
	"2006.1.2",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/1/2 15:04:05",
}

// ParseDate parses a sheet date cell. Time-of-day is discarded; the result is
// a UTC calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return NewDate(t.Year(), t.Month(), t.Day()), nil
	}
	return Date{}, ErrInvalidDate
}

// FormatDate writes d the way new rows are stored: "2025/6/22".
func FormatDate(d Date) string {
	return d.Format("2006/1/2")
}
