package ical

import (
	"strings"
	"time"

	"gitea.jw6.us/james/calhub/internal/apperr"
)

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
)

// FormatDateTime renders t as a UTC DATE-TIME value.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(utcLayout)
}

// ParseDateTime accepts the three forms clients send:
//
//	20240315          DATE, midnight UTC
//	20240315T140000Z  UTC DATE-TIME
//	20240315T140000   floating DATE-TIME, read as UTC
func ParseDateTime(value string) (time.Time, error) {
	switch {
	case len(value) == len(dateLayout):
		t, err := time.ParseInLocation(dateLayout, value, time.UTC)
		if err != nil {
			return time.Time{}, apperr.Validation("Invalid date format")
		}
		return t, nil
	case strings.HasSuffix(value, "Z"):
		if len(value) < len(dateTimeLayout) {
			return time.Time{}, apperr.Validation("Invalid datetime format")
		}
		t, err := time.ParseInLocation(dateTimeLayout, value[:len(dateTimeLayout)], time.UTC)
		if err != nil {
			return time.Time{}, apperr.Validation("Invalid datetime format")
		}
		return t, nil
	default:
		t, err := time.ParseInLocation(dateTimeLayout, value, time.UTC)
		if err != nil {
			return time.Time{}, apperr.Validation("Invalid datetime format")
		}
		return t, nil
	}
}
