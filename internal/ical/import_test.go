package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.jw6.us/james/calhub/internal/apperr"
)

const importFixture = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:one@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Offsite\\, day one\r\n" +
	"LOCATION:Lisbon\r\n" +
	"DTSTART:20240601T080000Z\r\n" +
	"DTEND:20240601T170000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:two@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Holiday\r\n" +
	"DTSTART;VALUE=DATE:20240704\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	drafts, err := ParseICS(strings.NewReader(importFixture))
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, "Offsite, day one", drafts[0].Title)
	require.NotNil(t, drafts[0].Location)
	assert.Equal(t, "Lisbon", *drafts[0].Location)
	assert.Nil(t, drafts[0].Description)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), drafts[0].StartTime)
	assert.False(t, drafts[0].IsAllDay)

	assert.True(t, drafts[1].IsAllDay)
	assert.Equal(t, time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), drafts[1].StartTime)
	assert.False(t, drafts[1].EndTime.Before(drafts[1].StartTime))
}

func TestParseICSRejectsGarbage(t *testing.T) {
	_, err := ParseICS(strings.NewReader("not a calendar"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
