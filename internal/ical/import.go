package ical

import (
	"errors"
	"fmt"
	"io"
	"time"

	goical "github.com/emersion/go-ical"

	"gitea.jw6.us/james/calhub/internal/apperr"
	"gitea.jw6.us/james/calhub/internal/store"
)

// ParseICS reads every VEVENT from an .ics stream. Unlike DecodeEvent it
// understands folding, parameters and TZID.
// Events without a start time are skipped.
func ParseICS(r io.Reader) ([]store.EventDraft, error) {
	dec := goical.NewDecoder(r)
	var drafts []store.EventDraft
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Validation("Invalid iCalendar data: %v", err)
		}
		for _, event := range cal.Events() {
			draft, ok, err := draftFromComponent(event)
			if err != nil {
				return nil, err
			}
			if ok {
				drafts = append(drafts, draft)
			}
		}
	}
	if len(drafts) == 0 {
		return nil, apperr.Validation("No events found")
	}
	return drafts, nil
}

func draftFromComponent(event goical.Event) (store.EventDraft, bool, error) {
	startProp := event.Props.Get(goical.PropDateTimeStart)
	if startProp == nil {
		return store.EventDraft{}, false, nil
	}
	start, err := event.DateTimeStart(time.UTC)
	if err != nil {
		return store.EventDraft{}, false, apperr.Validation("Invalid DTSTART: %v", err)
	}
	end, err := event.DateTimeEnd(time.UTC)
	if err != nil {
		return store.EventDraft{}, false, apperr.Validation("Invalid DTEND: %v", err)
	}
	if end.IsZero() {
		end = start
	}

	summary, err := event.Props.Text(goical.PropSummary)
	if err != nil {
		return store.EventDraft{}, false, apperr.Validation("Invalid SUMMARY: %v", err)
	}
	if summary == "" {
		summary = "Untitled event"
	}

	draft := store.EventDraft{
		Title:     summary,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		IsAllDay:  startProp.ValueType() == goical.ValueDate,
	}
	if draft.Description, err = optionalText(event, goical.PropDescription); err != nil {
		return store.EventDraft{}, false, err
	}
	if draft.Location, err = optionalText(event, goical.PropLocation); err != nil {
		return store.EventDraft{}, false, err
	}
	return draft, true, nil
}

func optionalText(event goical.Event, name string) (*string, error) {
	if event.Props.Get(name) == nil {
		return nil, nil
	}
	v, err := event.Props.Text(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, apperr.Validation("Invalid %s", name))
	}
	return &v, nil
}
