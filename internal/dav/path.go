package dav

import (
	"strings"

	"github.com/google/uuid"

	"gitea.jw6.us/james/calhub/internal/apperr"
)

const collectionRoot = "/calendars/"

// ResourcePath identifies a calendar, and optionally one event in it, from a
// request path of the form /calendars/{calendar}[/{event}.ics].
type ResourcePath struct {
	CalendarID uuid.UUID
	EventID    uuid.UUID
	// HasEvent is false when the path names the whole calendar.
	HasEvent bool
}

func pathSegments(p string) []string {
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// ParseCalendarPath resolves a path that names a calendar and optionally
// an event. An empty third segment means the whole calendar.
func ParseCalendarPath(p string) (ResourcePath, error) {
	parts := pathSegments(p)
	if len(parts) < 2 {
		return ResourcePath{}, apperr.Validation("Invalid calendar path")
	}
	calendarID, err := uuid.Parse(parts[1])
	if err != nil {
		return ResourcePath{}, apperr.InvalidID(err)
	}
	rp := ResourcePath{CalendarID: calendarID}
	if len(parts) > 2 && parts[2] != "" {
		if rp.EventID, err = parseEventSegment(parts[2]); err != nil {
			return ResourcePath{}, err
		}
		rp.HasEvent = true
	}
	return rp, nil
}

// ParseEventPath resolves a path that must name a single event.
func ParseEventPath(p string) (ResourcePath, error) {
	parts := pathSegments(p)
	if len(parts) < 3 {
		return ResourcePath{}, apperr.Validation("Invalid event path")
	}
	calendarID, err := uuid.Parse(parts[1])
	if err != nil {
		return ResourcePath{}, apperr.InvalidID(err)
	}
	eventID, err := parseEventSegment(parts[2])
	if err != nil {
		return ResourcePath{}, err
	}
	return ResourcePath{CalendarID: calendarID, EventID: eventID, HasEvent: true}, nil
}

// ParseEventTarget resolves the target of a PUT. The filename must be present
// but is not parsed, since clients choose their own resource names and the
// stored event always gets a fresh identifier.
func ParseEventTarget(p string) (ResourcePath, error) {
	parts := pathSegments(p)
	if len(parts) < 3 || parts[2] == "" {
		return ResourcePath{}, apperr.Validation("Invalid event path")
	}
	calendarID, err := uuid.Parse(parts[1])
	if err != nil {
		return ResourcePath{}, apperr.InvalidID(err)
	}
	return ResourcePath{CalendarID: calendarID, HasEvent: true}, nil
}

func parseEventSegment(segment string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSuffix(segment, ".ics"))
	if err != nil {
		return uuid.Nil, apperr.InvalidID(err)
	}
	return id, nil
}

func calendarHref(id uuid.UUID) string {
	return collectionRoot + id.String() + "/"
}

func eventHref(calendarID, eventID uuid.UUID) string {
	return collectionRoot + calendarID.String() + "/" + eventID.String() + ".ics"
}

// quotedETag returns the strong ETag for an event, which is its quoted identifier.
func quotedETag(id uuid.UUID) string {
	return `"` + id.String() + `"`
}
