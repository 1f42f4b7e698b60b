package dav

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"gitea.jw6.us/james/calhub/internal/apperr"
	"gitea.jw6.us/james/calhub/internal/auth"
	"gitea.jw6.us/james/calhub/internal/ical"
	"gitea.jw6.us/james/calhub/internal/store"
)

const defaultCalendarName = "New Calendar"

// Handler serves the CalDAV subset used by calendar clients. Every
// operation takes the authenticated principal explicitly.
type Handler struct {
	store *store.Store
}

func NewHandler(store *store.Store) *Handler {
	return &Handler{store: store}
}

// Resource is a rendered iCalendar document. ETag is empty for whole-calendar bodies.
type Resource struct {
	Body string
	ETag string
}

// Created describes a resource made by PUT or MKCOL.
type Created struct {
	Location string
	ETag     string
}

// ListCalendars renders one response per calendar owned by p.
func (h *Handler) ListCalendars(ctx context.Context, p auth.Principal) ([]byte, error) {
	cals, err := h.store.Calendars.ListByOwner(ctx, p.UserID)
	if err != nil {
		return nil, apperr.Internal("list calendars", err)
	}
	responses := make([]response, 0, len(cals))
	for _, cal := range cals {
		responses = append(responses, calendarResponse(cal))
	}
	return renderMultistatus(responses)
}

// ReportEvents renders every event of every calendar owned by p with its
// calendar-data. Query filters are not applied.
func (h *Handler) ReportEvents(ctx context.Context, p auth.Principal) ([]byte, error) {
	cals, err := h.store.Calendars.ListByOwner(ctx, p.UserID)
	if err != nil {
		return nil, apperr.Internal("list calendars", err)
	}
	var responses []response
	for _, cal := range cals {
		events, err := h.store.Events.ListForCalendar(ctx, cal.ID)
		if err != nil {
			return nil, apperr.Internal("list events", err)
		}
		for _, ev := range events {
			responses = append(responses, eventResponse(ev, true))
		}
	}
	return renderMultistatus(responses)
}

// PropfindCalendar describes a single readable calendar. With depth "1" the
// calendar's events follow the collection entry.
func (h *Handler) PropfindCalendar(ctx context.Context, p auth.Principal, calendarID uuid.UUID, depth string) ([]byte, error) {
	cal, err := h.readableCalendar(ctx, p, calendarID)
	if err != nil {
		return nil, err
	}
	responses := []response{calendarResponse(*cal)}
	if depth == "1" {
		events, err := h.store.Events.ListForCalendar(ctx, cal.ID)
		if err != nil {
			return nil, apperr.Internal("list events", err)
		}
		for _, ev := range events {
			responses = append(responses, eventResponse(ev, false))
		}
	}
	return renderMultistatus(responses)
}

// ReportCalendar renders the events of one readable calendar with their calendar-data.
func (h *Handler) ReportCalendar(ctx context.Context, p auth.Principal, calendarID uuid.UUID) ([]byte, error) {
	cal, err := h.readableCalendar(ctx, p, calendarID)
	if err != nil {
		return nil, err
	}
	events, err := h.store.Events.ListForCalendar(ctx, cal.ID)
	if err != nil {
		return nil, apperr.Internal("list events", err)
	}
	responses := make([]response, 0, len(events))
	for _, ev := range events {
		responses = append(responses, eventResponse(ev, true))
	}
	return renderMultistatus(responses)
}

// GetResource returns the whole calendar or a single event as iCalendar.
func (h *Handler) GetResource(ctx context.Context, p auth.Principal, rp ResourcePath) (Resource, error) {
	cal, err := h.readableCalendar(ctx, p, rp.CalendarID)
	if err != nil {
		return Resource{}, err
	}
	if !rp.HasEvent {
		events, err := h.store.Events.ListForCalendar(ctx, cal.ID)
		if err != nil {
			return Resource{}, apperr.Internal("list events", err)
		}
		return Resource{Body: ical.EncodeCalendar(cal.Name, events)}, nil
	}

	ev, err := h.loadEvent(ctx, rp.EventID)
	if err != nil {
		return Resource{}, err
	}
	if ev.CalendarID != cal.ID {
		return Resource{}, apperr.NotFound("Event not found")
	}
	return Resource{Body: ical.EncodeSingle(*ev), ETag: quotedETag(ev.ID)}, nil
}

// PutEvent decodes body and stores it as a new event in an owned calendar.
// The event identifier in the path is not reused.
func (h *Handler) PutEvent(ctx context.Context, p auth.Principal, rp ResourcePath, body string) (Created, error) {
	cal, err := h.loadCalendar(ctx, rp.CalendarID)
	if err != nil {
		return Created{}, err
	}
	if !cal.OwnedBy(p.UserID) {
		return Created{}, apperr.Forbidden("Calendar is not writable")
	}
	draft, err := ical.DecodeEvent(body)
	if err != nil {
		return Created{}, err
	}
	ev, err := h.store.Events.Create(ctx, cal.ID, draft)
	if err != nil {
		return Created{}, apperr.Internal("create event", err)
	}
	return Created{Location: eventHref(cal.ID, ev.ID), ETag: quotedETag(ev.ID)}, nil
}

// DeleteEvent removes an event from a calendar owned by p.
func (h *Handler) DeleteEvent(ctx context.Context, p auth.Principal, rp ResourcePath) error {
	ev, err := h.loadEvent(ctx, rp.EventID)
	if err != nil {
		return err
	}
	cal, err := h.loadCalendar(ctx, ev.CalendarID)
	if err != nil {
		return err
	}
	if !cal.OwnedBy(p.UserID) {
		return apperr.Forbidden("Calendar is not writable")
	}
	if cal.ID != rp.CalendarID {
		return apperr.NotFound("Event not found")
	}
	if err := h.store.Events.Delete(ctx, ev.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Event not found")
		}
		return apperr.Internal("delete event", err)
	}
	return nil
}

// CreateCalendar handles MKCOL and MKCALENDAR. The display name comes from
// the request body, then the path segment, then a default.
func (h *Handler) CreateCalendar(ctx context.Context, p auth.Principal, segment string, body []byte) (Created, error) {
	cal, err := h.store.Calendars.Create(ctx, store.Calendar{
		UserID: p.UserID,
		Name:   calendarName(segment, body),
	})
	if err != nil {
		return Created{}, apperr.Internal("create calendar", err)
	}
	return Created{Location: calendarHref(cal.ID)}, nil
}

func calendarName(segment string, body []byte) string {
	if len(bytes.TrimSpace(body)) > 0 {
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(body); err == nil {
			if el := doc.FindElement("//displayname"); el != nil {
				if name := strings.TrimSpace(el.Text()); name != "" {
					return name
				}
			}
		}
	}
	if segment = strings.TrimSpace(segment); segment != "" && segment != "new" {
		return segment
	}
	return defaultCalendarName
}

func (h *Handler) loadCalendar(ctx context.Context, id uuid.UUID) (*store.Calendar, error) {
	cal, err := h.store.Calendars.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Calendar not found")
	}
	if err != nil {
		return nil, apperr.Internal("load calendar", err)
	}
	return cal, nil
}

// readableCalendar loads a calendar that p owns or that is public.
func (h *Handler) readableCalendar(ctx context.Context, p auth.Principal, id uuid.UUID) (*store.Calendar, error) {
	cal, err := h.loadCalendar(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cal.ReadableBy(p.UserID) {
		return nil, apperr.Forbidden("Calendar is not accessible")
	}
	return cal, nil
}

func (h *Handler) loadEvent(ctx context.Context, id uuid.UUID) (*store.Event, error) {
	ev, err := h.store.Events.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Event not found")
	}
	if err != nil {
		return nil, apperr.Internal("load event", err)
	}
	return ev, nil
}
