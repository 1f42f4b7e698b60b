package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"gitea.jw6.us/james/calhub/internal/apperr"
	httperrors "gitea.jw6.us/james/calhub/internal/http/errors"
	"gitea.jw6.us/james/calhub/internal/store"
)

type eventInput struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Location    *string   `json:"location"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsAllDay    bool      `json:"is_all_day"`
}

type createEventRequest struct {
	CalendarID uuid.UUID  `json:"calendar_id"`
	Event      eventInput `json:"event"`
}

type updateEventRequest struct {
	Title       mo.Option[string]    `json:"title"`
	Description mo.Option[string]    `json:"description"`
	Location    mo.Option[string]    `json:"location"`
	StartTime   mo.Option[time.Time] `json:"start_time"`
	EndTime     mo.Option[time.Time] `json:"end_time"`
	IsAllDay    mo.Option[bool]      `json:"is_all_day"`
}

func (in eventInput) draft() (store.EventDraft, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return store.EventDraft{}, apperr.Validation("Title is required")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return store.EventDraft{}, apperr.Validation("Start and end times are required")
	}
	if in.EndTime.Before(in.StartTime) {
		return store.EventDraft{}, apperr.Validation("End time must not be before start time")
	}
	return store.EventDraft{
		Title:       title,
		Description: in.Description,
		Location:    in.Location,
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		IsAllDay:    in.IsAllDay,
	}, nil
}

// CreateEvent adds an event to an owned calendar.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := req.Event.draft()
	if err != nil {
		writeError(w, r, err)
		return
	}
	cal, err := h.ownedCalendar(r, p, req.CalendarID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := h.store.Events.Create(r.Context(), cal.ID, draft)
	if err != nil {
		writeError(w, r, apperr.Internal("create event", err))
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, newEventView(ev))
}

// GetEvent returns an event from a calendar the caller owns or that is public.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev, cal, err := h.eventWithCalendar(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !cal.ReadableBy(p.UserID) {
		writeError(w, r, apperr.Forbidden("Access denied"))
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, newEventView(ev))
}

// UpdateEvent applies a partial update to an event in an owned calendar.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ev, cal, err := h.eventWithCalendar(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !cal.OwnedBy(p.UserID) {
		writeError(w, r, apperr.Forbidden("You don't have access to this event"))
		return
	}
	update, err := req.toUpdate(ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.store.Events.Update(r.Context(), id, update)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.NotFound("Event not found"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Internal("update event", err))
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, newEventView(updated))
}

// toUpdate validates the request against the current event.
func (req updateEventRequest) toUpdate(current *store.Event) (store.EventUpdate, error) {
	update := store.EventUpdate{
		Description: req.Description,
		Location:    req.Location,
		IsAllDay:    req.IsAllDay,
	}
	if title, ok := req.Title.Get(); ok {
		title = strings.TrimSpace(title)
		if title == "" {
			return store.EventUpdate{}, apperr.Validation("Title cannot be empty")
		}
		update.Title = mo.Some(title)
	}
	start, end := current.StartTime, current.EndTime
	if t, ok := req.StartTime.Get(); ok {
		start = t.UTC()
		update.StartTime = mo.Some(start)
	}
	if t, ok := req.EndTime.Get(); ok {
		end = t.UTC()
		update.EndTime = mo.Some(end)
	}
	if end.Before(start) {
		return store.EventUpdate{}, apperr.Validation("End time must not be before start time")
	}
	return update, nil
}

// DeleteEvent removes an event from an owned calendar.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, cal, err := h.eventWithCalendar(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !cal.OwnedBy(p.UserID) {
		writeError(w, r, apperr.Forbidden("You don't have access to this event"))
		return
	}
	if err := h.store.Events.Delete(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.Internal("delete event", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
