package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/samber/mo"

	"gitea.jw6.us/james/calhub/internal/apperr"
	httperrors "gitea.jw6.us/james/calhub/internal/http/errors"
	"gitea.jw6.us/james/calhub/internal/ical"
	"gitea.jw6.us/james/calhub/internal/store"
)

type createCalendarRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	IsPublic    bool    `json:"is_public"`
}

type updateCalendarRequest struct {
	Name        mo.Option[string] `json:"name"`
	Description mo.Option[string] `json:"description"`
	Color       mo.Option[string] `json:"color"`
	IsPublic    mo.Option[bool]   `json:"is_public"`
}

// ListCalendars returns the calendars owned by the caller.
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cals, err := h.store.Calendars.ListByOwner(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, apperr.Internal("list calendars", err))
		return
	}
	views := make([]calendarView, 0, len(cals))
	for i := range cals {
		views = append(views, newCalendarView(&cals[i]))
	}
	httperrors.WriteJSON(w, http.StatusOK, views)
}

// CreateCalendar creates a calendar owned by the caller.
func (h *Handler) CreateCalendar(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createCalendarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, apperr.Validation("Name is required"))
		return
	}
	cal, err := h.store.Calendars.Create(r.Context(), store.Calendar{
		UserID:      p.UserID,
		Name:        name,
		Description: req.Description,
		Color:       req.Color,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeError(w, r, apperr.Internal("create calendar", err))
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, newCalendarView(cal))
}

// GetCalendar returns a calendar the caller owns or that is public.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
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
	cal, err := h.readableCalendar(r, p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, newCalendarView(cal))
}

// UpdateCalendar applies a partial update. Only fields present in the body change.
func (h *Handler) UpdateCalendar(w http.ResponseWriter, r *http.Request) {
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
	var req updateCalendarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if name, ok := req.Name.Get(); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			writeError(w, r, apperr.Validation("Name cannot be empty"))
			return
		}
		req.Name = mo.Some(name)
	}
	if _, err := h.ownedCalendar(r, p, id); err != nil {
		writeError(w, r, err)
		return
	}
	cal, err := h.store.Calendars.Update(r.Context(), id, store.CalendarUpdate{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		IsPublic:    req.IsPublic,
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.NotFound("Calendar not found"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Internal("update calendar", err))
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, newCalendarView(cal))
}

// DeleteCalendar removes an owned calendar and its events.
func (h *Handler) DeleteCalendar(w http.ResponseWriter, r *http.Request) {
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
	if _, err := h.ownedCalendar(r, p, id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.Calendars.Delete(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.Internal("delete calendar", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCalendarEvents returns the events of a readable calendar.
func (h *Handler) ListCalendarEvents(w http.ResponseWriter, r *http.Request) {
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
	cal, err := h.readableCalendar(r, p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := h.store.Events.ListForCalendar(r.Context(), cal.ID)
	if err != nil {
		writeError(w, r, apperr.Internal("list events", err))
		return
	}
	views := make([]eventView, 0, len(events))
	for i := range events {
		views = append(views, newEventView(&events[i]))
	}
	httperrors.WriteJSON(w, http.StatusOK, views)
}

type importResult struct {
	Imported int `json:"imported"`
}

// ImportCalendar stores every VEVENT of an uploaded .ics file in an owned calendar.
func (h *Handler) ImportCalendar(w http.ResponseWriter, r *http.Request) {
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
	cal, err := h.ownedCalendar(r, p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	drafts, err := ical.ParseICS(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	imported := 0
	for _, draft := range drafts {
		if _, err := h.store.Events.Create(r.Context(), cal.ID, draft); err != nil {
			writeError(w, r, apperr.Internal("import event", err))
			return
		}
		imported++
	}
	httperrors.LogInfo(r, "imported events into calendar "+cal.ID.String())
	httperrors.WriteJSON(w, http.StatusOK, importResult{Imported: imported})
}
