// Package api serves the JSON REST interface for users, calendars, events
// and shares.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gitea.jw6.us/james/calhub/internal/apperr"
	"gitea.jw6.us/james/calhub/internal/auth"
	httperrors "gitea.jw6.us/james/calhub/internal/http/errors"
	"gitea.jw6.us/james/calhub/internal/store"
)

// maxJSONBodyBytes bounds request bodies, including .ics imports.
const maxJSONBodyBytes int64 = 10 * 1024 * 1024

// Handler serves the REST API.
type Handler struct {
	store       *store.Store
	authService *auth.Service
	oidc        *auth.OIDC
	now         func() time.Time
}

// NewHandler builds the REST handlers. oidc may be nil when no provider is configured.
func NewHandler(store *store.Store, authService *auth.Service, oidc *auth.OIDC) *Handler {
	return &Handler{store: store, authService: authService, oidc: oidc, now: time.Now}
}

// OIDCEnabled reports whether the OpenID Connect endpoints should be mounted.
func (h *Handler) OIDCEnabled() bool {
	return h.oidc != nil
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httperrors.WriteAPIError(w, r, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("Request body too large")
		}
		return apperr.Validation("Invalid JSON body")
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.InvalidID(err)
	}
	return id, nil
}

func principal(r *http.Request) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return auth.Principal{}, apperr.Authentication("Authentication required")
	}
	return p, nil
}

// loadCalendar maps a missing calendar to a not-found error.
func (h *Handler) loadCalendar(r *http.Request, id uuid.UUID) (*store.Calendar, error) {
	cal, err := h.store.Calendars.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Calendar not found")
	}
	if err != nil {
		return nil, apperr.Internal("load calendar", err)
	}
	return cal, nil
}

func (h *Handler) ownedCalendar(r *http.Request, p auth.Principal, id uuid.UUID) (*store.Calendar, error) {
	cal, err := h.loadCalendar(r, id)
	if err != nil {
		return nil, err
	}
	if !cal.OwnedBy(p.UserID) {
		return nil, apperr.Forbidden("You don't own this calendar")
	}
	return cal, nil
}

func (h *Handler) readableCalendar(r *http.Request, p auth.Principal, id uuid.UUID) (*store.Calendar, error) {
	cal, err := h.loadCalendar(r, id)
	if err != nil {
		return nil, err
	}
	if !cal.ReadableBy(p.UserID) {
		return nil, apperr.Forbidden("Access denied")
	}
	return cal, nil
}

// eventWithCalendar loads an event together with the calendar it belongs to.
func (h *Handler) eventWithCalendar(r *http.Request, id uuid.UUID) (*store.Event, *store.Calendar, error) {
	ev, err := h.store.Events.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.NotFound("Event not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("load event", err)
	}
	cal, err := h.loadCalendar(r, ev.CalendarID)
	if err != nil {
		return nil, nil, err
	}
	return ev, cal, nil
}
