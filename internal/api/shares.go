package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"gitea.jw6.us/james/calhub/internal/apperr"
	httperrors "gitea.jw6.us/james/calhub/internal/http/errors"
	"gitea.jw6.us/james/calhub/internal/store"
)

type createShareRequest struct {
	SharedWithEmail string `json:"shared_with_email"`
	Permission      string `json:"permission"`
}

// ListShares returns the shares of an owned calendar.
func (h *Handler) ListShares(w http.ResponseWriter, r *http.Request) {
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
	shares, err := h.store.Shares.ListForCalendar(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("list shares", err))
		return
	}
	views := make([]shareView, 0, len(shares))
	for i := range shares {
		views = append(views, newShareView(&shares[i]))
	}
	httperrors.WriteJSON(w, http.StatusOK, views)
}

// CreateShare records that an owned calendar is shared with an email
// address. Shares are stored only; they do not grant CalDAV access.
func (h *Handler) CreateShare(w http.ResponseWriter, r *http.Request) {
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
	var req createShareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.SharedWithEmail))
	if err != nil {
		writeError(w, r, apperr.Validation("Invalid email address"))
		return
	}
	email := strings.ToLower(addr.Address)
	permission := store.PermissionLevel(strings.ToLower(strings.TrimSpace(req.Permission)))
	if permission == "" {
		permission = store.PermissionRead
	}
	if !permission.Valid() {
		writeError(w, r, apperr.Validation("Invalid permission level"))
		return
	}
	if email == strings.ToLower(p.Email) {
		writeError(w, r, apperr.Validation("Cannot share a calendar with yourself"))
		return
	}
	cal, err := h.ownedCalendar(r, p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	share := store.Share{CalendarID: cal.ID, UserID: p.UserID, SharedWithEmail: email, Permission: permission}
	if user, err := h.store.Users.GetByEmail(r.Context(), email); err == nil {
		share.SharedWithUserID = &user.ID
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.Internal("look up share recipient", err))
		return
	}

	created, err := h.store.Shares.Create(r.Context(), share)
	if errors.Is(err, store.ErrConflict) {
		writeError(w, r, apperr.Conflict("Calendar is already shared with %s", email))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Internal("create share", err))
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, newShareView(created))
}

// DeleteShare removes a share from a calendar the caller owns.
func (h *Handler) DeleteShare(w http.ResponseWriter, r *http.Request) {
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
	share, err := h.store.Shares.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.NotFound("Share not found"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Internal("load share", err))
		return
	}
	if _, err := h.ownedCalendar(r, p, share.CalendarID); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.Shares.Delete(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.Internal("delete share", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
