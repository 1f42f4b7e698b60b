package api

import (
	"errors"
	"net/http"

	"gitea.jw6.us/james/calhub/internal/apperr"
	"gitea.jw6.us/james/calhub/internal/auth"
	httperrors "gitea.jw6.us/james/calhub/internal/http/errors"
	"gitea.jw6.us/james/calhub/internal/store"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a password account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httperrors.LogInfo(r, "registered user "+user.ID.String())
	httperrors.WriteJSON(w, http.StatusCreated, newUserView(user))
}

// Login exchanges email and password for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSession(w, session)
}

// OIDCLogin redirects to the identity provider.
func (h *Handler) OIDCLogin(w http.ResponseWriter, r *http.Request) {
	target, err := h.oidc.Begin(w)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// OIDCCallback completes the provider login and returns a bearer token.
func (h *Handler) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	session, err := h.oidc.Complete(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSession(w, session)
}

func writeSession(w http.ResponseWriter, session *auth.Session) {
	httperrors.WriteJSON(w, http.StatusOK, sessionView{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC(),
		User:      newUserView(session.User),
	})
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.loadUser(r, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, newUserView(user))
}

// GetUser returns a user by id. Callers may only read their own record.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
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
	if id != p.UserID {
		writeError(w, r, apperr.Forbidden("Access denied"))
		return
	}
	user, err := h.loadUser(r, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, newUserView(user))
}

func (h *Handler) loadUser(r *http.Request, p auth.Principal) (*store.User, error) {
	user, err := h.store.Users.GetByID(r.Context(), p.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	return user, nil
}
