package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"gitea.jw6.us/james/calhub/internal/apperr"
	httperrors "gitea.jw6.us/james/calhub/internal/http/errors"
	"gitea.jw6.us/james/calhub/internal/store"
)

// Service implements password, token and Basic authentication.
type Service struct {
	users  store.UserRepository
	tokens *Tokens
}

func NewService(users store.UserRepository, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *store.User
}

// Register creates a password account.
func (s *Service) Register(ctx context.Context, name, email, password string) (*store.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("Name is required")
	}
	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.createUser(ctx, name, addr, hash)
}

func (s *Service) createUser(ctx context.Context, name, email, hash string) (*store.User, error) {
	user, err := s.users.Create(ctx, store.User{Name: name, Email: email, PasswordHash: hash})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.Conflict("Email already registered")
	}
	if err != nil {
		return nil, apperr.Internal("create user", err)
	}
	return user, nil
}

// Login checks email and password and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.SessionFor(user)
}

// SessionFor issues a bearer token for an already authenticated user.
func (s *Service) SessionFor(user *store.User) (*Session, error) {
	token, expiry, err := s.tokens.Issue(Principal{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &Session{Token: token, ExpiresAt: expiry, User: user}, nil
}

func (s *Service) checkCredentials(ctx context.Context, email, password string) (*store.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.Authentication("Invalid email or password")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Authentication("Invalid email or password")
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, apperr.Authentication("Invalid email or password")
	}
	return user, nil
}

// Authenticate resolves the caller from an Authorization header. Basic
// credentials are only honoured when allowBasic is set.
func (s *Service) Authenticate(r *http.Request, allowBasic bool) (Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Principal{}, apperr.Authentication("Authentication required")
	}
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return s.tokens.Verify(strings.TrimSpace(token))
	}
	if allowBasic {
		if email, password, ok := r.BasicAuth(); ok {
			user, err := s.checkCredentials(r.Context(), email, password)
			if err != nil {
				return Principal{}, err
			}
			return Principal{UserID: user.ID, Email: user.Email}, nil
		}
	}
	return Principal{}, apperr.Authentication("Unsupported authorization scheme")
}

// RequireToken enforces bearer authentication for JSON API routes.
func (s *Service) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.Authenticate(r, false)
		if err != nil {
			httperrors.WriteAPIError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireDAVAuth enforces Basic or bearer authentication for CalDAV routes.
func (s *Service) RequireDAVAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.Authenticate(r, true)
		if err != nil {
			httperrors.WriteDAVError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", apperr.Validation("Invalid email address")
	}
	return strings.ToLower(addr.Address), nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
