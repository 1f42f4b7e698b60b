package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/securecookie"
	"golang.org/x/oauth2"

	"gitea.jw6.us/james/calhub/internal/apperr"
	"gitea.jw6.us/james/calhub/internal/config"
	"gitea.jw6.us/james/calhub/internal/store"
)

const (
	stateCookieName = "calhub_oidc_state"
	stateTTL        = 10 * time.Minute
)

type stateCookie struct {
	State   string `json:"state"`
	Expires int64  `json:"exp"`
}

// OIDC signs users in through an external OpenID Connect provider and
// hands out regular bearer tokens afterwards.
type OIDC struct {
	service  *Service
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
	cookies  *securecookie.SecureCookie
	secure   bool
	now      func() time.Time
}

func NewOIDC(ctx context.Context, cfg *config.Config, service *Service) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OAuth.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	o := newOIDCState(cfg, service)
	o.oauth = oauth2.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.BaseURL + cfg.OAuth.RedirectPath,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	o.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.OAuth.ClientID})
	return o, nil
}

// newOIDCState sets up the state cookie codec, keyed from the JWT secret.
func newOIDCState(cfg *config.Config, service *Service) *OIDC {
	hash := sha256.Sum256([]byte("oidc-state:" + cfg.Auth.JWTSecret))
	sc := securecookie.New(hash[:], hash[:])
	sc.MaxAge(int(stateTTL.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}
	return &OIDC{service: service, cookies: sc, secure: secure, now: time.Now}
}

// Begin stores a fresh state value in a signed cookie and returns the
// provider URL to redirect to.
func (o *OIDC) Begin(w http.ResponseWriter) (string, error) {
	state, err := o.issueState(w)
	if err != nil {
		return "", err
	}
	return o.oauth.AuthCodeURL(state), nil
}

func (o *OIDC) issueState(w http.ResponseWriter) (string, error) {
	state, err := randomToken(16)
	if err != nil {
		return "", apperr.Internal("generate oidc state", err)
	}
	encoded, err := o.cookies.Encode(stateCookieName, stateCookie{State: state, Expires: o.now().Add(stateTTL).Unix()})
	if err != nil {
		return "", apperr.Internal("encode oidc state", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   o.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

func (o *OIDC) checkState(r *http.Request) error {
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return apperr.Authentication("Missing login state")
	}
	var value stateCookie
	if err := o.cookies.Decode(stateCookieName, c.Value, &value); err != nil {
		return apperr.Authentication("Invalid login state")
	}
	if value.State == "" || value.State != r.URL.Query().Get("state") || o.now().Unix() > value.Expires {
		return apperr.Authentication("Invalid login state")
	}
	return nil
}

// Complete validates the callback, exchanges the code and signs in the user
// identified by the ID token's email, creating the account on first login.
func (o *OIDC) Complete(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if err := o.checkState(r); err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1, Secure: o.secure})

	if msg := r.URL.Query().Get("error"); msg != "" {
		return nil, apperr.Authentication("Provider rejected login: %s", msg)
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, apperr.Validation("Missing authorization code")
	}

	ctx := r.Context()
	token, err := o.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Authentication("Authorization code exchange failed")
	}
	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, apperr.Authentication("Provider returned no ID token")
	}
	idToken, err := o.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, apperr.Authentication("Invalid ID token")
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperr.Authentication("Invalid ID token claims")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, apperr.Authentication("Email address is not verified")
	}

	user, err := o.findOrCreateUser(ctx, claims.Email, claims.Name)
	if err != nil {
		return nil, err
	}
	return o.service.SessionFor(user)
}

func (o *OIDC) findOrCreateUser(ctx context.Context, email, name string) (*store.User, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, apperr.Authentication("ID token has no usable email")
	}
	user, err := o.service.users.GetByEmail(ctx, addr)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal("load user", err)
	}

	if strings.TrimSpace(name) == "" {
		name = addr
	}
	// Accounts created through the provider get an unguessable password.
	random, err := randomToken(32)
	if err != nil {
		return nil, apperr.Internal("generate password", err)
	}
	hash, err := HashPassword(random)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	return o.service.createUser(ctx, name, addr, hash)
}
