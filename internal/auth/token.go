package auth

import (
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"gitea.jw6.us/james/calhub/internal/apperr"
)

const tokenIssuer = "calhub"

type tokenClaims struct {
	jwt.Claims
	Email string `json:"email"`
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	key    []byte
	ttl    time.Duration
	signer jose.Signer
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	key := []byte(secret)
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("create token signer: %w", err)
	}
	return &Tokens{key: key, ttl: ttl, signer: signer, now: time.Now}, nil
}

// Issue returns a signed token for the principal and its expiry.
func (t *Tokens) Issue(p Principal) (string, time.Time, error) {
	now := t.now()
	expiry := now.Add(t.ttl)
	claims := tokenClaims{
		Claims: jwt.Claims{
			Issuer:   tokenIssuer,
			Subject:  p.UserID.String(),
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(expiry),
		},
		Email: p.Email,
	}
	raw, err := jwt.Signed(t.signer).Claims(claims).Serialize()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return raw, expiry, nil
}

// Verify checks the signature and expiry of raw and returns its principal.
func (t *Tokens) Verify(raw string) (Principal, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return Principal{}, apperr.Authentication("Invalid token")
	}
	var claims tokenClaims
	if err := tok.Claims(t.key, &claims); err != nil {
		return Principal{}, apperr.Authentication("Invalid token")
	}
	if err := claims.ValidateWithLeeway(jwt.Expected{Issuer: tokenIssuer, Time: t.now()}, 0); err != nil {
		return Principal{}, apperr.Authentication("Token expired or invalid")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, apperr.Authentication("Invalid token subject")
	}
	return Principal{UserID: id, Email: claims.Email}, nil
}
