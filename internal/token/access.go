// Package token issues and verifies credentials.  Access tokens are HS256
// JWTs verified without any store lookup; refresh tokens are opaque random
// strings whose SHA-256 digest is the only thing persisted.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/restaurant-auth/internal/apperr"
	"github.com/iliyamo/restaurant-auth/internal/model"
)

// DefaultAccessTTL applies when a Codec is built with a non-positive TTL.
const DefaultAccessTTL = 15 * time.Minute

// Claims is the verified content of an access token.
type Claims struct {
	UserID    uint64
	Email     string
	Role      model.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AccessToken is a signed token plus its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Codec signs and verifies access tokens with a server-held secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string

	// Now is the clock; tests replace it to move past expiry.
	Now func() time.Time
}

// NewCodec returns a Codec.  An empty secret is a configuration error.
func NewCodec(secret string, ttl time.Duration, issuer string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty signing secret", apperr.ErrConfiguration)
	}
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl, issuer: issuer, Now: time.Now}, nil
}

// TTL is the lifetime given to every issued token.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token for the identity.
func (c *Codec) Issue(userID uint64, email string, role model.Role) (AccessToken, error) {
	now := c.Now().UTC()
	exp := now.Add(c.ttl)
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
		Role:  string(role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("signing access token: %w", err)
	}
	// NumericDate has second precision; report what the token actually says.
	return AccessToken{Token: signed, Exp: claims.ExpiresAt.Time}, nil
}

// Verify checks signature and expiry.  It returns apperr.ErrExpiredToken
// for an otherwise valid but expired token, apperr.ErrMalformedToken when
// the input is not a JWT, and apperr.ErrInvalidSignature for everything
// else (wrong key, tampered payload, unexpected algorithm, bad claims).
func (c *Codec) Verify(raw string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.Now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var jc jwtClaims
	tok, err := jwt.ParseWithClaims(raw, &jc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	switch {
	case err == nil && tok.Valid:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Claims{}, apperr.ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, apperr.ErrExpiredToken
	default:
		return Claims{}, apperr.ErrInvalidSignature
	}

	uid, err := strconv.ParseUint(jc.Subject, 10, 64)
	if err != nil || uid == 0 || !model.Role(jc.Role).Valid() {
		return Claims{}, apperr.ErrInvalidSignature
	}
	out := Claims{
		UserID:    uid,
		Email:     jc.Email,
		Role:      model.Role(jc.Role),
		ExpiresAt: jc.ExpiresAt.Time,
	}
	if jc.IssuedAt != nil {
		out.IssuedAt = jc.IssuedAt.Time
	}
	return out, nil
}
