package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when no positive lifetime is configured.
const DefaultTokenTTL = time.Hour

// Claims is the payload carried by an access token. Roles are the raw
// assigned roles, not the expanded closure.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Roles []Role `json:"roles"`
}

// TokenCodec signs and verifies HS256 access tokens.
//
// A TokenCodec is immutable after construction and safe for concurrent use.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates a codec. A ttl <= 0 falls back to DefaultTokenTTL.
// An empty secret returns ErrSecretRequired.
func NewTokenCodec(secret, issuer string, ttl time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCodec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the codec that stamps and checks time using now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// TTL returns the lifetime applied to newly issued tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue stamps iat, exp, jti and iss onto the subject, email and roles
// of claims and signs the result. The stamped claims are returned
// alongside the token.
func (c *TokenCodec) Issue(claims Claims) (string, *Claims, error) {
	if claims.Subject == "" {
		return "", nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	now := c.now()
	stamped := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiryAfter(now, c.ttl)),
			ID:        uuid.NewString(),
		},
		Email: claims.Email,
		Roles: slices.Clone(claims.Roles),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stamped)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing access token: %w", err)
	}
	return signed, &stamped, nil
}

// expiryAfter returns now+ttl rounded up to a whole second. NumericDate
// truncates to seconds, so rounding down would shorten the lifetime.
func expiryAfter(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if floor := exp.Truncate(time.Second); !floor.Equal(exp) {
		return floor.Add(time.Second)
	}
	return exp
}

// Sign is Issue without the stamped claims.
func (c *TokenCodec) Sign(claims Claims) (string, error) {
	signed, _, err := c.Issue(claims)
	return signed, err
}

// Verify checks signature, algorithm, expiry and subject. It returns the
// decoded claims and true only when every check passes. Callers never
// learn which check failed.
func (c *TokenCodec) Verify(tokenString string) (*Claims, bool) {
	claims, err := c.Inspect(tokenString)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// Inspect is Verify with a reason: ErrTokenExpired for a well-formed
// token past its expiry, ErrTokenInvalid for anything else. The reason
// is for logging only and must not reach the client.
func (c *TokenCodec) Inspect(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}

// SignToken signs claims with secret using a default-issuer codec.
func SignToken(claims Claims, secret string, ttl time.Duration) (string, error) {
	codec, err := NewTokenCodec(secret, "", ttl)
	if err != nil {
		return "", err
	}
	return codec.Sign(claims)
}

// VerifyToken verifies a token produced by SignToken.
func VerifyToken(tokenString, secret string) (*Claims, bool) {
	codec, err := NewTokenCodec(secret, "", 0)
	if err != nil {
		return nil, false
	}
	return codec.Verify(tokenString)
}
