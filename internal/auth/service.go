package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginResult is returned by a successful Login.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	ExpiresAt   time.Time
	Claims      *Claims
	Principal   PrincipalSummary
}

// Authenticator checks identifier/secret pairs against the Directory and
// issues tokens for the ones that match.
//
// It holds no mutable state: there are no lockout counters, and a failed
// attempt has no effect on later ones. Rate limiting belongs to the
// transport layer.
type Authenticator struct {
	dir       *Directory
	codec     *TokenCodec
	logger    *slog.Logger
	dummyHash string
}

// NewAuthenticator creates an Authenticator. A nil logger discards output.
func NewAuthenticator(dir *Directory, codec *TokenCodec, logger *slog.Logger) (*Authenticator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// Unknown identifiers are verified against this hash so both
	// failure paths cost one Argon2id derivation.
	buf := make([]byte, 16) //nolint:mnd // random filler secret
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating dummy secret: %w", err)
	}
	dummy, err := HashPassword(hex.EncodeToString(buf))
	if err != nil {
		return nil, fmt.Errorf("hashing dummy secret: %w", err)
	}

	return &Authenticator{
		dir:       dir,
		codec:     codec,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// ValidateCredentials returns the principal when identifier exists, the
// secret matches and the principal is active. Every failure returns
// (nil, false) with no further detail.
func (a *Authenticator) ValidateCredentials(identifier, secret string) (*Principal, bool) {
	p, found := a.dir.FindByIdentifier(identifier)
	if !found {
		_, _ = VerifyPassword(secret, a.dummyHash) //nolint:errcheck // result discarded, only the cost matters
		return nil, false
	}

	match, err := VerifyPassword(secret, p.SecretHash)
	if err != nil {
		a.logger.Error("stored secret hash is unreadable", "principal", p.ID, "error", err)
		return nil, false
	}
	if !match || !p.IsActive() {
		return nil, false
	}
	return p, true
}

// Login validates credentials and issues a token carrying the principal's
// raw roles. Any credential failure returns ErrInvalidCredentials; other
// errors indicate a signing fault.
func (a *Authenticator) Login(identifier, secret string) (*LoginResult, error) {
	p, ok := a.ValidateCredentials(identifier, secret)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, claims, err := a.codec.Issue(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: p.ID},
		Email:            p.Identifier,
		Roles:            p.Roles,
	})
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   a.codec.TTL(),
		ExpiresAt:   claims.ExpiresAt.Time,
		Claims:      claims,
		Principal:   p.Summary(),
	}, nil
}

// Directory returns the directory the authenticator reads from.
func (a *Authenticator) Directory() *Directory {
	return a.dir
}
