package auth

import "errors"

// Outcome classifies a guard decision.
type Outcome string

const (
	OutcomeAuthorized      Outcome = "authorized"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeForbidden       Outcome = "forbidden"
)

// Reason tags explain a denial in logs and audit events. They are never
// sent to the client.
const (
	ReasonMissingToken      = "missing_token"
	ReasonInvalidToken      = "invalid_token"
	ReasonExpiredToken      = "expired_token"
	ReasonUnknownPrincipal  = "unknown_principal"
	ReasonPrincipalDisabled = "principal_disabled"
	ReasonInsufficientRole  = "insufficient_role"
)

// Decision is the result of one guard check.
type Decision struct {
	Allowed   bool
	Outcome   Outcome
	Reason    string
	Claims    *Claims
	Effective RoleSet
}

// Err maps the decision to a sentinel error, or nil when allowed.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Outcome == OutcomeForbidden:
		return ErrInsufficientRole
	case d.Reason == ReasonExpiredToken:
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}

// Guard evaluates bearer tokens against route requirements.
//
// Each Check is evaluated from scratch; nothing is cached between calls.
type Guard struct {
	codec *TokenCodec
	dir   *Directory
}

// NewGuard creates a Guard. When dir is non-nil the token subject must
// resolve to an active principal; a nil dir trusts the signed claims alone.
func NewGuard(codec *TokenCodec, dir *Directory) *Guard {
	return &Guard{codec: codec, dir: dir}
}

// Check verifies token and tests its expanded roles against required.
// An empty required list admits any authenticated principal.
func (g *Guard) Check(token string, required []Role) Decision {
	if token == "" {
		return deny(OutcomeUnauthenticated, ReasonMissingToken, nil)
	}

	claims, err := g.codec.Inspect(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return deny(OutcomeUnauthenticated, ReasonExpiredToken, nil)
		}
		return deny(OutcomeUnauthenticated, ReasonInvalidToken, nil)
	}

	if g.dir != nil {
		p, ok := g.dir.FindByID(claims.Subject)
		if !ok {
			return deny(OutcomeUnauthenticated, ReasonUnknownPrincipal, claims)
		}
		if !p.IsActive() {
			return deny(OutcomeUnauthenticated, ReasonPrincipalDisabled, claims)
		}
	}

	effective := Expand(claims.Roles)
	if !Authorize(effective, required) {
		d := deny(OutcomeForbidden, ReasonInsufficientRole, claims)
		d.Effective = effective
		return d
	}

	return Decision{
		Allowed:   true,
		Outcome:   OutcomeAuthorized,
		Claims:    claims,
		Effective: effective,
	}
}

func deny(outcome Outcome, reason string, claims *Claims) Decision {
	return Decision{Outcome: outcome, Reason: reason, Claims: claims}
}
