package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGuard_Check(t *testing.T) {
	clock := fixedNow
	codec := newTestCodec(t, time.Minute, &clock)
	guard := NewGuard(codec, testDirectory(t))

	sign := func(sub string, roles ...Role) string {
		t.Helper()
		token, err := codec.Sign(subjectClaims(sub, roles...))
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		return token
	}

	tests := []struct {
		name        string
		token       string
		required    []Role
		wantAllowed bool
		wantOutcome Outcome
		wantReason  string
	}{
		{"missing token", "", nil, false, OutcomeUnauthenticated, ReasonMissingToken},
		{"garbage token", "abc.def.ghi", nil, false, OutcomeUnauthenticated, ReasonInvalidToken},
		{"unknown subject", sign("mallory", RoleAdmin), nil, false, OutcomeUnauthenticated, ReasonUnknownPrincipal},
		{"disabled subject", sign("carol", RoleUser), nil, false, OutcomeUnauthenticated, ReasonPrincipalDisabled},
		{"no requirement", sign("bob", RoleFinance), nil, true, OutcomeAuthorized, ""},
		{"inherited role", sign("bob", RoleFinance), []Role{RoleAnalyst}, true, OutcomeAuthorized, ""},
		{"any of", sign("bob", RoleFinance), []Role{RoleSecurity, RoleFinance}, true, OutcomeAuthorized, ""},
		{"insufficient", sign("bob", RoleFinance), []Role{RoleSecurity}, false, OutcomeForbidden, ReasonInsufficientRole},
		{"admin everywhere", sign("alice", RoleAdmin), []Role{RoleSecurity}, true, OutcomeAuthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := guard.Check(tt.token, tt.required)
			if d.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.wantAllowed)
			}
			if d.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", d.Outcome, tt.wantOutcome)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
			if d.Allowed && (d.Claims == nil || d.Effective == nil) {
				t.Error("allowed decision should carry claims and effective roles")
			}
		})
	}
}

func TestGuard_ExpiredToken(t *testing.T) {
	clock := fixedNow
	codec := newTestCodec(t, time.Second, &clock)
	guard := NewGuard(codec, testDirectory(t))

	token, err := codec.Sign(subjectClaims("bob", RoleFinance))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	clock = fixedNow.Add(2 * time.Second)
	d := guard.Check(token, nil)

	if d.Allowed || d.Reason != ReasonExpiredToken {
		t.Errorf("Check() = %+v, want expired_token denial", d)
	}
	if !errors.Is(d.Err(), ErrTokenExpired) {
		t.Errorf("Err() = %v, want ErrTokenExpired", d.Err())
	}
}

func TestGuard_WithoutDirectory(t *testing.T) {
	clock := fixedNow
	codec := newTestCodec(t, time.Minute, &clock)
	guard := NewGuard(codec, nil)

	token, err := codec.Sign(subjectClaims("anyone", RoleDeveloper))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if d := guard.Check(token, []Role{RoleUser}); !d.Allowed {
		t.Errorf("Check() = %+v, want allowed from claims alone", d)
	}
}

func TestDecision_Err(t *testing.T) {
	tests := []struct {
		name string
		d    Decision
		want error
	}{
		{"allowed", Decision{Allowed: true, Outcome: OutcomeAuthorized}, nil},
		{"forbidden", Decision{Outcome: OutcomeForbidden, Reason: ReasonInsufficientRole}, ErrInsufficientRole},
		{"invalid", Decision{Outcome: OutcomeUnauthenticated, Reason: ReasonInvalidToken}, ErrTokenInvalid},
		{"disabled", Decision{Outcome: OutcomeUnauthenticated, Reason: ReasonPrincipalDisabled}, ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.d.Err(); !errors.Is(err, tt.want) {
				t.Errorf("Err() = %v, want %v", err, tt.want)
			}
		})
	}
}
