package auth

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// DefaultDirectoryPrefix is the key prefix used when DirectoryOptions.Prefix is empty.
const DefaultDirectoryPrefix = "GATEHOUSE_USER_"

// devFallbackSecret backs every principal that has no configured secret
// when AllowDevFallback is set. Such principals share one guessable
// password, so the path is refused unless explicitly enabled.
const devFallbackSecret = "gatehouse-dev-only"

// Key suffixes that make up one principal group.
const (
	suffixEmail        = "_EMAIL"
	suffixDisplay      = "_DISPLAY"
	suffixRoles        = "_ROLES"
	suffixPassword     = "_PASSWORD"
	suffixPasswordHash = "_PASSWORD_HASH"
	suffixStatus       = "_STATUS"
)

// DirectoryOptions controls how LoadDirectory reads its source.
type DirectoryOptions struct {
	// Prefix precedes every group key. Defaults to DefaultDirectoryPrefix.
	Prefix string

	// AllowDevFallback lets principals without a secret load with the
	// shared development hash instead of failing with ErrConfigurationGap.
	AllowDevFallback bool

	// Logger receives load warnings. Nil discards them.
	Logger *slog.Logger

	// Now stamps CreatedAt. Defaults to time.Now.
	Now func() time.Time
}

// Directory is the immutable in-memory registry of principals.
//
// It is built once by LoadDirectory and never changes afterwards, so all
// lookups are safe for concurrent use without locking. Lookups return
// copies so callers cannot mutate the registry.
type Directory struct {
	principals   []*Principal
	byIdentifier map[string]*Principal
	byID         map[string]*Principal
}

// LoadDirectory builds a Directory from flat key/value configuration.
//
// A principal exists for every key of the form <Prefix><GROUP>_EMAIL.
// The related keys _DISPLAY, _ROLES, _PASSWORD, _PASSWORD_HASH and
// _STATUS are optional. The secret hash is resolved in order: the
// pre-hashed value, then Argon2id of the plaintext, then the shared
// development hash (only with AllowDevFallback).
//
// Returns ErrDuplicateIdentifier when two groups share an identifier or
// an id, and ErrConfigurationGap for a principal with no usable secret.
func LoadDirectory(src map[string]string, opts DirectoryOptions) (*Directory, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultDirectoryPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	createdAt := now().UTC()

	groups := discoverGroups(src, prefix)

	d := &Directory{
		principals:   make([]*Principal, 0, len(groups)),
		byIdentifier: make(map[string]*Principal, len(groups)),
		byID:         make(map[string]*Principal, len(groups)),
	}

	var fallbackHash string
	for _, group := range groups {
		base := prefix + group
		identifier := strings.TrimSpace(src[base+suffixEmail])
		if identifier == "" {
			logger.Warn("skipping principal with empty identifier", "group", group)
			continue
		}

		p := &Principal{
			ID:          principalID(group),
			Identifier:  identifier,
			DisplayName: strings.TrimSpace(src[base+suffixDisplay]),
			Roles:       ParseRoles(src[base+suffixRoles]),
			CreatedAt:   createdAt,
		}
		if p.DisplayName == "" {
			p.DisplayName = group
		}

		status, err := parseStatus(src[base+suffixStatus])
		if err != nil {
			return nil, fmt.Errorf("principal %s: %w", group, err)
		}
		p.Status = status

		key := strings.ToLower(identifier)
		if _, dup := d.byIdentifier[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, identifier)
		}
		if _, dup := d.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: id %s", ErrDuplicateIdentifier, p.ID)
		}

		hash, err := resolveSecret(src[base+suffixPasswordHash], src[base+suffixPassword])
		if err != nil {
			return nil, fmt.Errorf("principal %s: %w", group, err)
		}
		if hash == "" {
			if !opts.AllowDevFallback {
				return nil, fmt.Errorf("%w: %s (set %s%s or %s%s)",
					ErrConfigurationGap, group, base, suffixPassword, base, suffixPasswordHash)
			}
			if fallbackHash == "" {
				fallbackHash, err = HashPassword(devFallbackSecret)
				if err != nil {
					return nil, fmt.Errorf("hashing development fallback: %w", err)
				}
			}
			logger.Warn("principal is using the shared development secret; never run this in production",
				"principal", p.ID,
				"identifier", p.Identifier,
			)
			hash = fallbackHash
		}
		p.SecretHash = hash

		d.principals = append(d.principals, p)
		d.byIdentifier[key] = p
		d.byID[p.ID] = p
	}

	return d, nil
}

// discoverGroups returns the sorted group names that carry an _EMAIL key.
func discoverGroups(src map[string]string, prefix string) []string {
	var groups []string
	for key := range src {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffixEmail) {
			continue
		}
		group := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffixEmail)
		if group == "" {
			continue
		}
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

// principalID derives a stable slug from a group key: ADMIN_ONE -> admin-one.
func principalID(group string) string {
	return strings.ReplaceAll(strings.ToLower(group), "_", "-")
}

func parseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StatusActive:
		return StatusActive, nil
	case StatusDisabled:
		return StatusDisabled, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// resolveSecret picks the stored hash for a principal. An empty result
// with a nil error means no secret was configured.
func resolveSecret(preHashed, plaintext string) (string, error) {
	if preHashed = strings.TrimSpace(preHashed); preHashed != "" {
		if !IsSupportedHash(preHashed) {
			return "", fmt.Errorf("%w: unsupported password hash format", ErrConfigurationGap)
		}
		return preHashed, nil
	}
	if plaintext != "" {
		hash, err := HashPassword(plaintext)
		if err != nil {
			return "", fmt.Errorf("hashing password: %w", err)
		}
		return hash, nil
	}
	return "", nil
}

// FindByIdentifier looks up a principal by identifier, ignoring case.
func (d *Directory) FindByIdentifier(identifier string) (*Principal, bool) {
	p, ok := d.byIdentifier[strings.ToLower(strings.TrimSpace(identifier))]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// FindByID looks up a principal by its derived id.
func (d *Directory) FindByID(id string) (*Principal, bool) {
	p, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// List returns every principal ordered by group key.
func (d *Directory) List() []*Principal {
	out := make([]*Principal, len(d.principals))
	for i, p := range d.principals {
		out[i] = p.clone()
	}
	return out
}

// Len returns the number of principals.
func (d *Directory) Len() int {
	return len(d.principals)
}
