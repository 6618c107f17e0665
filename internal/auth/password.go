package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var errMalformedHash = errors.New("malformed password hash")

// argon2idParams are the cost settings encoded in a PHC string.
type argon2idParams struct {
	memory  uint32 // KiB
	time    uint32
	threads uint8
}

// defaultArgon2id is used for every newly hashed secret.
var defaultArgon2id = argon2idParams{memory: 64 * 1024, time: 3, threads: 1}

const (
	argon2idKeyLen  = 32
	argon2idSaltLen = 16
)

var b64 = base64.RawStdEncoding

// HashPassword returns an Argon2id PHC string for secret:
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
func HashPassword(secret string) (string, error) {
	salt := make([]byte, argon2idSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}
	p := defaultArgon2id
	key := argon2.IDKey([]byte(secret), salt, p.time, p.memory, p.threads, argon2idKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// VerifyPassword reports whether secret matches encoded, which may be an
// Argon2id PHC string or a bcrypt hash. A mismatch is (false, nil); an
// unreadable hash is an error.
func VerifyPassword(secret, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		switch err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret)); {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("bcrypt: %w", err)
		}
	}

	p, salt, key, err := parseArgon2id(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(secret), salt, p.time, p.memory, p.threads, uint32(len(key))) //nolint:gosec // G115: key length is small
	return subtle.ConstantTimeCompare(key, got) == 1, nil
}

// IsSupportedHash reports whether VerifyPassword can check encoded.
func IsSupportedHash(encoded string) bool {
	if isBcrypt(encoded) {
		_, err := bcrypt.Cost([]byte(encoded))
		return err == nil
	}
	_, _, _, err := parseArgon2id(encoded)
	return err == nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

// parseArgon2id splits "$argon2id$v=..$m=..,t=..,p=..$salt$key".
func parseArgon2id(encoded string) (argon2idParams, []byte, []byte, error) {
	var p argon2idParams

	rest, ok := strings.CutPrefix(encoded, "$argon2id$")
	if !ok {
		return p, nil, nil, fmt.Errorf("%w: not argon2id", errMalformedHash)
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 { //nolint:mnd // version, params, salt, key
		return p, nil, nil, fmt.Errorf("%w: want 4 fields after the algorithm, got %d", errMalformedHash, len(fields))
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: version: %w", errMalformedHash, err)
	}
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: params: %w", errMalformedHash, err)
	}

	salt, err := b64.DecodeString(fields[2])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	key, err := b64.DecodeString(fields[3])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", errMalformedHash)
	}
	return p, salt, key, nil
}
