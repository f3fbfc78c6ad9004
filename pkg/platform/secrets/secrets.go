// Package secrets provides random secret generation and purpose-scoped key
// derivation for the protection services. CSRF cookie signing and admin
// tokens draw from here so key material handling stays in one place.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	dErrors "palisade/pkg/domain-errors"
)

// Generate creates a cryptographically secure random secret.
// Returns a base64-encoded string suitable for use as admin tokens, signing
// secrets, and similar operator-provisioned values.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RandomBytes fills and returns a buffer of n cryptographically secure
// random bytes.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "byte count must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("could not generate random bytes: %w", err)
	}
	return buf, nil
}

// DeriveKey derives a 32-byte purpose-scoped key from a master secret using
// HKDF-SHA256. Distinct purpose strings yield independent keys, so one
// operator-provisioned secret can safely back several signing contexts.
func DeriveKey(master []byte, purpose string) ([]byte, error) {
	if len(master) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "master secret cannot be empty")
	}
	if purpose == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "purpose cannot be empty")
	}
	r := hkdf.New(sha256.New, master, nil, []byte(purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("could not derive key: %w", err)
	}
	return key, nil
}
