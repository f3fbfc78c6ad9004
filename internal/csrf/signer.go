package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

var errBadCookie = errors.New("csrf cookie is malformed or has a bad signature")

// cookiePayload is what lives inside the signed cookie. Times are unix
// seconds so the encoding is stable across serializations.
type cookiePayload struct {
	Token     string `json:"token"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// signer produces and verifies the cookie format
// base64url(payload JSON) + "." + base64url(HMAC-SHA256(payload part)).
type signer struct {
	key []byte
}

func newSigner(key []byte) *signer {
	return &signer{key: key}
}

func (s *signer) sign(payload cookiePayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(body)
	return encoded + "." + s.mac(encoded), nil
}

// verify checks the MAC before deserializing, so unauthenticated bytes
// never reach the JSON decoder.
func (s *signer) verify(value string) (*cookiePayload, error) {
	encoded, mac, ok := strings.Cut(value, ".")
	if !ok || encoded == "" || mac == "" {
		return nil, errBadCookie
	}
	if !hmac.Equal([]byte(mac), []byte(s.mac(encoded))) {
		return nil, errBadCookie
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errBadCookie
	}
	var payload cookiePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errBadCookie
	}
	if payload.Token == "" {
		return nil, errBadCookie
	}
	return &payload, nil
}

func (s *signer) mac(encoded string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
