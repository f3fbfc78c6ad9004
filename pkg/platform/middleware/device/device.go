// Package device assigns a stable device identifier cookie and derives a
// request fingerprint from it. Session records keep the identifier so
// operators can tell a user's laptop from their phone in the session list;
// login audit events record the fingerprint alongside it.
package device

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/google/uuid"

	"palisade/pkg/requestcontext"
)

// CookieName is the device identifier cookie.
const CookieName = "palisade_device"

// cookieMaxAge keeps the device identifier for roughly 13 months, the
// longest lifetime current browsers honor.
const cookieMaxAge = 400 * 24 * 60 * 60

// GetDeviceID retrieves the device identifier (cookie value) from the context.
func GetDeviceID(ctx context.Context) string {
	return requestcontext.DeviceID(ctx)
}

// GetDeviceFingerprint retrieves the pre-computed device fingerprint from the context.
func GetDeviceFingerprint(ctx context.Context) string {
	return requestcontext.DeviceFingerprint(ctx)
}

// Middleware ensures the request carries a device identifier cookie,
// minting one when absent, and stores the identifier plus a fingerprint in
// the context. secure controls the cookie's Secure attribute and should be
// true everywhere except local development over plain HTTP.
func Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := ""
			if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
				if _, err := uuid.Parse(c.Value); err == nil {
					deviceID = c.Value
				}
			}
			if deviceID == "" {
				deviceID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    deviceID,
					Path:     "/",
					MaxAge:   cookieMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := requestcontext.WithDeviceID(r.Context(), deviceID)
			ctx = requestcontext.WithDeviceFingerprint(ctx, Fingerprint(deviceID, r.Header.Get("User-Agent"), r.Header.Get("Accept-Language")))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Fingerprint hashes the device identifier together with stable client
// attributes. A changed fingerprint for a known device ID is a hint the
// cookie moved between clients.
func Fingerprint(deviceID, userAgent, acceptLanguage string) string {
	h := sha256.New()
	h.Write([]byte(deviceID))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))
	h.Write([]byte{0})
	h.Write([]byte(acceptLanguage))
	return hex.EncodeToString(h.Sum(nil))
}
