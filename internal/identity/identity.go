// Package identity provides anonymous per-device identity and condition
// assignment.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	DeviceCookieName   = "fx_device_id"
	DeviceHeaderName   = "X-Device-ID"
	deviceCookieMaxAge = 365 * 24 * time.Hour
)

type contextKey int

const (
	deviceIDKey contextKey = iota
)

var (
	issuedIDPattern = regexp.MustCompile(`^dev_[a-f0-9]{32}$`)
	deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// DeviceIDFromContext extracts the device ID from the request context.
func DeviceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(deviceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithDeviceID returns a context carrying id.
func WithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceIDKey, id)
}

// ValidDeviceID reports whether a client-supplied device id is acceptable.
func ValidDeviceID(id string) bool {
	return deviceIDPattern.MatchString(id)
}

// ResolveDeviceID picks the device id for a request: a valid id supplied in
// the body wins over the cookie identity.
func ResolveDeviceID(ctx context.Context, supplied string) string {
	supplied = strings.TrimSpace(supplied)
	if supplied != "" && ValidDeviceID(supplied) {
		return supplied
	}
	return DeviceIDFromContext(ctx)
}

func generateDeviceID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	return "dev_" + hex.EncodeToString(buf), nil
}

func setDeviceCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     DeviceCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(deviceCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(deviceCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateDeviceID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(DeviceCookieName); err == nil && issuedIDPattern.MatchString(c.Value) {
		setDeviceCookie(w, c.Value, isDev)
		return c.Value, nil
	}
	if h := strings.TrimSpace(r.Header.Get(DeviceHeaderName)); h != "" && ValidDeviceID(h) {
		return h, nil
	}

	id, err := generateDeviceID()
	if err != nil {
		return "", err
	}
	setDeviceCookie(w, id, isDev)
	return id, nil
}

// Middleware injects an anonymous per-device identity, issuing a cookie
// on first contact.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID, err := getOrCreateDeviceID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish device identity"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithDeviceID(r.Context(), deviceID)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
