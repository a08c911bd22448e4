package identity

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"rekber-service/internal/session"
)

const (
	// CookieName carries the long-lived browser identifier. Unlike
	// session cookies it is room-independent: one per browser, shared
	// by every room that browser participates in.
	CookieName = "rekber_uid"

	// TTL is the identifier cookie lifetime. Refreshed whenever the
	// cookie is re-issued, so active browsers never lose it.
	TTL = 30 * 24 * time.Hour

	// idSize is the identifier entropy. 24 bytes = 192 bits.
	idSize = 24
)

// Mint generates a fresh opaque identifier.
func Mint() (string, error) {

	b := make([]byte, idSize)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("identity: failed to generate identifier: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil

}

// Read returns the identifier from the request, without creating one.
// Read-only flows (room listings, join-page rendering) use this so
// they never silently mint identities.
func Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" || !IsWellFormed(cookie.Value) {
		return "", false
	}
	return cookie.Value, true
}

// Ensure returns the request's identifier, minting one when absent or
// malformed. isNew tells the caller to issue the cookie on the
// response.
func Ensure(r *http.Request) (id string, isNew bool, err error) {
	if existing, ok := Read(r); ok {
		return existing, false, nil
	}

	minted, err := Mint()
	if err != nil {
		return "", false, err
	}
	return minted, true, nil
}

// Issue sets (or refreshes) the identifier cookie.
func Issue(w http.ResponseWriter, id string, opts session.CookieOptions) {
	session.SetCookie(w, CookieName, id, time.Now().Add(TTL), opts)
}

// IsWellFormed checks identifier shape: URL-safe base64, bounded
// length. Identifiers are client-supplied on every request, so shape
// is checked before any repository lookup.
func IsWellFormed(id string) bool {
	if len(id) < 16 || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
