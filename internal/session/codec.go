package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"rekber-service/internal/participant"
)

// tokenSize is the entropy of a session token. 32 bytes = 256 bits.
const tokenSize = 32

// tokenLength is the encoded length of a token: base64 RawURL of
// tokenSize bytes.
const tokenLength = 43

// CookieName derives the namespaced cookie name for one (room, role,
// identifier) membership. The name is deterministic so the resolver
// can recompute it from the request alone; only the token value is
// random. The identifier fragment keeps cookies for different browsers
// from colliding on a shared domain, and the role makes the owner
// readable from the name.
func CookieName(roomID int64, role participant.Role, identifier string) string {
	return fmt.Sprintf("room_%d_%s_%s", roomID, role, identifierFragment(identifier))
}

// LegacyCookieName is the flat pre-multi-session cookie, one per room
// regardless of role. Consumed for migration only, never written.
func LegacyCookieName(roomID int64) string {
	return fmt.Sprintf("rekber_room_%d", roomID)
}

// OldestCookieName is the original cookie scheme. Consumed for
// migration only, never written.
func OldestCookieName(roomID int64) string {
	return fmt.Sprintf("room_session_%d", roomID)
}

// NewToken generates a cryptographically secure session token. The
// token is pure randomness; it must never be derivable from the room,
// role, or identifier.
func NewToken() (string, error) {

	b := make([]byte, tokenSize)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("session: failed to generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil

}

// IsWellFormed checks token shape only, not existence. Legacy records
// can carry tokens from older generators, so anything at least 20
// chars of URL-safe base64 passes; tokens minted here are exactly
// tokenLength.
func IsWellFormed(token string) bool {
	if len(token) < 20 || len(token) > 128 {
		return false
	}
	for _, c := range token {
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

// identifierFragment is the first 8 hex chars of SHA-256(identifier):
// stable, short, and not reversible to the identifier itself.
func identifierFragment(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:4])
}
