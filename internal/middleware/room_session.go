package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rekber-service/internal/identity"
	"rekber-service/internal/logger"
	"rekber-service/internal/participant"
	"rekber-service/internal/resolver"
	"rekber-service/internal/room"
	"rekber-service/internal/session"

	"github.com/gin-gonic/gin"
)

// RoomSession guards routes carrying a :room_id parameter. It ensures
// the browser identifier, runs the resolver chain, applies any cookie
// mutations migration produced, and attaches the resolved session to
// the request context. Requests without a resolvable session are sent
// to the join flow, never handed a raw error.
type RoomSession struct {
	rooms        room.Repository
	participants participant.Repository
	resolver     *resolver.Resolver
	cookieOpts   session.CookieOptions
}

func NewRoomSession(
	rooms room.Repository,
	participants participant.Repository,
	res *resolver.Resolver,
	cookieOpts session.CookieOptions,
) *RoomSession {
	return &RoomSession{
		rooms:        rooms,
		participants: participants,
		resolver:     res,
		cookieOpts:   cookieOpts,
	}
}

func (m *RoomSession) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {

		// 1. Room must exist. The marketplace passes plain numeric
		// ids; opaque external representations are decoded upstream.
		roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "invalid room id",
			})
			return
		}

		rm, err := m.rooms.FindByID(c.Request.Context(), roomID)
		if err != nil {
			logger.Error("room lookup failed", map[string]any{
				"room_id": roomID,
				"error":   err.Error(),
			})
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal error",
			})
			return
		}
		if rm == nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error": "room not found",
			})
			return
		}

		// 2. Browser identifier, minted when absent.
		id, isNew, err := identity.Ensure(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "identity unavailable",
			})
			return
		}
		if isNew {
			identity.Issue(c.Writer, id, m.cookieOpts)
		}

		// 3. Resolver chain.
		match, err := m.resolver.Resolve(c.Request.Context(), roomID, c.Request, id)
		if err != nil {
			logger.Error("session resolution failed", map[string]any{
				"room_id": roomID,
				"error":   err.Error(),
			})
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal error",
			})
			return
		}

		joinURL := fmt.Sprintf("/rooms/%d/join", roomID)

		// 4. No active session: a defined outcome, not a failure.
		if match == nil {
			if wantsJSON(c.Request) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":      "requires_join",
					"room_id":    roomID,
					"identifier": id,
					"join_url":   joinURL,
				})
				return
			}
			c.Redirect(http.StatusFound, joinURL)
			c.Abort()
			return
		}

		// 5. Apply cookie mutations from migration, then refresh the
		// namespaced session cookie for another activity window.
		for _, pc := range match.SetCookies {
			session.SetCookie(c.Writer, pc.Name, pc.Value, pc.ExpiresAt, m.cookieOpts)
		}
		for _, name := range match.ClearCookies {
			session.ClearCookie(c.Writer, name, m.cookieOpts)
		}

		// Keep the 30-day identifier window rolling for active users.
		if !isNew {
			identity.Issue(c.Writer, match.Identifier, m.cookieOpts)
		}

		p := match.Participant
		session.SetCookie(
			c.Writer,
			session.CookieName(roomID, p.Role, match.Identifier),
			p.SessionToken,
			time.Now().Add(session.SessionTTL),
			m.cookieOpts,
		)

		// Presence is a field, not a connection: every authenticated
		// request counts as activity.
		if err := m.participants.Touch(c.Request.Context(), p.ID); err != nil && !errors.Is(err, participant.ErrNotFound) {
			logger.Warn("presence refresh failed", map[string]any{
				"room_id": roomID,
				"error":   err.Error(),
			})
		}

		ctx := WithSession(c.Request.Context(), p, rm, match.Identifier)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// wantsJSON distinguishes API clients (explicit signal back) from
// interactive navigation (redirect to the join page).
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}
