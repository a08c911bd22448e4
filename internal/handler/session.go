package handler

import (
	"net/http"

	"rekber-service/internal/middleware"
	"rekber-service/internal/session"

	"github.com/gin-gonic/gin"
)

// sessionInfo answers "who am I in this room" for an authenticated
// request. Everything it needs was attached by the middleware.
func (h *Handler) sessionInfo(c *gin.Context) {
	ctx := c.Request.Context()

	p, ok := middleware.ParticipantFromContext(ctx)
	rm, okRoom := middleware.RoomFromContext(ctx)
	id, okID := middleware.IdentifierFromContext(ctx)
	if !ok || !okRoom || !okID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no active session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":        rm.ID,
		"room_status":    rm.Status,
		"participant_id": p.ID,
		"role":           p.Role,
		"name":           p.Name,
		"identifier":     id,
		"joined_at":      p.JoinedAt,
		"last_seen":      p.LastSeen,
	})
}

// leave deletes the participant and retires its session cookie. Safe
// to repeat: a second leave resolves nothing and the middleware sends
// the client to the join flow instead.
func (h *Handler) leave(c *gin.Context) {
	ctx := c.Request.Context()

	p, ok := middleware.ParticipantFromContext(ctx)
	id, okID := middleware.IdentifierFromContext(ctx)
	if !ok || !okID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no active session"})
		return
	}

	if _, err := h.engine.Leave(ctx, p.RoomID, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	session.ClearCookie(c.Writer, session.CookieName(p.RoomID, p.Role, id), h.cookieOpts)

	c.Status(http.StatusNoContent)
}
