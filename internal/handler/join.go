package handler

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"rekber-service/internal/admission"
	"rekber-service/internal/identity"
	"rekber-service/internal/logger"
	"rekber-service/internal/participant"
	"rekber-service/internal/session"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type joinRequest struct {
	Role    string `json:"role" binding:"required,tradingrole"`
	Name    string `json:"name" binding:"required,max=64"`
	Contact string `json:"contact" binding:"omitempty,max=128"`
	PIN     string `json:"pin" binding:"omitempty,max=32"`
}

type gmJoinRequest struct {
	Name string `json:"name" binding:"required,max=64"`
}

// joinInfo describes the room's seats to the join page. Read-only:
// uses the non-minting identifier read, so listing a room never
// creates an identity.
func (h *Handler) joinInfo(c *gin.Context) {
	rm, ok := h.loadRoom(c)
	if !ok {
		return
	}

	occupancy := gin.H{}
	for _, role := range participant.TradingRoles {
		p, err := h.participants.FindActiveByRole(c.Request.Context(), rm.ID, role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		occupancy["has_"+string(role)] = p != nil
	}

	resp := gin.H{
		"room_id":      rm.ID,
		"status":       rm.Status,
		"pin_required": rm.PINHash != "",
		"occupancy":    occupancy,
	}
	if id, ok := identity.Read(c.Request); ok {
		resp["identifier"] = id
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) join(c *gin.Context) {
	rm, ok := h.loadRoom(c)
	if !ok {
		return
	}

	if !rm.Active(time.Now()) {
		c.JSON(http.StatusGone, gin.H{"error": "room closed"})
		return
	}

	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid join request"})
		return
	}

	if rm.PINHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(rm.PINHash), []byte(req.PIN)); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid pin"})
			return
		}
	}

	id, isNew, err := identity.Ensure(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity unavailable"})
		return
	}
	if isNew {
		identity.Issue(c.Writer, id, h.cookieOpts)
	}

	h.admit(c, admission.AdmitRequest{
		RoomID:     rm.ID,
		Role:       participant.Role(req.Role),
		Identifier: id,
		Name:       req.Name,
		Contact:    req.Contact,
		UserAgent:  c.Request.UserAgent(),
		IP:         c.ClientIP(),
	})
}

// gmJoin is the admin-only path: no occupancy against the trading
// seats, guarded by a shared key instead of room membership.
func (h *Handler) gmJoin(c *gin.Context) {
	if h.gmAdminKey == "" || subtle.ConstantTimeCompare(
		[]byte(c.GetHeader("X-Admin-Key")),
		[]byte(h.gmAdminKey),
	) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	rm, ok := h.loadRoom(c)
	if !ok {
		return
	}

	var req gmJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid join request"})
		return
	}

	id, isNew, err := identity.Ensure(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity unavailable"})
		return
	}
	if isNew {
		identity.Issue(c.Writer, id, h.cookieOpts)
	}

	h.admit(c, admission.AdmitRequest{
		RoomID:     rm.ID,
		Role:       participant.RoleGM,
		Identifier: id,
		Name:       req.Name,
		UserAgent:  c.Request.UserAgent(),
		IP:         c.ClientIP(),
	})
}

// admit runs the decision engine and translates its verdict to HTTP.
func (h *Handler) admit(c *gin.Context, req admission.AdmitRequest) {

	p, d, err := h.engine.Admit(c.Request.Context(), req)
	if err != nil {
		logger.Error("admission failed", map[string]any{
			"room_id": req.RoomID,
			"role":    string(req.Role),
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if d.Outcome == admission.OutcomeRejected {
		resp := gin.H{
			"can_join": false,
			"reason":   d.Reason,
		}
		if d.AlternativeRole != "" {
			resp["alternative_role"] = d.AlternativeRole
		}
		if d.SuggestedAction != "" {
			resp["suggested_action"] = d.SuggestedAction
		}
		if d.ActiveRoomID != 0 {
			resp["active_room_id"] = d.ActiveRoomID
			resp["redirect_url"] = fmt.Sprintf("/rooms/%d", d.ActiveRoomID)
		}
		c.JSON(http.StatusConflict, resp)
		return
	}

	// A role switch leaves the old role's cookie dangling; retire it.
	if d.Outcome == admission.OutcomeSwitchRole {
		if old, ok := p.Role.Other(); ok {
			session.ClearCookie(c.Writer, session.CookieName(req.RoomID, old, req.Identifier), h.cookieOpts)
		}
	}

	session.SetCookie(
		c.Writer,
		session.CookieName(req.RoomID, p.Role, req.Identifier),
		p.SessionToken,
		time.Now().Add(session.SessionTTL),
		h.cookieOpts,
	)

	logger.Info("room admission", map[string]any{
		"room_id": req.RoomID,
		"role":    string(p.Role),
		"outcome": string(d.Outcome),
	})

	c.JSON(http.StatusOK, gin.H{
		"can_join":       true,
		"outcome":        d.Outcome,
		"room_id":        req.RoomID,
		"role":           p.Role,
		"participant_id": p.ID,
		"name":           p.Name,
	})
}
