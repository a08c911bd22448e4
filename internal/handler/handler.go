package handler

import (
	"net/http"
	"strconv"

	"rekber-service/internal/admission"
	"rekber-service/internal/middleware"
	"rekber-service/internal/participant"
	"rekber-service/internal/room"
	"rekber-service/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	rooms        room.Repository
	participants participant.Repository
	engine       *admission.Engine
	cookieOpts   session.CookieOptions
	gmAdminKey   string
}

func NewHandler(
	rooms room.Repository,
	participants participant.Repository,
	engine *admission.Engine,
	cookieOpts session.CookieOptions,
	gmAdminKey string,
) *Handler {
	return &Handler{
		rooms:        rooms,
		participants: participants,
		engine:       engine,
		cookieOpts:   cookieOpts,
		gmAdminKey:   gmAdminKey,
	}
}

// RegisterValidators installs the custom binding rules on gin's
// validator. Must run once before the router serves traffic.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("tradingrole", func(fl validator.FieldLevel) bool {
			r := participant.Role(fl.Field().String())
			return r == participant.RoleBuyer || r == participant.RoleSeller
		})
	}
}

// RegisterRoutes wires the session surface. roomSession guards the
// routes that require an already-established membership.
func (h *Handler) RegisterRoutes(r *gin.Engine, roomSession *middleware.RoomSession) {
	r.GET("/rooms/:room_id/join", h.joinInfo)
	r.POST("/rooms/:room_id/join", h.join)
	r.POST("/rooms/:room_id/gm/join", h.gmJoin)

	authed := r.Group("/")
	authed.Use(roomSession.Handler())
	authed.GET("/rooms/:room_id/session", h.sessionInfo)
	authed.POST("/rooms/:room_id/leave", h.leave)
}

// loadRoom parses :room_id and fetches the room, writing the error
// response itself when the room cannot be used.
func (h *Handler) loadRoom(c *gin.Context) (*room.Room, bool) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return nil, false
	}

	rm, err := h.rooms.FindByID(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}
	if rm == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return nil, false
	}

	return rm, true
}
