package app

import (
	"context"
	"net/http"

	"rekber-service/internal/activity"
	"rekber-service/internal/admission"
	"rekber-service/internal/config"
	"rekber-service/internal/handler"
	"rekber-service/internal/middleware"
	"rekber-service/internal/participant"
	"rekber-service/internal/resolver"
	"rekber-service/internal/room"
	"rekber-service/internal/session"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	participants := participant.NewPostgresRepository(infra.DB)
	rooms := room.NewPostgresRepository(infra.DB)
	activityStore := activity.NewRedisStore(infra.Redis.Client)

	cookieOpts := session.CookieOptions{
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	sessionResolver := resolver.New(participants, activityStore)
	engine := admission.NewEngine(participants, rooms, activityStore)
	roomSession := middleware.NewRoomSession(rooms, participants, sessionResolver, cookieOpts)

	roomHandler := handler.NewHandler(
		rooms,
		participants,
		engine,
		cookieOpts,
		cfg.GMAdminKey,
	)

	// ----------------------------
	// Router
	// ----------------------------

	handler.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())

	roomHandler.RegisterRoutes(router, roomSession)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		return infra.DB.Close()
	}, nil
}
