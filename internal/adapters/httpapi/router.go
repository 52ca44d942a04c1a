// Package httpapi assembles the gin router: auth middleware, the websocket
// signaling endpoint, the admin room API and the usual operational endpoints.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/adapters/signal"
	"github.com/visign/signaling/internal/auth"
	"github.com/visign/signaling/internal/config"
	"github.com/visign/signaling/internal/core"
)

// AuthMiddleware resolves the caller's identity from a bearer token (header or
// "token" query parameter, since browsers cannot set websocket headers).
// Requests without a resolvable identity are rejected outright.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			h := c.GetHeader("Authorization")
			tokenStr = strings.TrimPrefix(h, "Bearer ")
			if tokenStr == h {
				tokenStr = ""
			}
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		identity, err := auth.Parse(secret, tokenStr)
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("identity rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(signal.IdentityKey, identity)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, coord core.Coordinator, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SignalingSessions", store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if cfg.Mode == "debug" {
		api.POST("/token", devTokenHandler(cfg))
	}

	authed := api.Group("", AuthMiddleware(cfg.Secret))
	authed.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	rooms := authed.Group("/rooms")
	rooms.GET("", listRoomsHandler(coord))
	rooms.GET("/:callID", roomStateHandler(coord))
	rooms.POST("/:callID/lock", lockRoomHandler(coord, true))
	rooms.POST("/:callID/unlock", lockRoomHandler(coord, false))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
