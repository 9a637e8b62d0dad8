package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/auth"
	"github.com/dkeye/Consult/internal/config"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionName = "ConsultSessions"
	sessionKey  = "token"
)

// SessionTokenMiddleware exposes a token stored by POST /api/session as
// "token" on the context, where signal.TokenFrom finds it.
func SessionTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := sessions.Default(c).Get(sessionKey).(string); ok && token != "" {
			c.Set(sessionKey, token)
		}
		c.Next()
	}
}

type sessionRequest struct {
	Token string `json:"token" binding:"required"`
}

type tokenRequest struct {
	User string                 `json:"user" binding:"required"`
	Name string                 `json:"name"`
	Kind domain.ParticipantKind `json:"kind"`
	Room domain.AppointmentID   `json:"room" binding:"required"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, issuer *auth.Issuer, limiter *signal.RoomRateLimiter) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Debug() {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: int(issuer.TTL().Seconds()), HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(SessionTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, issuer, limiter, cfg.ReadLimit, cfg.PingPeriod)

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("room", c.Query("room")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.POST("/session", func(c *gin.Context) {
		var req sessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
			return
		}
		claims, err := issuer.Verify(req.Token, "")
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user, err := claims.Participant()
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		s := sessions.Default(c)
		s.Set(sessionKey, req.Token)
		if err := s.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user, "room": claims.Room})
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Rooms.List())
	})

	api.GET("/rooms/:room", func(c *gin.Context) {
		id, err := domain.ParseAppointmentID(c.Param("room"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_room"})
			return
		}
		room, ok := o.Rooms.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		members := room.MembersSnapshot()
		seated := make([]gin.H, 0, len(members))
		for _, occ := range o.Registry.Occupants(id) {
			seated = append(seated, gin.H{"kind": occ.Kind, "since": occ.Since})
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "member_count": len(members), "members": members, "seated": seated})
	})

	if cfg.Debug() {
		api.POST("/tokens", func(c *gin.Context) {
			var req tokenRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
				return
			}
			token, err := issuer.Issue(auth.Claims{
				User: domain.UserID(req.User),
				Name: req.Name,
				Kind: req.Kind,
				Room: req.Room,
			})
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})

		// ends an appointment for everyone in it
		api.DELETE("/rooms/:room", func(c *gin.Context) {
			id, err := domain.ParseAppointmentID(c.Param("room"))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "bad_room"})
				return
			}
			if _, ok := o.Rooms.Get(id); !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
				return
			}
			o.EvictRoom(id)
			log.Info().Str("module", "adapters.http").Str("room", string(id)).Msg("room evicted")
			c.Status(http.StatusNoContent)
		})
	}

	return r
}
