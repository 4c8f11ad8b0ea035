package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"proveit/controllers"
	"proveit/middlewares"
	"proveit/websocket"
)

// Router holds everything the HTTP surface needs.
type Router struct {
	JWTSecret   string
	CORSOrigins []string
	Logger      *slog.Logger

	Profiles *controllers.ProfileController
	Goals    *controllers.GoalController
	Posts    *controllers.PostController
	Friends  *controllers.FriendController
	Hub      *websocket.Hub

	// ReactionLimiter is optional; nil disables reaction rate limiting.
	ReactionLimiter middlewares.Limiter
	// Health reports dependency status for GET /health.
	Health func(ctx context.Context) error
}

func (r Router) Setup() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(r.Logger))
	router.MaxMultipartMemory = controllers.MaxProofImageSize

	corsConfig := cors.Config{
		AllowOrigins:     r.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(r.CORSOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", r.health)
	router.GET("/ws", websocket.FeedHandler(r.Hub, r.JWTSecret, r.Logger))

	auth := router.Group("/")
	auth.Use(middlewares.AuthMiddleware(r.JWTSecret))
	{
		auth.POST("/users/me", r.Profiles.EnsureProfile)
		auth.GET("/users/me", r.Profiles.GetProfile)

		SetupGoalRoutes(auth, r.Goals)
		SetupPostRoutes(auth, r.Posts, middlewares.RateLimit(r.ReactionLimiter, "react", r.Logger))

		auth.POST("/friends/:userId", r.Friends.AddFriend)
		auth.DELETE("/friends/:userId", r.Friends.RemoveFriend)
	}
	return router
}

func (r Router) health(c *gin.Context) {
	if r.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := r.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
