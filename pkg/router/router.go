package router

import (
	"net/http"
	"time"

	"marketchat/backend/internal/api"
	"marketchat/backend/internal/ws"
	"marketchat/backend/pkg/config"
	apperrors "marketchat/backend/pkg/errors"
	"marketchat/backend/pkg/logger"
	"marketchat/backend/pkg/metrics"
	"marketchat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Options carries the handlers and cross-cutting dependencies the router
// wires together
type Options struct {
	Logger *logger.Logger
	Config *config.Config

	Chat  *api.ChatHandler
	Users *api.UserHandler
	Posts *api.PostHandler
	Files *api.FileHandler
	WS    *ws.Handler
}

// New assembles the gin engine: request logging, error rendering, recovery,
// rate limiting and CORS in front of the versioned API groups
func New(opts Options) *gin.Engine {
	if opts.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(logger.Middleware(opts.Logger))
	engine.Use(apperrors.ErrorHandler())
	engine.Use(apperrors.RecoveryWithLogger())
	engine.Use(middleware.CORS(opts.Config.Security.AllowedOrigins))

	limiter := middleware.NewRateLimiter(opts.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(opts.Config.Security.RateLimit),
		Burst:          opts.Config.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
	engine.Use(limiter.Middleware())

	engine.MaxMultipartMemory = opts.Config.Security.MaxUploadSize

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", metrics.Handler())

	engine.GET("/ws", opts.WS.Serve)

	// Local storage backend serves its uploads directly
	if opts.Config.Storage.Backend == "local" {
		engine.Static("/uploads", opts.Config.Storage.LocalPath)
	}

	v1 := engine.Group("/api/v1")
	{
		chat := v1.Group("/chat")
		{
			chat.POST("/rooms", opts.Chat.CreateRoom)
			chat.GET("/rooms", opts.Chat.ListRooms)
			chat.GET("/rooms/:roomId", opts.Chat.GetRoom)
			chat.GET("/messages/:roomId", opts.Chat.GetMessages)
			chat.POST("/messages", opts.Chat.SendMessage)
			chat.POST("/messages/image", opts.Chat.SendImageMessage)
		}

		users := v1.Group("/users")
		{
			users.GET("", opts.Users.List)
			users.POST("", opts.Users.Register)
			users.GET("/:id", opts.Users.Get)
			users.PUT("/:id", opts.Users.Update)
			users.DELETE("/:id", opts.Users.Delete)
			users.GET("/username/:username", opts.Users.GetByUsername)
		}

		posts := v1.Group("/posts")
		{
			posts.GET("", opts.Posts.List)
			posts.POST("", opts.Posts.Create)
			posts.GET("/search", opts.Posts.Search)
			posts.GET("/search/author/:author", opts.Posts.SearchByAuthor)
			posts.GET("/:id", opts.Posts.Get)
			posts.PUT("/:id", opts.Posts.Update)
			posts.DELETE("/:id", opts.Posts.Delete)
		}

		files := v1.Group("/files")
		{
			files.POST("/upload", opts.Files.Upload)
			files.DELETE("", opts.Files.Delete)
		}
	}

	return engine
}
