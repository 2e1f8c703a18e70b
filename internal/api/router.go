package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/slide_review_server/config"
	"github.com/qs3c/slide_review_server/internal/api/handler"
	"github.com/qs3c/slide_review_server/internal/api/middleware"
)

type Router struct {
	reviewHandler  *handler.ReviewHandler
	eventHandler   *handler.EventHandler
	streamHandler  *handler.EventStreamHandler
	catalogHandler *handler.CatalogHandler
	healthHandler  *handler.HealthHandler
	limiter        middleware.Limiter
	cfg            *config.Config
}

// NewRouter limiter 为 nil 时不限流
func NewRouter(
	reviewHandler *handler.ReviewHandler,
	eventHandler *handler.EventHandler,
	streamHandler *handler.EventStreamHandler,
	catalogHandler *handler.CatalogHandler,
	healthHandler *handler.HealthHandler,
	limiter middleware.Limiter,
	cfg *config.Config,
) *Router {
	return &Router{
		reviewHandler:  reviewHandler,
		eventHandler:   eventHandler,
		streamHandler:  streamHandler,
		catalogHandler: catalogHandler,
		healthHandler:  healthHandler,
		limiter:        limiter,
		cfg:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/healthz", r.healthHandler.Check)

	api := engine.Group("/api/v1")
	{
		// 公开接口
		api.GET("/catalog", r.catalogHandler.Get)

		// 事件流，令牌可通过 query 传递
		api.GET("/sessions/:id/events/stream", middleware.StreamAuth(r.cfg.JWT.Secret), r.streamHandler.Handle)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			authenticated.GET("/images/:id/geometry", r.catalogHandler.Geometry)

			authenticated.POST("/reviews", r.reviewHandler.Begin)

			sessions := authenticated.Group("/sessions")
			{
				sessions.GET("/:id", r.reviewHandler.Get)
				sessions.POST("/:id/complete", r.reviewHandler.Complete)

				ingest := []gin.HandlerFunc{r.eventHandler.Ingest}
				if r.limiter != nil {
					ingest = append([]gin.HandlerFunc{middleware.RateLimit(r.limiter, r.cfg.RateLimit.BatchesPerMinute)}, ingest...)
				}
				sessions.POST("/:id/events", ingest...)
			}
		}
	}

	return engine
}
