package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/post-scheduler/config"
	_ "github.com/d60-Lab/post-scheduler/docs"
	"github.com/d60-Lab/post-scheduler/internal/api/handler"
	"github.com/d60-Lab/post-scheduler/internal/api/middleware"
	"github.com/d60-Lab/post-scheduler/internal/auth"
)

// Setup 注册中间件与路由
func Setup(cfg *config.Config, h *handler.Handler, sessions *auth.Manager) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	if cfg.Server.Mode != gin.ReleaseMode {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	{
		v1.GET("/health", h.Health)

		v1.POST("/auth/session", h.CreateSession)

		posts := v1.Group("/posts")
		{
			posts.POST("/generate", h.Generate)
			posts.POST("", h.CreatePost)
			posts.GET("", h.ListPosts)
			posts.GET("/:id", h.GetPost)
			posts.PUT("/:id", h.UpdatePost)
			posts.PUT("/:id/schedule", h.SchedulePost)
			posts.PUT("/:id/status", h.SetPostStatus)
			posts.DELETE("/:id", h.DeletePost)
		}

		v1.GET("/scheduler/status", h.SchedulerStatus)

		authed := v1.Group("")
		authed.Use(middleware.Auth(sessions))
		{
			authed.GET("/auth/me", h.Me)
			authed.POST("/posts/:id/publish", h.PublishPost)
			authed.POST("/scheduler/run", h.RunScheduler)
		}
	}
	return r
}
