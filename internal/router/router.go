// Package router assembles the gin engine: global middleware, probes,
// metrics, docs and the versioned API group.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/handler"
	"github.com/noah-isme/mentorship-api/internal/middleware"
	"github.com/noah-isme/mentorship-api/internal/service"
	"github.com/noah-isme/mentorship-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mentorship-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mentorship-api/pkg/middleware/requestid"
	"github.com/noah-isme/mentorship-api/pkg/sessioncookie"
)

// Options carries everything the routes need.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool

	Logger        *zap.Logger
	Metrics       *service.MetricsService
	Authenticator middleware.Authenticator
	Cookies       *sessioncookie.Store

	Auth    *handler.AuthHandler
	Profile *handler.ProfileHandler
	Users   *handler.UserHandler
	Session *handler.SessionHandler
	Probe   *handler.MetricsHandler
}

// New builds the engine.
func New(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", opts.Probe.Health)
	r.GET("/ready", opts.Probe.Ready)
	r.GET("/metrics", opts.Probe.Prometheus)

	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requireAuth := middleware.RequireAuth(opts.Authenticator, opts.Cookies)
	optionalAuth := middleware.OptionalAuth(opts.Authenticator, opts.Cookies)

	api := r.Group(opts.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/signup", opts.Auth.Signup)
		auth.POST("/login", opts.Auth.Login)
		auth.POST("/logout", optionalAuth, opts.Auth.Logout)
		auth.GET("/me", optionalAuth, opts.Auth.Me)

		protected := api.Group("", requireAuth)

		protected.GET("/metrics/summary", opts.Probe.Summary)

		protected.GET("/profile", opts.Profile.Get)
		protected.PUT("/profile", opts.Profile.Update)
		protected.GET("/profile/capabilities", opts.Profile.Capabilities)

		protected.GET("/users", middleware.RequireCapability(middleware.CapabilityBrowse), opts.Users.List)
		protected.GET("/users/:id/feedback", opts.Users.Feedback)
		protected.GET("/users/:id/rating", opts.Users.Rating)

		protected.GET("/sessions", opts.Session.List)
		protected.POST("/sessions", opts.Session.Create)
		protected.GET("/sessions/export", opts.Session.Export)
		protected.GET("/sessions/:id", opts.Session.Get)
		protected.PUT("/sessions/:id/status", opts.Session.UpdateStatus)
		protected.POST("/sessions/:id/feedback", opts.Session.CreateFeedback)
	}

	return r
}
