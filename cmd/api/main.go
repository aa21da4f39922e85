package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	_ "github.com/noah-isme/mentorship-api/api/swagger"
	"github.com/noah-isme/mentorship-api/internal/handler"
	"github.com/noah-isme/mentorship-api/internal/repository"
	"github.com/noah-isme/mentorship-api/internal/router"
	"github.com/noah-isme/mentorship-api/internal/service"
	"github.com/noah-isme/mentorship-api/migrations"
	"github.com/noah-isme/mentorship-api/pkg/cache"
	"github.com/noah-isme/mentorship-api/pkg/config"
	"github.com/noah-isme/mentorship-api/pkg/database"
	"github.com/noah-isme/mentorship-api/pkg/logger"
	"github.com/noah-isme/mentorship-api/pkg/sessioncookie"
)

// @title Mentorship API
// @version 1.0.0
// @description Peer mentorship: browse mentors, request sessions, review completed ones.
// @BasePath /api
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := migrations.Apply(ctx, db)
		cancel()
		if err != nil {
			logr.Sugar().Fatalw("migrations failed", "error", err)
		}
		logr.Info("migrations applied")
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, listing cache disabled", "error", err)
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "mentorship:")
	defer cacheRepo.Close() //nolint:errcheck

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.UserTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, cacheSvc, validate, logr, metricsSvc, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		SessionTTL:        cfg.Session.TTL,
		Issuer:            cfg.JWT.Issuer,
		PasswordMinLength: cfg.Auth.PasswordMinLength,
	})
	userSvc := service.NewUserService(userRepo, cacheSvc, cfg.Cache.UserTTL, validate, logr)
	sessionSvc := service.NewSessionService(service.SessionServiceParams{
		Sessions:  sessionRepo,
		Users:     userRepo,
		Audit:     userRepo,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
	})
	feedbackSvc := service.NewFeedbackService(service.FeedbackServiceParams{
		Feedback:  feedbackRepo,
		Users:     userRepo,
		Audit:     userRepo,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
	})
	exportSvc := service.NewExportService(sessionRepo, userRepo, logr, cfg.Exports.Enabled)

	cookies := sessioncookie.New(cfg.Session)

	var cachePinger handler.Pinger
	if redisClient != nil {
		cachePinger = cacheRepo
	}

	r := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metricsSvc,
		Authenticator:  authSvc,
		Cookies:        cookies,
		Auth:           handler.NewAuthHandler(authSvc, cookies, logr),
		Profile:        handler.NewProfileHandler(userSvc),
		Users:          handler.NewUserHandler(userSvc, feedbackSvc),
		Session:        handler.NewSessionHandler(sessionSvc, feedbackSvc, exportSvc),
		Probe:          handler.NewMetricsHandler(metricsSvc, userRepo, cachePinger),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "cache", redisClient != nil)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
