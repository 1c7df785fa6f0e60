package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"contentmod/api/internal/classifier"
	"contentmod/api/internal/config"
	"contentmod/api/internal/mailer"
	"contentmod/api/internal/repository"
	"contentmod/api/internal/service"
	"contentmod/api/internal/storage"
	"contentmod/api/internal/tasks"
)

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	moderation *service.ModerationService
	analytics  *service.AnalyticsService
	db         *pgxpool.Pool
	cache      *redis.Client
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	cache *redis.Client,
	store *storage.ObjectStore,
	runner *tasks.Runner,
	cfg *config.AppConfig,
) HandlerSet {
	moderationRepo := repository.NewModerationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	gemini := classifier.NewGeminiClassifier(cfg.Gemini, log)
	brevo := mailer.NewBrevoMailer(cfg.Brevo, log)

	moderation := service.NewModerationService(moderationRepo, notificationRepo, gemini, store, brevo, runner, log)
	analytics := service.NewAnalyticsService(moderationRepo, notificationRepo, brevo, log)

	return HandlerSet{
		log:        log,
		cfg:        cfg,
		moderation: moderation,
		analytics:  analytics,
		db:         db,
		cache:      cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		moderate := v1.Group("/moderate")
		moderate.POST("/text", h.ModerateText)
		moderate.POST("/image", h.ModerateImage)

		analytics := v1.Group("/analytics")
		analytics.GET("/summary", h.AnalyticsSummary)
	}
}

func (h HandlerSet) includeStack() bool {
	return h.cfg.Environment != "production"
}
