package di

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bondedlink/internal/common"
	"bondedlink/internal/config"
	"bondedlink/internal/dbmongo"
	"bondedlink/internal/dbmysql"
	"bondedlink/internal/link/handler"
	"bondedlink/internal/link/realtime"
	"bondedlink/internal/link/repository"
	"bondedlink/internal/link/service"
	"bondedlink/internal/linkapi"
	"bondedlink/internal/logger"
	"bondedlink/internal/metrics"
)

// Application is everything cmd/link-svc needs to serve.
type Application struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *gorm.DB
	Mongo     *dbmongo.MongoClient
	Metrics   *metrics.Metrics
	Backend   *linkapi.Client
	Hub       *realtime.Hub
	Registry  *service.Registry
	Handler   *handler.LinkHandler
	Validator *common.TokenValidator
	Limiter   *common.LimiterPool
}

// Close releases chats first so their background writes can still reach the
// stores.
func (a *Application) Close(ctx context.Context) {
	a.Registry.CloseAll()
	a.Limiter.Close()

	if a.Mongo != nil {
		if err := a.Mongo.Close(ctx); err != nil {
			a.Logger.Warn("failed to disconnect mongo", zap.Error(err))
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.Logger.Sync()
}

func ProvideConfig() (*config.Config, error) {
	return config.LoadConfig()
}

func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.NewLogger(cfg.Logging)
}

func ProvideMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

func ProvideDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	return dbmysql.NewMySQL(cfg, log)
}

// ProvideMongo returns nil when the journal store is disabled.
func ProvideMongo(cfg *config.Config, log *zap.Logger) (*dbmongo.MongoClient, error) {
	if !cfg.MongoDB.Enabled {
		log.Info("mongo journal disabled")
		return nil, nil
	}
	return dbmongo.NewMongoConnection(cfg, log)
}

func ProvideJournal(cfg *config.Config, mc *dbmongo.MongoClient) service.JournalWriter {
	if mc == nil {
		return nil
	}
	return dbmongo.NewJournalStore(mc, cfg.MongoDB.JournalCollection)
}

func ProvideBackend(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *linkapi.Client {
	return linkapi.NewClient(cfg.LinkAPI.BaseURL,
		linkapi.WithTimeout(cfg.LinkAPI.Timeout()),
		linkapi.WithLogger(log.Named("linkapi")),
		linkapi.WithMetrics(m),
	)
}

func ProvideHub(log *zap.Logger, m *metrics.Metrics) *realtime.Hub {
	return realtime.NewHub(log.Named("realtime"), m)
}

func ProvideRegistry(
	repo repository.LinkRepository,
	backend *linkapi.Client,
	journal service.JournalWriter,
	hub *realtime.Hub,
	log *zap.Logger,
	m *metrics.Metrics,
	cfg *config.Config,
) *service.Registry {
	return service.NewRegistry(repo, backend, journal, hub, log.Named("link"), m, cfg)
}

func ProvideTokenValidator(cfg *config.Config) *common.TokenValidator {
	return common.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
}

func ProvideLimiter(cfg *config.Config) *common.LimiterPool {
	return common.NewLimiterPool(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}
