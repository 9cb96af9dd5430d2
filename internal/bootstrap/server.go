package bootstrap

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/milkmob/internal/api"
	"github.com/jonesrussell/north-cloud/milkmob/internal/campaign"
	"github.com/jonesrussell/north-cloud/milkmob/internal/config"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
	"github.com/jonesrussell/north-cloud/milkmob/internal/storage"
	"github.com/jonesrussell/north-cloud/milkmob/internal/telemetry"
)

// SetupHTTPServer creates and configures the HTTP server. The database check
// fails the health endpoint; Redis only degrades it.
func SetupHTTPServer(
	cfg *config.Config,
	svc *campaign.Service,
	uploads *storage.VideoStore,
	db *sqlx.DB,
	redisClient *redis.Client,
	tp *telemetry.Provider,
	log logger.Logger,
) *api.Server {
	checks := map[string]api.HealthChecker{
		"database": api.PingChecker(db.PingContext, api.HealthStatusUnhealthy),
	}
	if redisClient != nil {
		checks["redis"] = api.PingChecker(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}, api.HealthStatusDegraded)
	}

	handler := api.NewHandler(svc, uploads, cfg.Uploads.MaxBytes, log)
	opts := api.RouteOptions{
		JWTSecret: cfg.Auth.JWTSecret,
		Metrics:   tp.Handler(),
		Health: api.HealthOptions{
			ServiceName:    cfg.Service.Name,
			ServiceVersion: cfg.Service.Version,
			StartTime:      time.Now(),
			Checks:         checks,
		},
	}

	return api.NewServer(api.ServerConfig{
		Port:            cfg.Service.Port,
		Debug:           cfg.Service.Debug,
		ShutdownTimeout: cfg.Service.ShutdownTimeout,
		CORS:            api.CORSConfig{Enabled: true, AllowedOrigins: cfg.Service.CORSOrigins},
		ServiceName:     cfg.Service.Name,
		ServiceVersion:  cfg.Service.Version,
	}, log, func(router *gin.Engine) {
		api.SetupRoutes(router, handler, opts)
	})
}
