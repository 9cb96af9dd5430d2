package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/milkmob/internal/classifier"
	"github.com/jonesrussell/north-cloud/milkmob/internal/cohort"
	"github.com/jonesrussell/north-cloud/milkmob/internal/config"
	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
)

// SetupDatabase opens the cohort database, applies the schema and seeds the
// category table.
func SetupDatabase(ctx context.Context, cfg *config.Config, log logger.Logger) (*sqlx.DB, *cohort.Repository, error) {
	db, err := cohort.Open(cohort.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}

	repo := cohort.NewRepository(db)
	if err = repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if err = repo.SeedCategories(ctx, Categories(cfg)); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("seed categories: %w", err)
	}

	log.Info("Cohort database ready",
		logger.String("driver", cfg.Database.Driver),
	)
	return db, repo, nil
}

// Categories returns the configured category table, or the built-in one.
func Categories(cfg *config.Config) []domain.Category {
	if len(cfg.Classification.Categories) > 0 {
		return cfg.Classification.Categories
	}
	return classifier.DefaultCategories()
}
