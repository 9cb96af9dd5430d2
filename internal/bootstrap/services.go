package bootstrap

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/milkmob/internal/analysis"
	"github.com/jonesrussell/north-cloud/milkmob/internal/campaign"
	"github.com/jonesrussell/north-cloud/milkmob/internal/classifier"
	"github.com/jonesrussell/north-cloud/milkmob/internal/cohort"
	"github.com/jonesrussell/north-cloud/milkmob/internal/config"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
	"github.com/jonesrussell/north-cloud/milkmob/internal/processor"
	"github.com/jonesrussell/north-cloud/milkmob/internal/tags"
	"github.com/jonesrussell/north-cloud/milkmob/internal/telemetry"
	"github.com/jonesrussell/north-cloud/milkmob/internal/validator"
)

// ServiceComponents holds the campaign service and the parts other
// subsystems need direct access to.
type ServiceComponents struct {
	Service    *campaign.Service
	Classifier *classifier.Classifier
	Analyzer   *analysis.Analyzer
}

// SetupAnalyzer builds the video analysis adapter. It returns nil when no API
// key is configured; submissions then report the analyzer as unavailable.
func SetupAnalyzer(cfg *config.Config, log logger.Logger, tp *telemetry.Provider) *analysis.Analyzer {
	if cfg.Analysis.APIKey == "" {
		log.Warn("Video analysis API key not set, submissions are disabled")
		return nil
	}

	client := analysis.NewClient(analysis.ClientConfig{
		BaseURL:           cfg.Analysis.BaseURL,
		APIKey:            cfg.Analysis.APIKey,
		Timeout:           cfg.Analysis.Timeout,
		RequestsPerSecond: cfg.Analysis.RequestsPerSecond,
		Burst:             cfg.Analysis.Burst,
		MaxRetries:        cfg.Analysis.MaxRetries,
		BreakerFailures:   cfg.Analysis.BreakerFailures,
		BreakerTimeout:    cfg.Analysis.BreakerTimeout,
	}, log, tp)

	log.Info("Video analysis client initialized",
		logger.String("base_url", cfg.Analysis.BaseURL),
		logger.String("index", cfg.Analysis.IndexID),
	)
	return analysis.NewAnalyzer(client, analysis.AnalyzerConfig{
		IndexName:    cfg.Analysis.IndexID,
		Models:       cfg.Analysis.Models,
		PollInterval: cfg.Analysis.PollInterval,
		IndexTimeout: cfg.Analysis.IndexTimeout,
	}, log)
}

// SetupServices builds the campaign components on top of the cohort store and
// tag counter. Learned keyword weights are applied before the first request.
func SetupServices(
	ctx context.Context,
	cfg *config.Config,
	repo *cohort.Repository,
	counter tags.Counter,
	log logger.Logger,
	tp *telemetry.Provider,
) (*ServiceComponents, error) {
	detector := tags.NewDetector(cfg.Campaign.Tags, counter, log)

	v := validator.New(validator.Config{
		MilkThreshold:       cfg.Validation.MilkThreshold,
		DrinkingThreshold:   cfg.Validation.DrinkingThreshold,
		CreativityThreshold: cfg.Validation.CreativityThreshold,
		AudioThreshold:      cfg.Validation.AudioThreshold,
		TagBoostCap:         cfg.Validation.TagBoostCap,
	}, log)

	c, err := classifier.New(Categories(cfg), repo, classifier.Config{
		FallbackCategoryID: cfg.Classification.FallbackCategoryID,
		FallbackScore:      cfg.Classification.FallbackScore,
		NearbyLimit:        cfg.Classification.NearbyLimit,
		TopFeatures:        cfg.Classification.TopFeatures,
		SampleKeywords:     cfg.Classification.SampleKeywords,
	}, log, tp)
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}

	weights, err := repo.KeywordWeights(ctx)
	if err != nil {
		log.Warn("Failed to load learned keyword weights", logger.Error(err))
	} else {
		c.ApplyWeights(weights)
	}

	deps := campaign.Dependencies{
		Detector:   detector,
		Validator:  v,
		Classifier: c,
		Batch:      processor.NewBatchProcessor(c, cfg.Service.Concurrency, log),
		Store:      repo,
		Logger:     log,
		Telemetry:  tp,
	}
	analyzer := SetupAnalyzer(cfg, log, tp)
	if analyzer != nil {
		deps.Analyzer = analyzer
	}

	svc, err := campaign.NewService(deps, campaign.Config{
		PopularTagLimit: cfg.Campaign.PopularTagLimit,
		StatsTopVideos:  cfg.Classification.StatsTopVideos,
		SimilarLimit:    cfg.Campaign.SimilarLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create campaign service: %w", err)
	}

	return &ServiceComponents{Service: svc, Classifier: c, Analyzer: analyzer}, nil
}
