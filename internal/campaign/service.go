// Package campaign is the upward interface of the validator: tag detection,
// validation, classification, cohort statistics and the end-to-end
// submission pipeline.
package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jonesrussell/north-cloud/milkmob/internal/classifier"
	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/features"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
	"github.com/jonesrussell/north-cloud/milkmob/internal/processor"
	"github.com/jonesrussell/north-cloud/milkmob/internal/tags"
	"github.com/jonesrussell/north-cloud/milkmob/internal/telemetry"
	"github.com/jonesrussell/north-cloud/milkmob/internal/validator"
)

// Submission statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Validation outcomes recorded in metrics.
const (
	outcomeValid   = "valid"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

const (
	defaultPopularTagLimit = 10
	defaultStatsTopVideos  = 10
	defaultSimilarLimit    = 5
)

// Analyzer produces analysis records from uploaded videos.
type Analyzer interface {
	Analyze(ctx context.Context, videoPath string) (*domain.AnalysisRecord, error)
	FindSimilar(ctx context.Context, videoID string, limit int) ([]domain.SimilarVideo, error)
}

// Store is the part of the cohort store the service reads and tunes.
type Store interface {
	Stats(ctx context.Context, topN int) (*domain.CohortStats, error)
	KeywordWeights(ctx context.Context) (map[string]map[string]float64, error)
	SetKeywordWeights(ctx context.Context, categoryID string, keywords []domain.Keyword) error
}

// Config holds service limits. Zero values take defaults.
type Config struct {
	PopularTagLimit int
	StatsTopVideos  int
	SimilarLimit    int
}

// Dependencies are the components the service orchestrates. Analyzer and
// Store may be nil when the corresponding features are not configured.
type Dependencies struct {
	Detector   *tags.Detector
	Validator  *validator.Validator
	Classifier *classifier.Classifier
	Batch      *processor.BatchProcessor
	Analyzer   Analyzer
	Store      Store
	Logger     logger.Logger
	Telemetry  *telemetry.Provider
}

// Service wires the campaign components together.
type Service struct {
	detector   *tags.Detector
	validator  *validator.Validator
	classifier *classifier.Classifier
	batch      *processor.BatchProcessor
	analyzer   Analyzer
	store      Store
	cfg        Config
	logger     logger.Logger
	telemetry  *telemetry.Provider
}

// NewService builds a Service. Detector, Validator and Classifier are required.
func NewService(deps Dependencies, cfg Config) (*Service, error) {
	if deps.Detector == nil || deps.Validator == nil || deps.Classifier == nil {
		return nil, fmt.Errorf("campaign: detector, validator and classifier are required")
	}
	if cfg.PopularTagLimit <= 0 {
		cfg.PopularTagLimit = defaultPopularTagLimit
	}
	if cfg.StatsTopVideos <= 0 {
		cfg.StatsTopVideos = defaultStatsTopVideos
	}
	if cfg.SimilarLimit <= 0 {
		cfg.SimilarLimit = defaultSimilarLimit
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	batch := deps.Batch
	if batch == nil {
		batch = processor.NewBatchProcessor(deps.Classifier, 0, log)
	}
	return &Service{
		detector:   deps.Detector,
		validator:  deps.Validator,
		classifier: deps.Classifier,
		batch:      batch,
		analyzer:   deps.Analyzer,
		store:      deps.Store,
		cfg:        cfg,
		logger:     log,
		telemetry:  deps.Telemetry,
	}, nil
}

// DetectTags inspects a post for campaign hashtags and counts them.
func (s *Service) DetectTags(ctx context.Context, post *domain.PostMetadata) *domain.TagResult {
	ctx, span := s.telemetry.StartSpan(ctx, "campaign.detect_tags")
	defer span.End()

	result := s.detector.DetectTags(ctx, post)
	s.telemetry.RecordTagDetection(result.IsCampaignTagged)
	span.SetAttributes(attribute.Bool("campaign_tagged", result.IsCampaignTagged))
	return result
}

// PopularTags returns the most seen campaign tags. limit <= 0 uses the configured limit.
func (s *Service) PopularTags(ctx context.Context, limit int) []domain.TagCount {
	if limit <= 0 {
		limit = s.cfg.PopularTagLimit
	}
	return s.detector.PopularTags(ctx, limit)
}

// ResetPopularTags clears the tag counter.
func (s *Service) ResetPopularTags(ctx context.Context) error {
	return s.detector.ResetPopularTags(ctx)
}

// ExtractMetadata returns the metadata view of a post.
func (s *Service) ExtractMetadata(post *domain.PostMetadata) *domain.PostExtract {
	return tags.ExtractMetadata(post)
}

// ValidateVideo judges an analysis record against the campaign criteria.
func (s *Service) ValidateVideo(
	ctx context.Context, record *domain.AnalysisRecord, tagResult *domain.TagResult,
) *domain.ValidationResult {
	_, span := s.telemetry.StartSpan(ctx, "campaign.validate")
	defer span.End()

	result := s.validator.Validate(record, tagResult)
	outcome := outcomeInvalid
	switch {
	case result.Error != "":
		outcome = outcomeError
	case result.IsValid:
		outcome = outcomeValid
	}
	s.telemetry.RecordValidation(outcome)
	span.SetAttributes(
		attribute.Bool("valid", result.IsValid),
		attribute.Float64("confidence", result.OverallConfidence),
	)
	return result
}

// ClassifyVideo assigns a record to a Milk Mob and records the membership.
func (s *Service) ClassifyVideo(
	ctx context.Context, record *domain.AnalysisRecord, opts classifier.Options,
) *domain.ClassificationResult {
	ctx, span := s.telemetry.StartSpan(ctx, "campaign.classify")
	defer span.End()

	result := s.classifier.Classify(ctx, record, opts)
	span.SetAttributes(attribute.String("category", result.CategoryID))
	if result.Error != "" {
		span.SetStatus(codes.Error, result.Error)
	}
	return result
}

// ClassifyBatch classifies many records in parallel.
func (s *Service) ClassifyBatch(ctx context.Context, items []processor.Item) []*processor.ProcessResult {
	ctx, span := s.telemetry.StartSpan(ctx, "campaign.classify_batch", attribute.Int("batch_size", len(items)))
	defer span.End()

	return s.batch.Process(ctx, items)
}

// GetAllCategories lists the Milk Mobs.
func (s *Service) GetAllCategories() []domain.CategorySummary {
	return s.classifier.Categories()
}

// GetCohortStats summarizes the cohort store. A store fault yields an empty,
// degraded result.
func (s *Service) GetCohortStats(ctx context.Context) *domain.CohortStats {
	ctx, span := s.telemetry.StartSpan(ctx, "campaign.stats")
	defer span.End()

	if s.store == nil {
		return emptyStats()
	}
	stats, err := s.store.Stats(ctx, s.cfg.StatsTopVideos)
	if err != nil {
		s.logger.Error("Failed to load cohort stats", logger.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return emptyStats()
	}
	return stats
}

func emptyStats() *domain.CohortStats {
	return &domain.CohortStats{
		CategoryCounts:       []domain.CategoryCount{},
		LocationDistribution: []domain.LocationCount{},
		TopVideos:            []domain.Membership{},
		Degraded:             true,
	}
}

// SetKeywordWeight stores a normalized keyword weight and applies the stored weights
// to the live classifier.
func (s *Service) SetKeywordWeight(ctx context.Context, categoryID, keyword string, weight float64) error {
	return s.SetKeywordWeights(ctx, categoryID, []domain.Keyword{{Term: keyword, Weight: weight}})
}

// SetKeywordWeights validates every keyword, then stores them together and
// reloads the classifier. Nothing is stored when any keyword is invalid.
func (s *Service) SetKeywordWeights(ctx context.Context, categoryID string, keywords []domain.Keyword) error {
	if s.store == nil {
		return ErrStoreUnavailable
	}
	if !s.classifier.HasCategory(categoryID) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}
	normalized := make([]domain.Keyword, 0, len(keywords))
	for _, kw := range keywords {
		term := strings.TrimSpace(features.Normalize(kw.Term))
		if term == "" || kw.Weight < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidKeyword, kw.Term)
		}
		normalized = append(normalized, domain.Keyword{Term: term, Weight: kw.Weight})
	}
	if len(normalized) == 0 {
		return ErrInvalidKeyword
	}
	if err := s.store.SetKeywordWeights(ctx, categoryID, normalized); err != nil {
		return fmt.Errorf("set keyword weights: %w", err)
	}
	return s.ReloadWeights(ctx)
}

// ReloadWeights applies the store's keyword weights to the classifier.
func (s *Service) ReloadWeights(ctx context.Context) error {
	if s.store == nil {
		return ErrStoreUnavailable
	}
	weights, err := s.store.KeywordWeights(ctx)
	if err != nil {
		return fmt.Errorf("load keyword weights: %w", err)
	}
	s.classifier.ApplyWeights(weights)
	return nil
}

// SubmissionResult is the outcome of ProcessSubmission.
type SubmissionResult struct {
	Status         string                       `json:"status"`
	VideoPath      string                       `json:"video_path"`
	VideoID        string                       `json:"video_id,omitempty"`
	Metadata       *domain.PostExtract          `json:"metadata,omitempty"`
	TagResults     *domain.TagResult            `json:"tag_results,omitempty"`
	Validation     *domain.ValidationResult     `json:"validation,omitempty"`
	MobAssignment  *domain.ClassificationResult `json:"mob_assignment,omitempty"`
	SimilarVideos  []domain.SimilarVideo        `json:"similar_videos"`
	Location       *domain.Location             `json:"location,omitempty"`
	ProcessingTime float64                      `json:"processing_time_seconds"`
	Error          string                       `json:"error,omitempty"`
}

// ProcessSubmission runs the full pipeline for one uploaded video. Only
// valid videos are classified. Analysis faults end the run with StatusError.
func (s *Service) ProcessSubmission(
	ctx context.Context, videoPath string, post *domain.PostMetadata,
) *SubmissionResult {
	start := time.Now()
	ctx, span := s.telemetry.StartSpan(ctx, "campaign.process_submission")
	defer span.End()

	if post == nil {
		post = &domain.PostMetadata{}
	}
	result := &SubmissionResult{
		VideoPath:     videoPath,
		Metadata:      tags.ExtractMetadata(post),
		SimilarVideos: []domain.SimilarVideo{},
	}
	if !post.Location.IsZero() {
		result.Location = post.Location
	}
	finish := func(status string) *SubmissionResult {
		result.Status = status
		result.ProcessingTime = time.Since(start).Seconds()
		s.telemetry.RecordSubmission(status, time.Since(start))
		span.SetAttributes(attribute.String("status", status))
		return result
	}

	log := s.logger.With(logger.String("video_path", videoPath))
	log.Info("Starting video processing pipeline")

	result.TagResults = s.DetectTags(ctx, post)

	if s.analyzer == nil {
		result.Error = ErrAnalyzerUnavailable.Error()
		return finish(StatusError)
	}
	record, err := s.analyzer.Analyze(ctx, videoPath)
	if err != nil {
		log.Error("Video analysis failed", logger.Error(err))
		span.SetStatus(codes.Error, err.Error())
		result.Error = fmt.Sprintf("video analysis failed: %v", err)
		return finish(StatusError)
	}
	result.VideoID = record.VideoID

	result.Validation = s.ValidateVideo(ctx, record, result.TagResults)
	if !result.Validation.IsValid {
		log.Info("Video did not meet campaign criteria", logger.String("video_id", record.VideoID))
		return finish(StatusSuccess)
	}

	result.MobAssignment = s.ClassifyVideo(ctx, record, classifier.Options{Location: result.Location})

	similar, err := s.analyzer.FindSimilar(ctx, record.VideoID, s.cfg.SimilarLimit)
	if err != nil {
		log.Warn("Similar video lookup failed", logger.String("video_id", record.VideoID), logger.Error(err))
	} else if len(similar) > 0 {
		result.SimilarVideos = similar
	}

	log.Info("Video processed",
		logger.String("video_id", record.VideoID),
		logger.String("mob", result.MobAssignment.CategoryID),
	)
	return finish(StatusSuccess)
}
