// Package classifier assigns analysed videos to Milk Mobs and records the membership.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/features"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
	"github.com/jonesrussell/north-cloud/milkmob/internal/telemetry"
)

// ErrNoCategories is returned when the category table is empty.
var ErrNoCategories = errors.New("no categories configured")

var errMissingVideoID = errors.New("analysis record has no video id")

const (
	maxTitleRunes        = 80
	defaultFallbackScore = 0.5
)

// CohortStore is the persistence the classifier needs.
type CohortStore interface {
	NearbyCategories(ctx context.Context, placeName string, limit int) ([]domain.NearbyCategory, error)
	RecordMembership(ctx context.Context, m *domain.Membership) error
}

// Config tunes classification. FallbackScore is used as given, so start from
// DefaultConfig; other zero fields take the defaults.
type Config struct {
	FallbackCategoryID string
	FallbackScore      float64
	NearbyLimit        int
	TopFeatures        int
	SampleKeywords     int
}

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		FallbackCategoryID: DefaultCategoryID,
		FallbackScore:      defaultFallbackScore,
		NearbyLimit:        3,
		TopFeatures:        10,
		SampleKeywords:     5,
	}
}

func (c *Config) setDefaults() {
	if c.FallbackCategoryID == "" {
		c.FallbackCategoryID = DefaultCategoryID
	}
	if c.NearbyLimit == 0 {
		c.NearbyLimit = 3
	}
	if c.TopFeatures == 0 {
		c.TopFeatures = 10
	}
	if c.SampleKeywords == 0 {
		c.SampleKeywords = 5
	}
}

// Options carries the per-call inputs besides the record.
type Options struct {
	Location *domain.Location
	// Title is the display title stored with the membership. Derived from the
	// record when empty.
	Title string
}

type compiledCategory struct {
	category domain.Category
	matcher  *features.KeywordMatcher
}

// Classifier scores records against the category table. Safe for concurrent use.
type Classifier struct {
	mu    sync.RWMutex
	base  []domain.Category
	table []compiledCategory

	store     CohortStore
	cfg       Config
	logger    logger.Logger
	telemetry *telemetry.Provider
}

// New compiles categories. It fails only when the table is empty.
func New(categories []domain.Category, store CohortStore, cfg Config, log logger.Logger, tp *telemetry.Provider) (*Classifier, error) {
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}
	cfg.setDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	c := &Classifier{
		base:      cloneCategories(categories),
		store:     store,
		cfg:       cfg,
		logger:    log,
		telemetry: tp,
	}
	c.table = compile(c.base)

	log.Info("Classifier initialized", logger.Int("categories", len(categories)))
	return c, nil
}

func compile(categories []domain.Category) []compiledCategory {
	table := make([]compiledCategory, len(categories))
	for i, cat := range categories {
		table[i] = compiledCategory{category: cat, matcher: features.NewKeywordMatcher(cat.Keywords)}
	}
	return table
}

// Classify assigns record to its best-matching category, attaches the
// runner-up, feature breakdown and nearby categories, and persists the
// membership. It never fails: faults yield the fallback category with Error set.
func (c *Classifier) Classify(ctx context.Context, record *domain.AnalysisRecord, opts Options) (result *domain.ClassificationResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = c.fallback(fmt.Errorf("classification panic: %v", r))
		}
		c.telemetry.RecordClassification(result.CategoryID, result.Error != "", time.Since(start))
	}()

	res, err := c.classify(ctx, record, opts)
	if err != nil {
		videoID := ""
		if record != nil {
			videoID = record.VideoID
		}
		c.logger.Error("Classification failed, using fallback category",
			logger.String("video_id", videoID),
			logger.Error(err),
		)
		return c.fallback(err)
	}
	return res
}

func (c *Classifier) classify(ctx context.Context, record *domain.AnalysisRecord, opts Options) (*domain.ClassificationResult, error) {
	if record == nil || record.VideoID == "" {
		return nil, errMissingVideoID
	}

	table := c.snapshot()
	extraction := features.Extract(record)

	scores := make(map[string]float64, len(table))
	best, secondary := -1, -1
	bestScore, secondaryScore := -1.0, -1.0
	for i, cc := range table {
		s := cc.matcher.Score(extraction.Features)
		scores[cc.category.ID] = s
		switch {
		case s > bestScore:
			secondary, secondaryScore = best, bestScore
			best, bestScore = i, s
		case s > secondaryScore:
			secondary, secondaryScore = i, s
		}
	}

	chosen := table[best].category
	result := &domain.ClassificationResult{
		CategoryMatch:    match(chosen, bestScore),
		AllScores:        scores,
		FeatureBreakdown: breakdown(extraction, c.cfg.TopFeatures),
	}
	secondaryID := ""
	if secondary >= 0 {
		runnerUp := match(table[secondary].category, secondaryScore)
		result.Secondary = &runnerUp
		secondaryID = runnerUp.CategoryID
	}

	loc := opts.Location
	if !loc.IsZero() && c.store != nil {
		nearby, err := c.store.NearbyCategories(ctx, loc.PlaceName, c.cfg.NearbyLimit)
		if err != nil {
			c.logger.Warn("Nearby category lookup failed",
				logger.String("place_name", loc.PlaceName),
				logger.Error(err),
			)
		} else if len(nearby) > 0 {
			result.NearbyCategories = nearby
		}
	}

	if c.store != nil {
		m := &domain.Membership{
			VideoID:    record.VideoID,
			CategoryID: chosen.ID,
			Title:      displayTitle(opts.Title, record),
			MatchScore: bestScore,
		}
		if !loc.IsZero() {
			m.PlaceName = loc.PlaceName
			m.City = loc.City
		}
		if err := c.store.RecordMembership(ctx, m); err != nil {
			return nil, fmt.Errorf("persist membership: %w", err)
		}
	}

	c.logger.Debug("Video classified",
		logger.String("video_id", record.VideoID),
		logger.String("category", chosen.ID),
		logger.Float64("score", bestScore),
		logger.String("secondary", secondaryID),
	)
	return result, nil
}

func (c *Classifier) fallback(err error) *domain.ClassificationResult {
	res := &domain.ClassificationResult{
		CategoryMatch: domain.CategoryMatch{
			CategoryID: c.cfg.FallbackCategoryID,
			Score:      c.cfg.FallbackScore,
		},
		Error: err.Error(),
	}
	for _, cc := range c.snapshot() {
		if cc.category.ID == res.CategoryID {
			res.CategoryName = cc.category.Name
			res.Description = cc.category.Description
			break
		}
	}
	return res
}

func match(cat domain.Category, score float64) domain.CategoryMatch {
	return domain.CategoryMatch{
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Description:  cat.Description,
		Score:        score,
	}
}

// Categories lists the table with the first few keywords of each category.
func (c *Classifier) Categories() []domain.CategorySummary {
	table := c.snapshot()
	out := make([]domain.CategorySummary, len(table))
	for i, cc := range table {
		terms := cc.category.Terms()
		if len(terms) > c.cfg.SampleKeywords {
			terms = terms[:c.cfg.SampleKeywords]
		}
		out[i] = domain.CategorySummary{
			ID:             cc.category.ID,
			Name:           cc.category.Name,
			Description:    cc.category.Description,
			SampleKeywords: terms,
		}
	}
	return out
}

// HasCategory reports whether id is in the current table.
func (c *Classifier) HasCategory(id string) bool {
	for _, cc := range c.snapshot() {
		if cc.category.ID == id {
			return true
		}
	}
	return false
}

// UpdateCategories replaces the base table and recompiles it.
func (c *Classifier) UpdateCategories(categories []domain.Category) error {
	if len(categories) == 0 {
		return ErrNoCategories
	}
	base := cloneCategories(categories)
	table := compile(base)

	c.mu.Lock()
	c.base = base
	c.table = table
	c.mu.Unlock()
	return nil
}

// ApplyWeights rebuilds the table from the base categories with stored
// keyword weights. Stored keywords absent from a category are appended in
// alphabetical order; categories absent from weights keep their base keywords.
func (c *Classifier) ApplyWeights(weights map[string]map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := cloneCategories(c.base)

	for i := range base {
		stored := weights[base[i].ID]
		if len(stored) == 0 {
			continue
		}
		known := make(map[string]struct{}, len(base[i].Keywords))
		for j, kw := range base[i].Keywords {
			known[kw.Term] = struct{}{}
			if w, ok := stored[kw.Term]; ok {
				base[i].Keywords[j].Weight = w
			}
		}
		extra := make([]string, 0)
		for term := range stored {
			if _, ok := known[term]; !ok {
				extra = append(extra, term)
			}
		}
		sort.Strings(extra)
		for _, term := range extra {
			base[i].Keywords = append(base[i].Keywords, domain.Keyword{Term: term, Weight: stored[term]})
		}
	}

	c.table = compile(base)
}

func (c *Classifier) snapshot() []compiledCategory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table
}

func breakdown(ex features.Extraction, topN int) *domain.FeatureBreakdown {
	counts := make(map[string]int, len(ex.Features))
	for _, t := range ex.Tokens {
		counts[t]++
	}
	top := make([]domain.FeatureCount, len(ex.Features))
	for i, f := range ex.Features {
		top[i] = domain.FeatureCount{Feature: f, Count: counts[f]}
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	if len(top) > topN {
		top = top[:topN]
	}
	return &domain.FeatureBreakdown{
		TopFeatures:   top,
		TotalFeatures: len(ex.Tokens),
		UniqueCount:   len(ex.Features),
	}
}

func displayTitle(title string, record *domain.AnalysisRecord) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	for _, s := range []string{record.Summary, record.Description} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if utf8.RuneCountInString(s) > maxTitleRunes {
			s = string([]rune(s)[:maxTitleRunes])
		}
		return s
	}
	return record.VideoID
}

func cloneCategories(categories []domain.Category) []domain.Category {
	out := make([]domain.Category, len(categories))
	for i, cat := range categories {
		out[i] = cat
		out[i].Keywords = append([]domain.Keyword(nil), cat.Keywords...)
	}
	return out
}
