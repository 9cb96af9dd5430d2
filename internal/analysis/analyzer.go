package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
)

const (
	milkQuery     = "milk, a glass of milk, a milk carton or a milk bottle"
	drinkingQuery = "a person drinking milk"
	audioQuery    = "milk"

	objectsPrompt = "List the physical objects visible in this video as a comma-separated list. " +
		"Reply with the list only."
	actionsPrompt = "List the actions people perform in this video as a comma-separated list of short verbs " +
		"or verb phrases. Reply with the list only."
	describePrompt = "Describe what happens in this video in two or three sentences."
	semanticPrompt = "Is anyone drinking milk in this video? Explain what they are drinking from and how."
	creativePrompt = "Is the way milk appears or is consumed in this video creative, unusual or artistic? " +
		"Answer and explain briefly."

	highConfidence   = 0.9
	mediumConfidence = 0.6
	lowConfidence    = 0.3
	maxClipScore     = 100.0
)

var defaultModelOptions = []string{SearchVisual, SearchConversation}

// AnalyzerConfig configures Analyzer.
type AnalyzerConfig struct {
	IndexName    string
	Models       []string
	PollInterval time.Duration
	IndexTimeout time.Duration
	Heuristic    *TextHeuristic
}

// Analyzer produces AnalysisRecords from video files through Client.
type Analyzer struct {
	client    *Client
	cfg       AnalyzerConfig
	heuristic TextHeuristic
	logger    logger.Logger

	mu      sync.Mutex
	indexID string
}

// NewAnalyzer builds an Analyzer.
func NewAnalyzer(client *Client, cfg AnalyzerConfig, log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.NewNop()
	}
	h := DefaultTextHeuristic()
	if cfg.Heuristic != nil {
		h = *cfg.Heuristic
	}
	return &Analyzer{client: client, cfg: cfg, heuristic: h, logger: log}
}

// Analyze indexes the video and gathers evidence. Indexing faults are
// returned; a failing evidence sub-step leaves its field empty.
func (a *Analyzer) Analyze(ctx context.Context, videoPath string) (*domain.AnalysisRecord, error) {
	indexID, err := a.ensureIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	indexCtx := ctx
	if a.cfg.IndexTimeout > 0 {
		var cancel context.CancelFunc
		indexCtx, cancel = context.WithTimeout(ctx, a.cfg.IndexTimeout)
		defer cancel()
	}
	videoID, err := a.client.IndexVideo(indexCtx, videoPath, indexID, a.cfg.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("index video: %w", err)
	}

	log := a.logger.With(logger.String("video_id", videoID))
	record := &domain.AnalysisRecord{VideoID: videoID}

	record.VisualConfidence.HasMilk = a.searchConfidence(ctx, log, indexID, videoID, milkQuery, SearchVisual)
	record.VisualConfidence.IsDrinking = a.searchConfidence(ctx, log, indexID, videoID, drinkingQuery, SearchVisual)

	if clips, searchErr := a.client.Search(ctx, indexID, videoID, audioQuery, SearchConversation); searchErr != nil {
		log.Warn("Audio search failed", logger.Error(searchErr))
	} else {
		record.AudioConfidence = maxConfidence(clips)
		record.AudioMentions = clipTexts(clips)
	}

	record.Objects = splitList(a.generate(ctx, log, videoID, "objects", objectsPrompt))
	record.Actions = splitList(a.generate(ctx, log, videoID, "actions", actionsPrompt))
	record.Description = a.generate(ctx, log, videoID, "description", describePrompt)
	record.SemanticAnalysis = a.generate(ctx, log, videoID, "semantic", semanticPrompt)
	record.VisualConfidence.IsCreative = a.heuristic.Score(a.generate(ctx, log, videoID, "creativity", creativePrompt))

	if summary, sumErr := a.client.Summary(ctx, videoID); sumErr != nil {
		log.Warn("Summary failed", logger.Error(sumErr))
	} else {
		record.Summary = summary
	}
	if highlights, hlErr := a.client.Highlights(ctx, videoID); hlErr != nil {
		log.Warn("Highlights failed", logger.Error(hlErr))
	} else {
		record.Highlights = highlights
	}

	log.Info("Video analysed",
		logger.Float64("has_milk", record.VisualConfidence.HasMilk),
		logger.Float64("is_drinking", record.VisualConfidence.IsDrinking),
		logger.Float64("is_creative", record.VisualConfidence.IsCreative),
		logger.Float64("audio_confidence", record.AudioConfidence),
	)
	return record, nil
}

// FindSimilar lists videos similar to videoID in the campaign index.
func (a *Analyzer) FindSimilar(ctx context.Context, videoID string, limit int) ([]domain.SimilarVideo, error) {
	indexID, err := a.ensureIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	similar, err := a.client.Similar(ctx, indexID, videoID, limit)
	if err != nil {
		return nil, err
	}
	out := similar[:0]
	for _, s := range similar {
		if s.VideoID != videoID {
			out = append(out, s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *Analyzer) ensureIndex(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.indexID != "" {
		return a.indexID, nil
	}
	if a.cfg.IndexName == "" {
		return "", errors.New("index name is not configured")
	}

	models := make([]Model, 0, len(a.cfg.Models))
	for _, name := range a.cfg.Models {
		models = append(models, Model{Name: name, Options: defaultModelOptions})
	}
	id, err := a.client.EnsureIndex(ctx, a.cfg.IndexName, models)
	if err != nil {
		return "", err
	}
	a.indexID = id
	return id, nil
}

func (a *Analyzer) searchConfidence(
	ctx context.Context, log logger.Logger, indexID, videoID, query, option string,
) float64 {
	clips, err := a.client.Search(ctx, indexID, videoID, query, option)
	if err != nil {
		log.Warn("Visual search failed", logger.String("query", query), logger.Error(err))
		return 0
	}
	return maxConfidence(clips)
}

func (a *Analyzer) generate(ctx context.Context, log logger.Logger, videoID, step, prompt string) string {
	text, err := a.client.GenerateText(ctx, videoID, prompt)
	if err != nil {
		log.Warn("Text generation failed", logger.String("step", step), logger.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

// maxConfidence is the strongest clip's confidence, from its numeric score
// or its confidence label, whichever is higher.
func maxConfidence(clips []Clip) float64 {
	best := 0.0
	for _, c := range clips {
		v := clamp01(c.Score / maxClipScore)
		if label := labelConfidence(c.Confidence); label > v {
			v = label
		}
		if v > best {
			best = v
		}
	}
	return best
}

func labelConfidence(label string) float64 {
	switch strings.ToLower(label) {
	case "high":
		return highConfidence
	case "medium":
		return mediumConfidence
	case "low":
		return lowConfidence
	default:
		return 0
	}
}

func clipTexts(clips []Clip) []string {
	var out []string
	for _, c := range clips {
		if t := strings.TrimSpace(c.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// splitList parses a comma or newline separated answer, dropping list
// markers and empty items.
func splitList(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		item := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(p), "-*•0123456789. "))
		item = strings.TrimRight(item, ".")
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
