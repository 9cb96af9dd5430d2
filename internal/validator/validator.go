// Package validator decides whether a video meets the campaign admission criteria.
package validator

import (
	"fmt"
	"math"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/features"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
)

const confidencePair = 2

// Default evidence vocabularies.
var (
	DefaultMilkTerms       = []string{"milk", "bottle", "carton", "glass", "cup", "dairy"}
	DefaultDrinkingTerms   = []string{"drink", "sip", "gulp", "swallow", "consume"}
	DefaultCreativityTerms = []string{
		"creative", "unique", "interesting", "unusual", "artistic",
		"dance", "jump", "flip", "trick", "stunt",
	}
)

// Config holds admission thresholds and evidence vocabularies. Thresholds
// are used as given, so start from DefaultConfig; empty term lists take the
// package defaults.
type Config struct {
	MilkThreshold       float64
	DrinkingThreshold   float64
	CreativityThreshold float64
	AudioThreshold      float64
	TagBoostCap         float64

	MilkTerms       []string
	DrinkingTerms   []string
	CreativityTerms []string
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		MilkThreshold:       0.6,
		DrinkingThreshold:   0.6,
		CreativityThreshold: 0.5,
		AudioThreshold:      0.6,
		TagBoostCap:         0.2,
	}
}

func (c *Config) setDefaults() {
	if len(c.MilkTerms) == 0 {
		c.MilkTerms = DefaultMilkTerms
	}
	if len(c.DrinkingTerms) == 0 {
		c.DrinkingTerms = DefaultDrinkingTerms
	}
	if len(c.CreativityTerms) == 0 {
		c.CreativityTerms = DefaultCreativityTerms
	}
}

// Validator evaluates analysis records. It is safe for concurrent use.
type Validator struct {
	cfg        Config
	milk       *features.Matcher
	drinking   *features.Matcher
	creativity *features.Matcher
	logger     logger.Logger
}

// New builds a Validator.
func New(cfg Config, log logger.Logger) *Validator {
	cfg.setDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Validator{
		cfg:        cfg,
		milk:       features.NewMatcher(cfg.MilkTerms),
		drinking:   features.NewMatcher(cfg.DrinkingTerms),
		creativity: features.NewMatcher(cfg.CreativityTerms),
		logger:     log,
	}
}

// Validate produces the admission verdict for record. tagResult is optional.
// It never panics; an internal fault yields an invalid result carrying ErrorMessage.
func (v *Validator) Validate(record *domain.AnalysisRecord, tagResult *domain.TagResult) (result *domain.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("Validation failed", logger.Any("panic", r))
			result = &domain.ValidationResult{
				IsValid: false,
				Message: ErrorMessage,
				Error:   fmt.Sprint(r),
			}
		}
	}()
	return v.validate(record, tagResult)
}

func (v *Validator) validate(record *domain.AnalysisRecord, tagResult *domain.TagResult) *domain.ValidationResult {
	if record == nil {
		record = &domain.AnalysisRecord{}
	}

	milk := clamp01(record.VisualConfidence.HasMilk)
	drinking := clamp01(record.VisualConfidence.IsDrinking)
	creativity := clamp01(record.VisualConfidence.IsCreative)
	audio := clamp01(record.AudioConfidence)

	tagged := tagResult != nil && tagResult.IsCampaignTagged
	var boost float64
	if tagged {
		boost = math.Min(v.cfg.TagBoostCap, clamp01(tagResult.ConfidenceScore))
		milk = math.Min(1, milk+boost)
	}

	details := domain.ValidationDetails{
		HasMilk:              milk >= v.cfg.MilkThreshold || v.milk.ContainsAny(record.Objects),
		IsDrinking:           drinking >= v.cfg.DrinkingThreshold || v.drinking.ContainsAny(record.Actions),
		HasAudioMention:      audio >= v.cfg.AudioThreshold,
		MilkConfidence:       milk,
		DrinkingConfidence:   drinking,
		CreativityConfidence: creativity,
		AudioConfidence:      audio,
		HasCampaignTags:      tagged,
		TagBoost:             boost,
	}
	details.IsCreative = creativity >= v.cfg.CreativityThreshold ||
		v.creativity.ContainsAny(record.Actions) ||
		v.creativity.ContainsAnyInText(record.SceneTexts())

	isValid := details.HasMilk && details.IsDrinking
	return &domain.ValidationResult{
		IsValid:           isValid,
		OverallConfidence: (milk + drinking) / confidencePair,
		Details:           details,
		Message:           Message(isValid, details.HasMilk, details.IsDrinking, details.IsCreative, tagResult),
	}
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
