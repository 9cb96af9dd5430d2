// Package tags detects campaign hashtags in post metadata and tracks their popularity.
package tags

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/features"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
)

// tagsForFullConfidence is the number of campaign tag occurrences that yields confidence 1.
const tagsForFullConfidence = 2

var (
	hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	mentionPattern = regexp.MustCompile(`@[\p{L}\p{N}_]+`)
)

// Detector finds campaign hashtags and feeds the popularity counter.
type Detector struct {
	campaignTags []string
	matcher      *features.Matcher
	counter      Counter
	logger       logger.Logger
}

// NewDetector returns a Detector for campaignTags. counter may be nil, in
// which case a MemoryCounter is used.
func NewDetector(campaignTags []string, counter Counter, log logger.Logger) *Detector {
	normalized := make([]string, 0, len(campaignTags))
	for _, t := range campaignTags {
		if n := normalizeTag(t); n != "" {
			normalized = append(normalized, n)
		}
	}
	if counter == nil {
		counter = NewMemoryCounter()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Detector{
		campaignTags: normalized,
		matcher:      features.NewMatcher(normalized),
		counter:      counter,
		logger:       log,
	}
}

// CampaignTags returns the normalized campaign tags.
func (d *Detector) CampaignTags() []string {
	return append([]string(nil), d.campaignTags...)
}

// DetectTags inspects the explicit hashtag list and the caption. It never
// fails: counter faults are logged and detection still returns its result.
func (d *Detector) DetectTags(ctx context.Context, post *domain.PostMetadata) *domain.TagResult {
	result := &domain.TagResult{CampaignTagsFound: []string{}, AllTagsFound: []string{}}
	if post == nil {
		return result
	}

	candidates := make([]string, 0, len(post.Hashtags))
	candidates = append(candidates, post.Hashtags...)
	candidates = append(candidates, hashtagPattern.FindAllString(post.Caption, -1)...)

	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		tag := normalizeTag(c)
		if tag == "" {
			continue
		}
		// Repeats count toward confidence and popularity; AllTagsFound is a set.
		if d.matcher.ContainsAny([]string{tag}) {
			result.CampaignTagsFound = append(result.CampaignTagsFound, tag)
		}
		if _, dup := seen[tag]; !dup {
			seen[tag] = struct{}{}
			result.AllTagsFound = append(result.AllTagsFound, tag)
		}
	}

	n := len(result.CampaignTagsFound)
	result.IsCampaignTagged = n > 0
	result.ConfidenceScore = math.Min(1, float64(n)/tagsForFullConfidence)

	if n > 0 {
		if err := d.counter.Increment(ctx, result.CampaignTagsFound...); err != nil {
			d.logger.Warn("Failed to update popular tag counts",
				logger.Error(err),
				logger.Strings("tags", result.CampaignTagsFound),
			)
		}
	}
	return result
}

// PopularTags returns up to limit campaign tags by frequency. Counter faults
// yield an empty list.
func (d *Detector) PopularTags(ctx context.Context, limit int) []domain.TagCount {
	top, err := d.counter.Top(ctx, limit)
	if err != nil {
		d.logger.Warn("Failed to read popular tags", logger.Error(err))
		return []domain.TagCount{}
	}
	return top
}

// ResetPopularTags clears the counter.
func (d *Detector) ResetPopularTags(ctx context.Context) error {
	return d.counter.Reset(ctx)
}

// ExtractMetadata returns the location, caption, mentions and client fields of a post.
func ExtractMetadata(post *domain.PostMetadata) *domain.PostExtract {
	if post == nil {
		return &domain.PostExtract{Mentions: []string{}}
	}
	mentions := mentionPattern.FindAllString(post.Caption, -1)
	if mentions == nil {
		mentions = []string{}
	}
	return &domain.PostExtract{
		Location:   post.Location,
		Caption:    post.Caption,
		Mentions:   mentions,
		UserID:     post.UserID,
		PostTime:   post.PostTime,
		Device:     post.Device,
		AppVersion: post.AppVersion,
	}
}

func normalizeTag(tag string) string {
	t := strings.TrimSpace(features.Normalize(tag))
	t = strings.TrimLeft(t, "#")
	if t == "" {
		return ""
	}
	return "#" + t
}
