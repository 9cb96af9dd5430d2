package domain

import "time"

// DefaultKeywordWeight is the weight of a keyword with no stored override.
const DefaultKeywordWeight = 1.0

// Keyword is a category term with its scoring weight.
type Keyword struct {
	Term   string  `db:"keyword" json:"term"   yaml:"term"`
	Weight float64 `db:"weight"  json:"weight" yaml:"weight"`
}

// Category is a Milk Mob: a themed cohort defined by its keywords.
type Category struct {
	ID          string    `json:"id"          yaml:"id"`
	Name        string    `json:"name"        yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Keywords    []Keyword `json:"keywords"    yaml:"keywords"`
}

// Terms returns the keyword strings in order.
func (c *Category) Terms() []string {
	terms := make([]string, len(c.Keywords))
	for i, kw := range c.Keywords {
		terms[i] = kw.Term
	}
	return terms
}

// CategorySummary is the public listing view of a category.
type CategorySummary struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	SampleKeywords []string `json:"sample_keywords"`
}

// FeatureCount is a token and its occurrence count.
type FeatureCount struct {
	Feature string `json:"feature"`
	Count   int    `json:"count"`
}

// FeatureBreakdown summarizes the features a classification was based on.
type FeatureBreakdown struct {
	TopFeatures   []FeatureCount `json:"top_features"`
	TotalFeatures int            `json:"total_features"`
	UniqueCount   int            `json:"unique_features"`
}

// NearbyCategory is a category that other videos from the same place joined.
type NearbyCategory struct {
	CategoryID  string `db:"category_id"  json:"category_id"`
	Name        string `db:"name"         json:"name"`
	MemberCount int    `db:"member_count" json:"member_count"`
}

// CategoryMatch is one category with its match score.
type CategoryMatch struct {
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Description  string  `json:"description"`
	Score        float64 `json:"score"`
}

// ClassificationResult is the Milk Mob assignment for a video. The embedded
// match is the best category; Secondary is nil with fewer than two categories.
type ClassificationResult struct {
	CategoryMatch

	Secondary        *CategoryMatch     `json:"secondary_category,omitempty"`
	AllScores        map[string]float64 `json:"all_scores,omitempty"`
	FeatureBreakdown *FeatureBreakdown  `json:"feature_breakdown,omitempty"`
	NearbyCategories []NearbyCategory   `json:"nearby_categories,omitempty"`
	Error            string             `json:"error,omitempty"`
}

// Membership is one persisted video-to-category assignment.
type Membership struct {
	VideoID      string    `db:"video_id"      json:"video_id"`
	CategoryID   string    `db:"category_id"   json:"category_id"`
	Title        string    `db:"title"         json:"title"`
	PlaceName    string    `db:"place_name"    json:"place_name,omitempty"`
	City         string    `db:"city"          json:"city,omitempty"`
	MatchScore   float64   `db:"match_score"   json:"match_score"`
	ClassifiedAt time.Time `db:"classified_at" json:"classified_at"`
}

// CategoryCount is a category with its current member count.
type CategoryCount struct {
	CategoryID  string `db:"category_id"  json:"category_id"`
	Name        string `db:"name"         json:"name"`
	MemberCount int    `db:"member_count" json:"member_count"`
}

// LocationCount is the number of videos filmed at a place.
type LocationCount struct {
	PlaceName  string `db:"place_name"  json:"place_name"`
	VideoCount int    `db:"video_count" json:"video_count"`
}

// CohortTotals are aggregate counts across the store.
type CohortTotals struct {
	Videos           int `db:"videos"            json:"videos"`
	Categories       int `db:"categories"        json:"categories"`
	ActiveCategories int `db:"active_categories" json:"active_categories"`
}

// CohortStats is the aggregate view over all memberships.
type CohortStats struct {
	CategoryCounts       []CategoryCount `json:"category_counts"`
	LocationDistribution []LocationCount `json:"location_distribution"`
	TopVideos            []Membership    `json:"top_videos"`
	Totals               CohortTotals    `json:"totals"`
	Degraded             bool            `json:"degraded,omitempty"`
}
