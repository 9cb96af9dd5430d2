// Package testhelpers provides shared fakes for milkmob tests.
package testhelpers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

// ErrUnknownCategory mirrors the store's unknown category failure.
var ErrUnknownCategory = errors.New("unknown category")

// MockCohortStore is an in-memory cohort store. Set the Err fields to inject faults.
type MockCohortStore struct {
	mu          sync.Mutex
	categories  []domain.Category
	counts      map[string]int
	memberships map[string]*domain.Membership
	order       []string
	weights     map[string]map[string]float64

	NearbyErr  error
	RecordErr  error
	StatsErr   error
	WeightsErr error
}

// NewMockCohortStore returns a store seeded with categories.
func NewMockCohortStore(categories []domain.Category) *MockCohortStore {
	s := &MockCohortStore{
		counts:      make(map[string]int),
		memberships: make(map[string]*domain.Membership),
		weights:     make(map[string]map[string]float64),
	}
	s.categories = append(s.categories, categories...)
	for _, c := range categories {
		s.counts[c.ID] = 0
	}
	return s
}

// RecordMembership stores m, moving an existing video between categories.
func (s *MockCohortStore) RecordMembership(_ context.Context, m *domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RecordErr != nil {
		return s.RecordErr
	}
	if _, ok := s.counts[m.CategoryID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, m.CategoryID)
	}
	if prev, ok := s.memberships[m.VideoID]; ok {
		s.counts[prev.CategoryID]--
	} else {
		s.order = append(s.order, m.VideoID)
	}
	s.counts[m.CategoryID]++
	cp := *m
	s.memberships[m.VideoID] = &cp
	return nil
}

// NearbyCategories groups stored memberships at placeName by category.
func (s *MockCohortStore) NearbyCategories(_ context.Context, placeName string, limit int) ([]domain.NearbyCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NearbyErr != nil {
		return nil, s.NearbyErr
	}

	counts := make(map[string]int)
	for _, m := range s.memberships {
		if m.PlaceName == placeName {
			counts[m.CategoryID]++
		}
	}
	var out []domain.NearbyCategory
	for _, c := range s.categories {
		if n := counts[c.ID]; n > 0 {
			out = append(out, domain.NearbyCategory{CategoryID: c.ID, Name: c.Name, MemberCount: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MemberCount > out[j].MemberCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats aggregates the stored memberships.
func (s *MockCohortStore) Stats(_ context.Context, topN int) (*domain.CohortStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StatsErr != nil {
		return nil, s.StatsErr
	}

	stats := &domain.CohortStats{
		CategoryCounts:       []domain.CategoryCount{},
		LocationDistribution: []domain.LocationCount{},
		TopVideos:            []domain.Membership{},
	}
	for _, c := range s.categories {
		n := s.counts[c.ID]
		stats.CategoryCounts = append(stats.CategoryCounts, domain.CategoryCount{CategoryID: c.ID, Name: c.Name, MemberCount: n})
		if n > 0 {
			stats.Totals.ActiveCategories++
		}
	}
	stats.Totals.Categories = len(s.categories)
	stats.Totals.Videos = len(s.memberships)

	places := make(map[string]int)
	for _, id := range s.order {
		m := s.memberships[id]
		stats.TopVideos = append(stats.TopVideos, *m)
		if m.PlaceName != "" {
			if _, ok := places[m.PlaceName]; !ok {
				stats.LocationDistribution = append(stats.LocationDistribution, domain.LocationCount{PlaceName: m.PlaceName})
			}
			places[m.PlaceName]++
		}
	}
	for i := range stats.LocationDistribution {
		stats.LocationDistribution[i].VideoCount = places[stats.LocationDistribution[i].PlaceName]
	}
	sort.SliceStable(stats.TopVideos, func(i, j int) bool { return stats.TopVideos[i].MatchScore > stats.TopVideos[j].MatchScore })
	if len(stats.TopVideos) > topN {
		stats.TopVideos = stats.TopVideos[:topN]
	}
	return stats, nil
}

// KeywordWeights returns the weights set so far.
func (s *MockCohortStore) KeywordWeights(context.Context) (map[string]map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]float64, len(s.weights))
	for cat, kws := range s.weights {
		out[cat] = make(map[string]float64, len(kws))
		for k, w := range kws {
			out[cat][k] = w
		}
	}
	return out, nil
}

// SetKeywordWeight stores a weight.
func (s *MockCohortStore) SetKeywordWeight(ctx context.Context, categoryID, keyword string, weight float64) error {
	return s.SetKeywordWeights(ctx, categoryID, []domain.Keyword{{Term: keyword, Weight: weight}})
}

// SetKeywordWeights stores all weights or, when WeightsErr is set, none.
func (s *MockCohortStore) SetKeywordWeights(_ context.Context, categoryID string, keywords []domain.Keyword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counts[categoryID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}
	if s.WeightsErr != nil {
		return s.WeightsErr
	}
	if s.weights[categoryID] == nil {
		s.weights[categoryID] = make(map[string]float64)
	}
	for _, kw := range keywords {
		s.weights[categoryID][kw.Term] = kw.Weight
	}
	return nil
}

// MemberCount returns the current count for a category.
func (s *MockCohortStore) MemberCount(categoryID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[categoryID]
}

// Membership returns the stored membership for a video, if any.
func (s *MockCohortStore) Membership(videoID string) (domain.Membership, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[videoID]
	if !ok {
		return domain.Membership{}, false
	}
	return *m, true
}
