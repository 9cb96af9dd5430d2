package testhelpers

import (
	"context"
	"sync"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

// MockAnalyzer returns canned analysis results.
type MockAnalyzer struct {
	mu sync.Mutex

	Record     *domain.AnalysisRecord
	AnalyzeErr error
	Similar    []domain.SimilarVideo
	SimilarErr error

	AnalyzedPaths []string
}

// Analyze returns Record or AnalyzeErr.
func (a *MockAnalyzer) Analyze(_ context.Context, videoPath string) (*domain.AnalysisRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.AnalyzedPaths = append(a.AnalyzedPaths, videoPath)
	if a.AnalyzeErr != nil {
		return nil, a.AnalyzeErr
	}
	cp := *a.Record
	return &cp, nil
}

// FindSimilar returns Similar or SimilarErr.
func (a *MockAnalyzer) FindSimilar(_ context.Context, _ string, limit int) ([]domain.SimilarVideo, error) {
	if a.SimilarErr != nil {
		return nil, a.SimilarErr
	}
	out := a.Similar
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
