package api

import (
	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/processor"
)

// ValidateRequest asks for a verdict on an analysis record. Tags come from
// TagResult when given, otherwise they are detected from Post.
type ValidateRequest struct {
	Analysis  *domain.AnalysisRecord `binding:"required" json:"analysis"`
	TagResult *domain.TagResult      `json:"tag_result,omitempty"`
	Post      *domain.PostMetadata   `json:"post,omitempty"`
}

// ClassifyRequest asks for a Milk Mob assignment.
type ClassifyRequest struct {
	Analysis *domain.AnalysisRecord `binding:"required" json:"analysis"`
	Location *domain.Location       `json:"location,omitempty"`
	Title    string                 `json:"title,omitempty"`
}

// ClassifyResponse wraps a classification result.
type ClassifyResponse struct {
	Result *domain.ClassificationResult `json:"result"`
}

// BatchClassifyRequest carries up to 100 records.
type BatchClassifyRequest struct {
	Items []processor.Item `binding:"required,min=1,max=100" json:"items"`
}

// BatchClassifyResponse reports per-item results and totals.
type BatchClassifyResponse struct {
	Results []*processor.ProcessResult `json:"results"`
	Total   int                        `json:"total"`
	Success int                        `json:"success"`
	Failed  int                        `json:"failed"`
}

// CategoriesResponse lists the Milk Mobs.
type CategoriesResponse struct {
	Categories []domain.CategorySummary `json:"categories"`
	Total      int                      `json:"total"`
}

// PopularTagsResponse lists the most used campaign tags.
type PopularTagsResponse struct {
	Tags []domain.TagCount `json:"tags"`
}

// UpdateKeywordsRequest sets learned weights on a category's keywords.
type UpdateKeywordsRequest struct {
	Keywords []domain.Keyword `binding:"required,min=1" json:"keywords"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
