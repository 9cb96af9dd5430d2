// Package domain holds the data types exchanged between milkmob components.
package domain

// Highlight is a notable moment inside a video.
type Highlight struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// VisualConfidence carries the external service's visual evidence scores, each in [0,1].
type VisualConfidence struct {
	HasMilk    float64 `json:"has_milk"`
	IsDrinking float64 `json:"is_drinking"`
	IsCreative float64 `json:"is_creative"`
}

// AnalysisRecord is the normalized output of the video-understanding service.
// Absent fields are zero values; consumers treat them as no evidence.
type AnalysisRecord struct {
	VideoID          string           `json:"video_id"`
	Objects          []string         `json:"objects,omitempty"`
	Actions          []string         `json:"actions,omitempty"`
	AudioMentions    []string         `json:"audio_mentions,omitempty"`
	Description      string           `json:"description,omitempty"`
	SemanticAnalysis string           `json:"semantic_analysis,omitempty"`
	Summary          string           `json:"summary,omitempty"`
	Highlights       []Highlight      `json:"highlights,omitempty"`
	VisualConfidence VisualConfidence `json:"visual_confidence"`
	AudioConfidence  float64          `json:"audio_confidence"`
	Embedding        []float64        `json:"embedding,omitempty"`
}

// SceneTexts returns the summary and highlight texts used for creativity evidence.
func (r *AnalysisRecord) SceneTexts() []string {
	texts := make([]string, 0, len(r.Highlights)+1)
	if r.Summary != "" {
		texts = append(texts, r.Summary)
	}
	for _, h := range r.Highlights {
		if h.Text != "" {
			texts = append(texts, h.Text)
		}
	}
	return texts
}

// SimilarVideo is a related video returned by the external service.
type SimilarVideo struct {
	VideoID string  `json:"video_id"`
	Score   float64 `json:"score"`
}
