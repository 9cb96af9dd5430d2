package analysis_test

import (
	"math"
	"testing"

	"github.com/jonesrussell/north-cloud/milkmob/internal/analysis"
)

func TestTextConfidence(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{name: "empty", text: "   ", want: 0},
		{name: "neutral", text: "A person holds a glass of milk.", want: 0.6},
		{name: "certain", text: "They are clearly drinking milk.", want: 0.9},
		{name: "hedged", text: "It seems they drink milk.", want: 0.5},
		{name: "negated", text: "There is no milk here.", want: 0.3},
		{name: "hedged negation", text: "Maybe they don't drink.", want: 0.2},
		{name: "certainty capped once", text: "Definitely, clearly, absolutely 100% milk.", want: 0.9},
		{name: "curly apostrophe", text: "It doesn’t contain milk", want: 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analysis.TextConfidence(tt.text)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TextConfidence(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTextHeuristic_Clamps(t *testing.T) {
	h := analysis.DefaultTextHeuristic()
	h.Baseline = 0.95

	if got := h.Score("definitely milk"); got != 1 {
		t.Errorf("expected clamp to 1, got %v", got)
	}

	h.Baseline = 0.1
	if got := h.Score("no milk, not ever"); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
}
