//nolint:testpackage // Testing internal helpers requires same package access
package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

type fakeService struct {
	summarizeStatus int
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /indexes", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"data": []map[string]string{{"_id": "idx-1", "index_name": "milk"}}})
	})
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]string{"_id": "task-1"})
	})
	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]string{"status": "ready", "video_id": "vid-1"})
	})
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode search: %v", err)
		}
		var clips []Clip
		switch {
		case req.QueryText == milkQuery:
			clips = []Clip{{VideoID: "vid-1", Score: 84, Confidence: "medium"}, {VideoID: "vid-1", Score: 40}}
		case req.QueryText == drinkingQuery:
			clips = []Clip{{VideoID: "vid-1", Score: 20, Confidence: "high"}}
		case req.SearchOptions[0] == SearchConversation:
			clips = []Clip{{VideoID: "vid-1", Score: 70, Text: "I love milk "}, {VideoID: "vid-1", Score: 10}}
		}
		writeJSON(t, w, map[string]any{"data": clips})
	})
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode generate: %v", err)
		}
		answers := map[string]string{
			objectsPrompt:  "milk bottle, glass\n- table",
			actionsPrompt:  "drinking, jumping",
			describePrompt: " A kid drinks milk in the gym. ",
			semanticPrompt: "Yes, from a glass.",
			creativePrompt: "Definitely creative, a backflip while drinking.",
		}
		writeJSON(t, w, map[string]string{"data": answers[req.Prompt]})
	})
	mux.HandleFunc("POST /summarize", func(w http.ResponseWriter, r *http.Request) {
		if f.summarizeStatus != 0 {
			w.WriteHeader(f.summarizeStatus)
			return
		}
		var req summarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode summarize: %v", err)
		}
		if req.Type == summaryTypeHighlight {
			writeJSON(t, w, map[string]any{"highlights": []map[string]any{{"highlight": "backflip", "start": 1.5, "end": 3}}})
			return
		}
		writeJSON(t, w, map[string]string{"summary": "Gym milk stunt"})
	})
	mux.HandleFunc("GET /indexes/{index}/videos/{video}/similar", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "idx-1", r.PathValue("index"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		writeJSON(t, w, map[string]any{"data": []map[string]any{
			{"video_id": "vid-1", "score": 1.0},
			{"video_id": "vid-2", "score": 0.8},
		}})
	})
	return mux
}

func newTestAnalyzer(t *testing.T, svc *fakeService) *Analyzer {
	t.Helper()
	srv := httptest.NewServer(svc.handler(t))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL, ClientConfig{})
	return NewAnalyzer(c, AnalyzerConfig{
		IndexName:    "milk",
		Models:       []string{"marengo2.5"},
		PollInterval: time.Millisecond,
		IndexTimeout: time.Second,
	}, nil)
}

func TestAnalyzer_Analyze(t *testing.T) {
	a := newTestAnalyzer(t, &fakeService{})

	record, err := a.Analyze(context.Background(), writeVideo(t))
	require.NoError(t, err)

	assert.Equal(t, "vid-1", record.VideoID)
	assert.InDelta(t, 0.84, record.VisualConfidence.HasMilk, 1e-9)
	assert.InDelta(t, highConfidence, record.VisualConfidence.IsDrinking, 1e-9)
	assert.InDelta(t, 0.9, record.VisualConfidence.IsCreative, 1e-9)
	assert.InDelta(t, 0.7, record.AudioConfidence, 1e-9)
	assert.Equal(t, []string{"I love milk"}, record.AudioMentions)
	assert.Equal(t, []string{"milk bottle", "glass", "table"}, record.Objects)
	assert.Equal(t, []string{"drinking", "jumping"}, record.Actions)
	assert.Equal(t, "A kid drinks milk in the gym.", record.Description)
	assert.Equal(t, "Yes, from a glass.", record.SemanticAnalysis)
	assert.Equal(t, "Gym milk stunt", record.Summary)
	assert.Equal(t, []domain.Highlight{{Text: "backflip", Start: 1.5, End: 3}}, record.Highlights)
}

func TestAnalyzer_DegradesFailedSubSteps(t *testing.T) {
	a := newTestAnalyzer(t, &fakeService{summarizeStatus: http.StatusBadRequest})

	record, err := a.Analyze(context.Background(), writeVideo(t))
	require.NoError(t, err)

	assert.Empty(t, record.Summary)
	assert.Empty(t, record.Highlights)
	assert.NotEmpty(t, record.Objects)
}

func TestAnalyzer_FindSimilarExcludesSelf(t *testing.T) {
	a := newTestAnalyzer(t, &fakeService{})

	similar, err := a.FindSimilar(context.Background(), "vid-1", 2)
	require.NoError(t, err)

	assert.Equal(t, []domain.SimilarVideo{{VideoID: "vid-2", Score: 0.8}}, similar)
}

func TestAnalyzer_RequiresIndexName(t *testing.T) {
	a := NewAnalyzer(NewClient(ClientConfig{BaseURL: "http://127.0.0.1:0"}, nil, nil), AnalyzerConfig{}, nil)

	_, err := a.Analyze(context.Background(), "clip.mp4")
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"milk, cookie", []string{"milk", "cookie"}},
		{"1. glass\n2. straw.\n\n", []string{"glass", "straw"}},
		{"* bowl; spoon", []string{"bowl", "spoon"}},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if tt.want == nil {
			assert.Empty(t, got, tt.in)
			continue
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestMaxConfidence(t *testing.T) {
	assert.InDelta(t, 0.0, maxConfidence(nil), 1e-9)
	assert.InDelta(t, 1.0, maxConfidence([]Clip{{Score: 250}}), 1e-9)
	assert.InDelta(t, lowConfidence, maxConfidence([]Clip{{Score: 5, Confidence: "LOW"}}), 1e-9)
}
