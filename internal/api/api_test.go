package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/milkmob/internal/api"
	"github.com/jonesrussell/north-cloud/milkmob/internal/campaign"
	"github.com/jonesrussell/north-cloud/milkmob/internal/classifier"
	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/storage"
	"github.com/jonesrussell/north-cloud/milkmob/internal/tags"
	"github.com/jonesrussell/north-cloud/milkmob/internal/telemetry"
	"github.com/jonesrussell/north-cloud/milkmob/internal/testhelpers"
	"github.com/jonesrussell/north-cloud/milkmob/internal/validator"
)

const testSecret = "test-secret"

type testEnv struct {
	router   *gin.Engine
	store    *testhelpers.MockCohortStore
	analyzer *testhelpers.MockAnalyzer
	uploads  *storage.VideoStore
}

func chefRecord() *domain.AnalysisRecord {
	return &domain.AnalysisRecord{
		VideoID:          "vid-chef",
		Objects:          []string{"kitchen", "glass"},
		Actions:          []string{"cooking", "drinking"},
		VisualConfidence: domain.VisualConfidence{HasMilk: 0.8, IsDrinking: 0.7},
	}
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testhelpers.NewMockCohortStore(classifier.DefaultCategories())
	c, err := classifier.New(classifier.DefaultCategories(), store, classifier.DefaultConfig(), nil, nil)
	require.NoError(t, err)

	analyzer := &testhelpers.MockAnalyzer{Record: chefRecord()}
	tp := telemetry.NewProvider()
	svc, err := campaign.NewService(campaign.Dependencies{
		Detector:   tags.NewDetector([]string{"#GotMilk", "#MilkMob"}, nil, nil),
		Validator:  validator.New(validator.DefaultConfig(), nil),
		Classifier: c,
		Analyzer:   analyzer,
		Store:      store,
		Telemetry:  tp,
	}, campaign.Config{})
	require.NoError(t, err)

	uploads, err := storage.NewVideoStore(t.TempDir(), 1024)
	require.NoError(t, err)

	router := api.NewEngine(api.ServerConfig{}, nil)
	api.SetupRoutes(router, api.NewHandler(svc, uploads, 1024, nil), api.RouteOptions{
		JWTSecret: secret,
		Metrics:   tp.Handler(),
		Health:    api.HealthOptions{ServiceName: "milkmob", ServiceVersion: "test"},
	})
	return &testEnv{router: router, store: store, analyzer: analyzer, uploads: uploads}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, secret string) http.Header {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, api.Claims{
		Sub: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return http.Header{"Authorization": []string{"Bearer " + signed}}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodGet, "/health", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[api.HealthResponse](t, w)
	assert.Equal(t, api.HealthStatusHealthy, resp.Status)
	assert.Equal(t, "milkmob", resp.Service)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestDetectTags(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodPost, "/api/v1/tags/detect",
		domain.PostMetadata{Caption: "Morning run #GotMilk #fitness"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[domain.TagResult](t, w)
	assert.True(t, resp.IsCampaignTagged)
	assert.Equal(t, []string{"#gotmilk"}, resp.CampaignTagsFound)
	assert.Equal(t, []string{"#gotmilk", "#fitness"}, resp.AllTagsFound)

	w = env.do(t, http.MethodGet, "/api/v1/tags/popular?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	popular := decode[api.PopularTagsResponse](t, w)
	assert.Equal(t, []domain.TagCount{{Tag: "#gotmilk", Count: 1}}, popular.Tags)
}

func TestPopularTags_InvalidLimit(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodGet, "/api/v1/tags/popular?limit=zero", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodPost, "/api/v1/validate", api.ValidateRequest{
		Analysis: chefRecord(),
		Post:     &domain.PostMetadata{Hashtags: []string{"#MilkMob"}},
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[domain.ValidationResult](t, w)
	assert.True(t, resp.IsValid)
	assert.True(t, resp.Details.HasCampaignTags)
	assert.Contains(t, resp.Message, "#milkmob")
}

func TestValidate_MissingAnalysis(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodPost, "/api/v1/validate", map[string]any{}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassify(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodPost, "/api/v1/classify", api.ClassifyRequest{
		Analysis: chefRecord(),
		Location: &domain.Location{PlaceName: "Pike Place", City: "Seattle"},
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[api.ClassifyResponse](t, w)
	assert.Equal(t, "chef_milk_mob", resp.Result.CategoryID)
	m, ok := env.store.Membership("vid-chef")
	require.True(t, ok)
	assert.Equal(t, "Seattle", m.City)
}

func TestClassifyBatch(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodPost, "/api/v1/classify/batch", map[string]any{
		"items": []map[string]any{
			{"record": chefRecord()},
			{"record": map[string]any{"video_id": ""}},
		},
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[api.BatchClassifyResponse](t, w)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Success)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, classifier.DefaultCategoryID, resp.Results[1].Classification.CategoryID)
}

func TestClassifyBatch_Empty(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodPost, "/api/v1/classify/batch", map[string]any{"items": []any{}}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCategoriesAndStats(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodGet, "/api/v1/categories", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cats := decode[api.CategoriesResponse](t, w)
	assert.Equal(t, 7, cats.Total)

	w = env.do(t, http.MethodGet, "/api/v1/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[domain.CohortStats](t, w)
	assert.Len(t, stats.CategoryCounts, 7)
	assert.False(t, stats.Degraded)
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodDelete, "/api/v1/tags/popular", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/tags/popular", nil, bearer(t, "wrong-secret"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/tags/popular", nil, bearer(t, testSecret))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAdminRoutes_DisabledWithoutSecret(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodDelete, "/api/v1/tags/popular", nil, bearer(t, testSecret))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateKeywords(t *testing.T) {
	env := newTestEnv(t, testSecret)
	auth := bearer(t, testSecret)

	w := env.do(t, http.MethodPut, "/api/v1/categories/art_milk_mob/keywords", api.UpdateKeywordsRequest{
		Keywords: []domain.Keyword{{Term: "Latte", Weight: 2}},
	}, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/classify", api.ClassifyRequest{
		Analysis: &domain.AnalysisRecord{VideoID: "v-art", Objects: []string{"latte"}},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "art_milk_mob", decode[api.ClassifyResponse](t, w).Result.CategoryID)

	w = env.do(t, http.MethodPut, "/api/v1/categories/unknown/keywords", api.UpdateKeywordsRequest{
		Keywords: []domain.Keyword{{Term: "latte", Weight: 1}},
	}, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateKeywords_InvalidEntryStoresNothing(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodPut, "/api/v1/categories/art_milk_mob/keywords", api.UpdateKeywordsRequest{
		Keywords: []domain.Keyword{{Term: "latte", Weight: 2}, {Term: "foam", Weight: -1}},
	}, bearer(t, testSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	weights, err := env.store.KeywordWeights(context.Background())
	require.NoError(t, err)
	assert.Empty(t, weights["art_milk_mob"])
}

func multipartRequest(t *testing.T, fields map[string]string, video []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if video != nil {
		part, err := mw.CreateFormFile("video", "clip.mp4")
		require.NoError(t, err)
		_, err = part.Write(video)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSubmit(t *testing.T) {
	env := newTestEnv(t, testSecret)

	req := multipartRequest(t, map[string]string{
		"caption":    "Cookies and milk @chef #GotMilk",
		"place_name": "Pike Place",
		"city":       "Seattle",
	}, []byte("video-bytes"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[campaign.SubmissionResult](t, w)
	assert.Equal(t, campaign.StatusSuccess, resp.Status)
	assert.Equal(t, "chef_milk_mob", resp.MobAssignment.CategoryID)
	assert.Equal(t, "Pike Place", resp.Location.PlaceName)

	require.Len(t, env.analyzer.AnalyzedPaths, 1)
	saved := env.analyzer.AnalyzedPaths[0]
	assert.Equal(t, env.uploads.Dir(), filepath.Dir(saved))
	assert.True(t, strings.HasSuffix(saved, "_clip.mp4"))
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
}

func TestSubmit_JSONMetadata(t *testing.T) {
	env := newTestEnv(t, testSecret)

	req := multipartRequest(t, map[string]string{
		"metadata": `{"caption":"milk time","hashtags":["#MilkMob"]}`,
	}, []byte("v"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[campaign.SubmissionResult](t, w)
	assert.Equal(t, []string{"#milkmob"}, resp.TagResults.CampaignTagsFound)
}

func TestSubmit_Errors(t *testing.T) {
	env := newTestEnv(t, testSecret)

	tests := []struct {
		name   string
		fields map[string]string
		video  []byte
		want   int
	}{
		{name: "missing video", fields: map[string]string{"caption": "x"}, want: http.StatusBadRequest},
		{name: "bad metadata", fields: map[string]string{"metadata": "{"}, video: []byte("v"), want: http.StatusBadRequest},
		{name: "too large", video: bytes.Repeat([]byte("x"), 2048), want: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, multipartRequest(t, tt.fields, tt.video))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, testSecret)
	env.do(t, http.MethodPost, "/api/v1/tags/detect", domain.PostMetadata{Caption: "#GotMilk"}, nil)

	w := env.do(t, http.MethodGet, "/metrics", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `milkmob_tag_detections_total{campaign="true"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, testSecret)

	w := env.do(t, http.MethodOptions, "/api/v1/classify", nil, http.Header{"Origin": []string{"https://milk.example"}})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
