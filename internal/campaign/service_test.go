package campaign_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/milkmob/internal/campaign"
	"github.com/jonesrussell/north-cloud/milkmob/internal/classifier"
	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/processor"
	"github.com/jonesrussell/north-cloud/milkmob/internal/tags"
	"github.com/jonesrussell/north-cloud/milkmob/internal/telemetry"
	"github.com/jonesrussell/north-cloud/milkmob/internal/testhelpers"
	"github.com/jonesrussell/north-cloud/milkmob/internal/validator"
)

func chefRecord() *domain.AnalysisRecord {
	return &domain.AnalysisRecord{
		VideoID:          "vid-chef",
		Objects:          []string{"kitchen", "glass"},
		Actions:          []string{"cooking", "drinking"},
		VisualConfidence: domain.VisualConfidence{HasMilk: 0.8, IsDrinking: 0.7},
	}
}

func newService(t *testing.T, analyzer campaign.Analyzer) (*campaign.Service, *testhelpers.MockCohortStore) {
	t.Helper()
	store := testhelpers.NewMockCohortStore(classifier.DefaultCategories())
	c, err := classifier.New(classifier.DefaultCategories(), store, classifier.DefaultConfig(), nil, nil)
	require.NoError(t, err)

	svc, err := campaign.NewService(campaign.Dependencies{
		Detector:   tags.NewDetector([]string{"#GotMilk", "#MilkMob"}, nil, nil),
		Validator:  validator.New(validator.DefaultConfig(), nil),
		Classifier: c,
		Analyzer:   analyzer,
		Store:      store,
		Telemetry:  telemetry.NewProvider(),
	}, campaign.Config{})
	require.NoError(t, err)
	return svc, store
}

func TestNewService_RequiresComponents(t *testing.T) {
	_, err := campaign.NewService(campaign.Dependencies{}, campaign.Config{})
	require.Error(t, err)
}

func TestService_ProcessSubmissionValid(t *testing.T) {
	analyzer := &testhelpers.MockAnalyzer{
		Record:  chefRecord(),
		Similar: []domain.SimilarVideo{{VideoID: "vid-2", Score: 0.7}},
	}
	svc, store := newService(t, analyzer)

	post := &domain.PostMetadata{
		Caption:  "Baking with @grandma #GotMilk",
		Location: &domain.Location{PlaceName: "Central Park", City: "New York"},
	}
	res := svc.ProcessSubmission(context.Background(), "uploads/clip.mp4", post)

	assert.Equal(t, campaign.StatusSuccess, res.Status)
	assert.Equal(t, "vid-chef", res.VideoID)
	assert.Equal(t, []string{"uploads/clip.mp4"}, analyzer.AnalyzedPaths)
	require.NotNil(t, res.TagResults)
	assert.True(t, res.TagResults.IsCampaignTagged)
	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.IsValid)
	require.NotNil(t, res.MobAssignment)
	assert.Equal(t, "chef_milk_mob", res.MobAssignment.CategoryID)
	assert.Equal(t, analyzer.Similar, res.SimilarVideos)
	assert.Equal(t, post.Location, res.Location)
	assert.Equal(t, []string{"@grandma"}, res.Metadata.Mentions)
	assert.GreaterOrEqual(t, res.ProcessingTime, 0.0)

	m, ok := store.Membership("vid-chef")
	require.True(t, ok)
	assert.Equal(t, "Central Park", m.PlaceName)
}

func TestService_ProcessSubmissionInvalidSkipsClassification(t *testing.T) {
	analyzer := &testhelpers.MockAnalyzer{Record: &domain.AnalysisRecord{VideoID: "vid-dry"}}
	svc, store := newService(t, analyzer)

	res := svc.ProcessSubmission(context.Background(), "clip.mp4", nil)

	assert.Equal(t, campaign.StatusSuccess, res.Status)
	require.NotNil(t, res.Validation)
	assert.False(t, res.Validation.IsValid)
	assert.Equal(t, validator.MessageNoMilk+
		" Tip: add #GotMilk or #MilkMob to your caption to join the campaign.", res.Validation.Message)
	assert.Nil(t, res.MobAssignment)
	assert.Empty(t, res.SimilarVideos)
	_, ok := store.Membership("vid-dry")
	assert.False(t, ok)
}

func TestService_ProcessSubmissionAnalysisFault(t *testing.T) {
	svc, _ := newService(t, &testhelpers.MockAnalyzer{AnalyzeErr: errors.New("service down")})

	res := svc.ProcessSubmission(context.Background(), "clip.mp4", &domain.PostMetadata{Caption: "#MilkMob"})

	assert.Equal(t, campaign.StatusError, res.Status)
	assert.Contains(t, res.Error, "service down")
	require.NotNil(t, res.TagResults)
	assert.True(t, res.TagResults.IsCampaignTagged)
	assert.Nil(t, res.Validation)
}

func TestService_ProcessSubmissionWithoutAnalyzer(t *testing.T) {
	svc, _ := newService(t, nil)

	res := svc.ProcessSubmission(context.Background(), "clip.mp4", nil)

	assert.Equal(t, campaign.StatusError, res.Status)
	assert.Equal(t, campaign.ErrAnalyzerUnavailable.Error(), res.Error)
}

func TestService_SimilarLookupFaultIsNotFatal(t *testing.T) {
	analyzer := &testhelpers.MockAnalyzer{Record: chefRecord(), SimilarErr: errors.New("timeout")}
	svc, _ := newService(t, analyzer)

	res := svc.ProcessSubmission(context.Background(), "clip.mp4", nil)

	assert.Equal(t, campaign.StatusSuccess, res.Status)
	assert.NotNil(t, res.MobAssignment)
	assert.Empty(t, res.SimilarVideos)
}

func TestService_GetCohortStatsDegraded(t *testing.T) {
	svc, store := newService(t, nil)
	store.StatsErr = errors.New("db down")

	stats := svc.GetCohortStats(context.Background())

	assert.True(t, stats.Degraded)
	assert.Empty(t, stats.CategoryCounts)
	assert.NotNil(t, stats.TopVideos)
}

func TestService_GetCohortStats(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	svc.ClassifyVideo(ctx, chefRecord(), classifier.Options{})

	stats := svc.GetCohortStats(ctx)

	assert.False(t, stats.Degraded)
	assert.Equal(t, 1, stats.Totals.Videos)
	assert.Len(t, stats.CategoryCounts, 7)
}

func TestService_SetKeywordWeight(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.SetKeywordWeight(ctx, "art_milk_mob", "latte", 2))
	res := svc.ClassifyVideo(ctx, &domain.AnalysisRecord{VideoID: "v", Objects: []string{"latte"}}, classifier.Options{})
	assert.Equal(t, "art_milk_mob", res.CategoryID)

	err := svc.SetKeywordWeight(ctx, "nope", "latte", 1)
	require.ErrorIs(t, err, campaign.ErrUnknownCategory)
}

func TestService_PopularTags(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	svc.DetectTags(ctx, &domain.PostMetadata{Hashtags: []string{"#GotMilk"}})
	svc.DetectTags(ctx, &domain.PostMetadata{Hashtags: []string{"#gotmilk", "#MilkMob"}})

	top := svc.PopularTags(ctx, 0)
	require.Len(t, top, 2)
	assert.Equal(t, domain.TagCount{Tag: "#gotmilk", Count: 2}, top[0])

	require.NoError(t, svc.ResetPopularTags(ctx))
	assert.Empty(t, svc.PopularTags(ctx, 5))
}

func TestService_ClassifyBatch(t *testing.T) {
	svc, store := newService(t, nil)

	results := svc.ClassifyBatch(context.Background(), []processor.Item{
		{Record: chefRecord()},
		{Record: &domain.AnalysisRecord{VideoID: "v-dance", Actions: []string{"dancing"}}},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "dance_milk_mob", results[1].Classification.CategoryID)
	assert.Equal(t, 1, store.MemberCount("dance_milk_mob"))
}

func TestService_GetAllCategories(t *testing.T) {
	svc, _ := newService(t, nil)

	cats := svc.GetAllCategories()

	require.Len(t, cats, 7)
	assert.Equal(t, "active_milk_mob", cats[0].ID)
	assert.Len(t, cats[0].SampleKeywords, 5)
}

func TestService_SetKeywordWeightsIsAllOrNothing(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	err := svc.SetKeywordWeights(ctx, "art_milk_mob", []domain.Keyword{
		{Term: "latte", Weight: 2},
		{Term: "  ", Weight: 1},
	})
	require.ErrorIs(t, err, campaign.ErrInvalidKeyword)

	weights, err := store.KeywordWeights(ctx)
	require.NoError(t, err)
	assert.Empty(t, weights["art_milk_mob"])

	store.WeightsErr = errors.New("db down")
	err = svc.SetKeywordWeights(ctx, "art_milk_mob", []domain.Keyword{{Term: "latte", Weight: 2}})
	require.Error(t, err)
	res := svc.ClassifyVideo(ctx, &domain.AnalysisRecord{VideoID: "v", Objects: []string{"latte"}}, classifier.Options{})
	assert.NotEqual(t, "art_milk_mob", res.CategoryID)

	store.WeightsErr = nil
	require.NoError(t, svc.SetKeywordWeights(ctx, "art_milk_mob", []domain.Keyword{
		{Term: "Latte", Weight: 2},
		{Term: "foam", Weight: 1},
	}))
	weights, err = store.KeywordWeights(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"latte": 2, "foam": 1}, weights["art_milk_mob"])
}

func TestService_SetKeywordWeightRejectsInvalid(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.SetKeywordWeight(ctx, "art_milk_mob", "  ", 1), campaign.ErrInvalidKeyword)
	require.ErrorIs(t, svc.SetKeywordWeight(ctx, "art_milk_mob", "latte", -1), campaign.ErrInvalidKeyword)
}
