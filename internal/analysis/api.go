package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

// ErrIndexingFailed is returned when the service reports a failed index task.
var ErrIndexingFailed = errors.New("video indexing failed")

var errTaskPending = errors.New("index task pending")

// Search options understood by the service.
const (
	SearchVisual       = "visual"
	SearchConversation = "conversation"
	SearchTextInVideo  = "text_in_video"
)

const (
	taskStatusReady  = "ready"
	taskStatusFailed = "failed"

	summaryTypeSummary   = "summary"
	summaryTypeHighlight = "highlight"
)

// Model is one engine enabled on an index.
type Model struct {
	Name    string   `json:"model_name"`
	Options []string `json:"model_options"`
}

type indexResponse struct {
	ID   string `json:"_id"`
	Name string `json:"index_name"`
}

type indexListResponse struct {
	Data []indexResponse `json:"data"`
}

type taskResponse struct {
	ID      string `json:"_id"`
	Status  string `json:"status"`
	VideoID string `json:"video_id"`
}

// Clip is one search hit inside a video.
type Clip struct {
	VideoID    string  `json:"video_id"`
	Score      float64 `json:"score"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence string  `json:"confidence"`
	Text       string  `json:"transcription,omitempty"`
}

type searchRequest struct {
	IndexID       string         `json:"index_id"`
	QueryText     string         `json:"query_text"`
	SearchOptions []string       `json:"search_options"`
	Filter        map[string]any `json:"filter,omitempty"`
}

type searchResponse struct {
	Data []Clip `json:"data"`
}

type generateRequest struct {
	VideoID string `json:"video_id"`
	Prompt  string `json:"prompt"`
}

type generateResponse struct {
	Data string `json:"data"`
}

type summarizeRequest struct {
	VideoID string `json:"video_id"`
	Type    string `json:"type"`
}

type highlightResponse struct {
	Highlight string  `json:"highlight"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

type summarizeResponse struct {
	Summary    string              `json:"summary"`
	Highlights []highlightResponse `json:"highlights"`
}

type similarResponse struct {
	Data []struct {
		VideoID string  `json:"video_id"`
		Score   float64 `json:"score"`
	} `json:"data"`
}

// EnsureIndex returns the id of the named index, creating it when missing.
func (c *Client) EnsureIndex(ctx context.Context, name string, models []Model) (string, error) {
	var list indexListResponse
	path := "/indexes?index_name=" + url.QueryEscape(name)
	if err := c.do(ctx, "list_indexes", http.MethodGet, path, nil, &list); err != nil {
		return "", err
	}
	for _, idx := range list.Data {
		if idx.Name == name {
			return idx.ID, nil
		}
	}

	var created indexResponse
	body := jsonBody(map[string]any{"index_name": name, "models": models})
	if err := c.do(ctx, "create_index", http.MethodPost, "/indexes", body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("create_index: empty index id for %q", name)
	}
	return created.ID, nil
}

// IndexVideo uploads the video at path and blocks until the index task is
// ready, polling every pollInterval. It returns the service's video id.
func (c *Client) IndexVideo(ctx context.Context, path, indexID string, pollInterval time.Duration) (string, error) {
	var task taskResponse
	if err := c.do(ctx, "create_task", http.MethodPost, "/tasks", uploadBody(path, indexID), &task); err != nil {
		return "", err
	}
	if task.ID == "" {
		return "", errors.New("create_task: empty task id")
	}
	c.logger.Info("Video upload accepted, waiting for indexing")

	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}

	var videoID string
	poll := func() error {
		var current taskResponse
		if err := c.do(ctx, "get_task", http.MethodGet, "/tasks/"+url.PathEscape(task.ID), nil, &current); err != nil {
			return backoff.Permanent(err)
		}
		switch current.Status {
		case taskStatusReady:
			videoID = current.VideoID
			return nil
		case taskStatusFailed:
			return backoff.Permanent(fmt.Errorf("%w: task %s", ErrIndexingFailed, task.ID))
		default:
			return errTaskPending
		}
	}
	if err := backoff.Retry(poll, backoff.WithContext(backoff.NewConstantBackOff(pollInterval), ctx)); err != nil {
		return "", err
	}
	if videoID == "" {
		videoID = task.ID
	}
	return videoID, nil
}

// uploadBody streams a multipart form with the video file. Each call reopens
// the file so a retried request sends the full body.
func uploadBody(path, indexID string) requestBody {
	return func() (io.Reader, string, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("open video: %w", err)
		}

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			defer func() { _ = f.Close() }()
			err := writeUpload(mw, f, filepath.Base(path), indexID)
			if err == nil {
				err = mw.Close()
			}
			_ = pw.CloseWithError(err)
		}()
		return pr, mw.FormDataContentType(), nil
	}
}

func writeUpload(mw *multipart.Writer, src io.Reader, filename, indexID string) error {
	if err := mw.WriteField("index_id", indexID); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("video_file", filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, src)
	return err
}

// Search runs a query restricted to one video when videoID is set.
func (c *Client) Search(ctx context.Context, indexID, videoID, query string, options ...string) ([]Clip, error) {
	if len(options) == 0 {
		options = []string{SearchVisual}
	}
	req := searchRequest{IndexID: indexID, QueryText: query, SearchOptions: options}
	if videoID != "" {
		req.Filter = map[string]any{"id": []string{videoID}}
	}
	var resp searchResponse
	if err := c.do(ctx, "search", http.MethodPost, "/search", jsonBody(req), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GenerateText asks the service an open-ended question about a video.
func (c *Client) GenerateText(ctx context.Context, videoID, prompt string) (string, error) {
	var resp generateResponse
	body := jsonBody(generateRequest{VideoID: videoID, Prompt: prompt})
	if err := c.do(ctx, "generate", http.MethodPost, "/generate", body, &resp); err != nil {
		return "", err
	}
	return resp.Data, nil
}

// Summary returns the service's overall summary of a video.
func (c *Client) Summary(ctx context.Context, videoID string) (string, error) {
	resp, err := c.summarize(ctx, videoID, summaryTypeSummary)
	if err != nil {
		return "", err
	}
	return resp.Summary, nil
}

// Highlights returns the notable moments of a video.
func (c *Client) Highlights(ctx context.Context, videoID string) ([]domain.Highlight, error) {
	resp, err := c.summarize(ctx, videoID, summaryTypeHighlight)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Highlight, 0, len(resp.Highlights))
	for _, h := range resp.Highlights {
		out = append(out, domain.Highlight{Text: h.Highlight, Start: h.Start, End: h.End})
	}
	return out, nil
}

func (c *Client) summarize(ctx context.Context, videoID, kind string) (*summarizeResponse, error) {
	var resp summarizeResponse
	body := jsonBody(summarizeRequest{VideoID: videoID, Type: kind})
	if err := c.do(ctx, "summarize_"+kind, http.MethodPost, "/summarize", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Similar lists candidate similar videos for a video in an index.
func (c *Client) Similar(ctx context.Context, indexID, videoID string, limit int) ([]domain.SimilarVideo, error) {
	path := fmt.Sprintf("/indexes/%s/videos/%s/similar?limit=%s",
		url.PathEscape(indexID), url.PathEscape(videoID), strconv.Itoa(limit))
	var resp similarResponse
	if err := c.do(ctx, "similar", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.SimilarVideo, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, domain.SimilarVideo{VideoID: d.VideoID, Score: d.Score})
	}
	return out, nil
}
