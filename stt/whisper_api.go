package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.aimuz.me/whisperkey/internal/types"
)

const (
	defaultAPIModel = "whisper-1"

	// DefaultCostPerMinute is the published whisper-1 rate in USD. Used for
	// display only.
	DefaultCostPerMinute = 0.006
)

// WhisperAPI implements the Backend interface using OpenAI's transcription API.
type WhisperAPI struct {
	client        openai.Client
	apiKey        string
	model         string
	costPerMinute float64
}

// WhisperAPIConfig holds configuration for WhisperAPI.
type WhisperAPIConfig struct {
	APIKey        string
	BaseURL       string       // Optional API root, defaults to OpenAI's; a full transcription endpoint is trimmed to its root
	Model         string       // Optional, defaults to "whisper-1"
	CostPerMinute float64      // Optional, defaults to DefaultCostPerMinute
	HTTPClient    *http.Client // Optional; no timeout is applied by default
}

const transcriptionsPath = "/audio/transcriptions"

// apiBaseURL accepts either an API root (https://host/v1) or the full
// transcription endpoint (https://host/v1/audio/transcriptions) and returns
// the root with a trailing slash.
func apiBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	u = strings.TrimSuffix(u, transcriptionsPath)
	return u + "/"
}

// NewWhisperAPI creates a new WhisperAPI backend.
func NewWhisperAPI(cfg WhisperAPIConfig) *WhisperAPI {
	model := cfg.Model
	if model == "" {
		model = defaultAPIModel
	}

	rate := cfg.CostPerMinute
	if rate == 0 {
		rate = DefaultCostPerMinute
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(apiBaseURL(cfg.BaseURL)))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &WhisperAPI{
		client:        openai.NewClient(opts...),
		apiKey:        cfg.APIKey,
		model:         model,
		costPerMinute: rate,
	}
}

func (w *WhisperAPI) Name() string { return "api" }
func (w *WhisperAPI) Close() error { return nil }

// Check fails when no API key is configured.
func (w *WhisperAPI) Check() error {
	if w.apiKey == "" {
		return fmt.Errorf("API key is required for the api backend")
	}
	return nil
}

// Transcribe uploads the file and returns the recognized text.
// A non-success response yields a *NetworkError carrying status and body.
func (w *WhisperAPI) Transcribe(ctx context.Context, req types.TranscriptRequest) (*types.TranscriptResult, error) {
	if err := checkSource(req.SourcePath); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = w.model
	}

	f, err := os.Open(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	slog.Info("uploading audio", "path", req.SourcePath, "model", model)

	start := time.Now()
	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(model),
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, toNetworkError(err)
	}

	result := &types.TranscriptResult{
		Text:    resp.Text,
		Elapsed: elapsed,
	}

	if d, err := wavDuration(req.SourcePath); err != nil {
		slog.Warn("audio duration unavailable, skipping cost estimate", "path", req.SourcePath, "error", err)
	} else {
		cost := EstimateCost(d, w.costPerMinute)
		result.EstimatedCostUSD = &cost
	}

	return result, nil
}

func toNetworkError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.RawJSON()
		if body == "" {
			body = apiErr.Error()
		}
		return &NetworkError{StatusCode: apiErr.StatusCode, Body: body, Err: err}
	}
	return &NetworkError{Err: err}
}

// EstimateCost prices audio of length d at rate USD per minute. Minutes are
// rounded to two decimals first.
func EstimateCost(d time.Duration, rate float64) float64 {
	minutes := math.Round(d.Minutes()*100) / 100
	return minutes * rate
}

// wavDuration reads the playback length from a WAV header.
func wavDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return 0, fmt.Errorf("not a wav file")
	}
	return d.Duration()
}
