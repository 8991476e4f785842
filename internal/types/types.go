// Package types provides shared type definitions for the application.
package types

import "time"

// TranscriptRequest is created once per stop event and consumed by a backend.
type TranscriptRequest struct {
	SourcePath string `json:"sourcePath"` // Audio file to transcribe
	Model      string `json:"model"`      // Backend-specific model identifier
}

// TranscriptResult is the outcome of a single transcription call.
type TranscriptResult struct {
	Text    string        `json:"text"`    // Raw text as returned by the backend
	Elapsed time.Duration `json:"elapsed"` // Wall time spent in the backend

	// EstimatedCostUSD is a display-only estimate. Nil when the backend is
	// local or the audio duration could not be determined.
	EstimatedCostUSD *float64 `json:"estimatedCostUSD,omitempty"`

	CacheHit bool `json:"cacheHit"`
}

// Cost returns the estimated cost and whether one is available.
func (r *TranscriptResult) Cost() (float64, bool) {
	if r == nil || r.EstimatedCostUSD == nil {
		return 0, false
	}
	return *r.EstimatedCostUSD, true
}

// RecordingStatus reports the recorder state for status indicators.
type RecordingStatus struct {
	Recording bool          `json:"recording"`
	Capturing bool          `json:"capturing"` // False once the max duration or a device error ended capture
	SessionID string        `json:"sessionId,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}
