package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.aimuz.me/whisperkey/internal/types"
)

const defaultLocalModel = "medium"

// WhisperLocal implements the Backend interface using local whisper.cpp.
// It uses the whisper-cli tool for inference and ffmpeg to resample input
// to the 16kHz mono PCM whisper.cpp expects.
type WhisperLocal struct {
	modelSize  string // A key of localModels, e.g. "medium" or "small.en"
	modelDir   string
	binPath    string // Path to whisper-cli binary
	ffmpegPath string

	// run executes an external command; replaced in tests.
	run func(ctx context.Context, name string, args ...string) error

	mu sync.Mutex // serializes model downloads
}

// WhisperLocalConfig holds configuration for WhisperLocal.
type WhisperLocalConfig struct {
	ModelSize  string // A whisper.cpp model name, e.g. "medium", "small.en", "large-v2"
	ModelDir   string // Directory to store models
	BinPath    string // Path to whisper-cli binary (optional, searched if not set)
	FFmpegPath string // Path to ffmpeg (optional, searched in PATH if not set)
}

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

type localModel struct {
	File string // ggml file name in the whisper.cpp model repository
	Size int64  // Approximate size in bytes
}

// URL returns the download location of the model.
func (m localModel) URL() string { return modelBaseURL + m.File }

const mib = 1024 * 1024

// localModels maps accepted model names to whisper.cpp ggml files. "large"
// and "turbo" are aliases for the newest release of each.
var localModels = map[string]localModel{
	"tiny":           {"ggml-tiny.bin", 75 * mib},
	"tiny.en":        {"ggml-tiny.en.bin", 75 * mib},
	"base":           {"ggml-base.bin", 142 * mib},
	"base.en":        {"ggml-base.en.bin", 142 * mib},
	"small":          {"ggml-small.bin", 466 * mib},
	"small.en":       {"ggml-small.en.bin", 466 * mib},
	"medium":         {"ggml-medium.bin", 1500 * mib},
	"medium.en":      {"ggml-medium.en.bin", 1500 * mib},
	"large-v1":       {"ggml-large-v1.bin", 2950 * mib},
	"large-v2":       {"ggml-large-v2.bin", 2950 * mib},
	"large-v3":       {"ggml-large-v3.bin", 2950 * mib},
	"large":          {"ggml-large-v3.bin", 2950 * mib},
	"large-v3-turbo": {"ggml-large-v3-turbo.bin", 1550 * mib},
	"turbo":          {"ggml-large-v3-turbo.bin", 1550 * mib},
}

// NewWhisperLocal creates a new WhisperLocal backend.
func NewWhisperLocal(cfg WhisperLocalConfig) (*WhisperLocal, error) {
	if cfg.ModelSize == "" {
		cfg.ModelSize = defaultLocalModel
	}

	if _, ok := localModels[cfg.ModelSize]; !ok {
		return nil, fmt.Errorf("invalid model size: %s", cfg.ModelSize)
	}

	if cfg.ModelDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.ModelDir = filepath.Join(homeDir, ".whisperkey", "models")
	}

	w := &WhisperLocal{
		modelSize:  cfg.ModelSize,
		modelDir:   cfg.ModelDir,
		binPath:    cfg.BinPath,
		ffmpegPath: cfg.FFmpegPath,
		run:        runCommand,
	}

	if w.binPath == "" {
		w.binPath = findWhisperBinary()
	}
	if w.ffmpegPath == "" {
		if p, err := exec.LookPath("ffmpeg"); err == nil {
			w.ffmpegPath = p
		}
	}

	return w, nil
}

func (w *WhisperLocal) Name() string { return "local" }
func (w *WhisperLocal) Close() error { return nil }

// Check reports a missing ffmpeg or whisper.cpp installation.
func (w *WhisperLocal) Check() error {
	if w.ffmpegPath == "" {
		return fmt.Errorf("ffmpeg not found, install with: brew install ffmpeg")
	}
	if w.binPath == "" {
		return fmt.Errorf("whisper.cpp not found, install with: brew install whisper-cpp")
	}
	return nil
}

// ModelPath returns where the ggml model named size is stored. Aliases
// share the file of the model they point at.
func (w *WhisperLocal) ModelPath(size string) string {
	if m, ok := localModels[size]; ok {
		return filepath.Join(w.modelDir, m.File)
	}
	return filepath.Join(w.modelDir, fmt.Sprintf("ggml-%s.bin", size))
}

// Transcribe loads the requested model, downloading it on first use, and
// runs inference on the file. Failures are reported as *ModelError.
func (w *WhisperLocal) Transcribe(ctx context.Context, req types.TranscriptRequest) (*types.TranscriptResult, error) {
	if err := checkSource(req.SourcePath); err != nil {
		return nil, err
	}

	size := req.Model
	if size == "" {
		size = w.modelSize
	}
	if _, ok := localModels[size]; !ok {
		return nil, &ModelError{Model: size, Op: "load", Err: fmt.Errorf("unknown model size")}
	}
	if err := w.Check(); err != nil {
		return nil, &ModelError{Model: size, Op: "load", Err: err}
	}

	start := time.Now()

	modelPath, err := w.ensureModel(size)
	if err != nil {
		return nil, &ModelError{Model: size, Op: "load", Err: err}
	}

	tmpDir, err := os.MkdirTemp("", "whisperkey-")
	if err != nil {
		return nil, &ModelError{Model: size, Op: "transcribe", Err: fmt.Errorf("create temp dir: %w", err)}
	}
	defer os.RemoveAll(tmpDir)

	audioPath := filepath.Join(tmpDir, "audio_16k.wav")
	if err := w.run(ctx, w.ffmpegPath,
		"-y", "-loglevel", "error",
		"-i", req.SourcePath,
		"-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le",
		audioPath,
	); err != nil {
		return nil, &ModelError{Model: size, Op: "transcribe", Err: fmt.Errorf("ffmpeg: %w", err)}
	}

	outBase := filepath.Join(tmpDir, "transcript")
	if err := w.run(ctx, w.binPath,
		"-m", modelPath,
		"-f", audioPath,
		"-oj", "-of", outBase,
		"--no-prints",
	); err != nil {
		return nil, &ModelError{Model: size, Op: "transcribe", Err: fmt.Errorf("whisper-cli: %w", err)}
	}

	data, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return nil, &ModelError{Model: size, Op: "transcribe", Err: fmt.Errorf("read output: %w", err)}
	}

	text, err := parseWhisperOutput(data)
	if err != nil {
		return nil, &ModelError{Model: size, Op: "transcribe", Err: err}
	}

	return &types.TranscriptResult{
		Text:    text,
		Elapsed: time.Since(start),
	}, nil
}

// ensureModel returns the model path, downloading the model if missing.
func (w *WhisperLocal) ensureModel(size string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := w.ModelPath(size)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	m := localModels[size]
	if err := os.MkdirAll(w.modelDir, 0755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	slog.Info("downloading model", "model", size, "url", m.URL())
	lastLogged := -1
	err := downloadFile(m.URL(), path, m.Size, func(pct int) {
		if pct/10 != lastLogged/10 {
			lastLogged = pct
			slog.Info("model download progress", "model", size, "percent", pct)
		}
	})
	if err != nil {
		return "", fmt.Errorf("download model: %w", err)
	}
	return path, nil
}

func downloadFile(url, dst string, expectedSize int64, progress func(percent int)) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status: %d", resp.StatusCode)
	}

	tmpPath := dst + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // Clean up on failure
	}()

	var downloaded int64
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write file: %w", werr)
			}
			downloaded += int64(n)
			if expectedSize > 0 && progress != nil {
				progress(int(min(downloaded*100/expectedSize, 100)))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func findWhisperBinary() string {
	// whisper-cli is the Homebrew name
	names := []string{"whisper-cli", "whisper-cpp", "whisper"}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, "whisper.cpp", "build", "bin"),
	}

	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	if runtime.GOOS == "darwin" {
		execPath, _ := os.Executable()
		bundlePath := filepath.Join(filepath.Dir(execPath), "..", "Resources", "whisper-cli")
		if _, err := os.Stat(bundlePath); err == nil {
			return bundlePath
		}
	}

	return ""
}

// whisperCppOutput represents the JSON output from whisper.cpp.
type whisperCppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseWhisperOutput joins all segment texts in order.
func parseWhisperOutput(data []byte) (string, error) {
	var out whisperCppOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse output: %w", err)
	}

	var sb strings.Builder
	for _, seg := range out.Transcription {
		sb.WriteString(seg.Text)
	}
	return sb.String(), nil
}
