// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.aimuz.me/whisperkey/audiocapture"
)

const (
	appName        = "whisperkey"
	configFileName = "config.json"
)

// Backend names.
const (
	BackendAPI   = "api"
	BackendLocal = "local"
)

// Config represents the application configuration.
type Config struct {
	// Transcription
	Backend       string  `json:"backend"`                   // "api" or "local"
	Model         string  `json:"model,omitempty"`           // Backend-specific model selector
	APIKey        string  `json:"api_key,omitempty"`         // Remote backend credential
	APIURL        string  `json:"api_url,omitempty"`         // Base URL such as https://api.openai.com/v1/; a full .../audio/transcriptions endpoint is accepted too
	CostPerMinute float64 `json:"cost_per_minute,omitempty"` // Display-only estimate
	ModelDir      string  `json:"model_dir,omitempty"`       // Local ggml model directory
	WhisperBin    string  `json:"whisper_bin,omitempty"`     // Local whisper-cli path

	// Recording
	Hotkey           string `json:"hotkey"`
	SampleRate       int    `json:"sample_rate,omitempty"`
	Channels         int    `json:"channels,omitempty"`
	FramesPerBuffer  int    `json:"frames_per_buffer,omitempty"`
	MaxRecordSeconds int    `json:"max_record_seconds,omitempty"` // Zero means unbounded
	OutputPath       string `json:"output_path"`
	DownloadsDir     string `json:"downloads_dir,omitempty"`

	// Feedback
	PlaySound     *bool `json:"play_sound,omitempty"`
	Notifications bool  `json:"notifications"`
	MenuBar       bool  `json:"menu_bar"`

	// Cache
	Cache    bool   `json:"cache"`
	CacheDir string `json:"cache_dir,omitempty"`

	LogLevel string `json:"log_level,omitempty"`

	path string // File the config was loaded from
}

// DefaultPath returns <user config dir>/whisperkey/config.json.
func DefaultPath() (string, error) {
	return configPath()
}

// Init writes a config file holding the defaults when path does not exist
// yet, and reports whether it did. Environment overrides are not written.
func Init(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config: %w", err)
	}

	cfg := &Config{path: path}
	cfg.ApplyDefaults()
	if err := cfg.Save(); err != nil {
		return false, err
	}
	return true, nil
}

// LoadFile loads configuration from path, applies environment overrides
// and fills defaults.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.path = path
	cfg.applyEnv()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists the configuration to the file it was loaded from.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := configPath()
		if err != nil {
			return fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// The file may hold an API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Path returns the file the configuration is bound to.
func (c *Config) Path() string {
	return c.path
}

// ApplyDefaults fills unset fields. Backend-dependent defaults follow the
// backend in effect, so call it again after changing Backend.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendAPI
	}
	if c.Hotkey == "" {
		c.Hotkey = "cmd+e"
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.FramesPerBuffer == 0 {
		c.FramesPerBuffer = 1024
	}
	if c.OutputPath == "" {
		c.OutputPath = "output.wav"
	}
	if c.DownloadsDir == "" {
		c.DownloadsDir = defaultDownloadsDir()
	}
	c.DownloadsDir = expandTilde(c.DownloadsDir)
	c.OutputPath = expandTilde(c.OutputPath)

	switch c.Backend {
	case BackendAPI:
		if c.Model == "" {
			c.Model = "whisper-1"
		}
		if c.SampleRate == 0 {
			c.SampleRate = 21845
		}
		if c.MaxRecordSeconds == 0 {
			c.MaxRecordSeconds = 600
		}
		if c.CostPerMinute == 0 {
			c.CostPerMinute = 0.006
		}
		if c.PlaySound == nil {
			c.PlaySound = boolPtr(false)
		}
	case BackendLocal:
		if c.Model == "" {
			c.Model = "medium"
		}
		if c.SampleRate == 0 {
			c.SampleRate = 44100
		}
		if c.PlaySound == nil {
			c.PlaySound = boolPtr(true)
		}
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.Backend != BackendAPI && c.Backend != BackendLocal {
		return fmt.Errorf("invalid backend %q: want %q or %q", c.Backend, BackendAPI, BackendLocal)
	}
	if c.MaxRecordSeconds < 0 {
		return fmt.Errorf("max_record_seconds must not be negative")
	}
	if err := c.Format().Validate(); err != nil {
		return fmt.Errorf("recording format: %w", err)
	}
	return nil
}

// Format returns the capture format.
func (c *Config) Format() audiocapture.Format {
	return audiocapture.Format{
		SampleRate:      c.SampleRate,
		Channels:        c.Channels,
		FramesPerBuffer: c.FramesPerBuffer,
	}
}

// MaxDuration returns the recording bound, zero when unbounded.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxRecordSeconds) * time.Second
}

// SoundEnabled reports whether the completion cue plays.
func (c *Config) SoundEnabled() bool {
	return c.PlaySound != nil && *c.PlaySound
}

// ResolvePath returns name unchanged if absolute, otherwise joined to the
// downloads directory.
func (c *Config) ResolvePath(name string) string {
	name = expandTilde(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DownloadsDir, name)
}

// CachePath returns the transcript cache directory.
func (c *Config) CachePath() (string, error) {
	if c.CacheDir != "" {
		return expandTilde(c.CacheDir), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, "cache"), nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("WHISPERKEY_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("WHISPERKEY_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("WHISPERKEY_BACKEND"); v != "" {
		c.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("WHISPERKEY_MODEL"); v != "" {
		c.Model = v
	}
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

func defaultDownloadsDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Downloads")
	}
	return "."
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func boolPtr(b bool) *bool { return &b }
