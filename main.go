package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"go.aimuz.me/whisperkey/audiocapture"
	"go.aimuz.me/whisperkey/cache"
	"go.aimuz.me/whisperkey/clipboard"
	"go.aimuz.me/whisperkey/config"
	"go.aimuz.me/whisperkey/hotkey"
	"go.aimuz.me/whisperkey/internal/app"
	"go.aimuz.me/whisperkey/notify"
	"go.aimuz.me/whisperkey/recorder"
	"go.aimuz.me/whisperkey/stt"
	"go.aimuz.me/whisperkey/tray"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type flags struct {
	file       string
	model      string
	backend    string
	configPath string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("exit", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "whisperkey",
		Short: "Record with a hotkey, transcribe, copy to clipboard",
		Long: "Press the hotkey to start recording the microphone and press it again to stop.\n" +
			"The recording is transcribed and the text placed on the clipboard.\n" +
			"Use --file to transcribe an existing audio file and exit.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(f.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.file, "file", "", "Transcribe this audio file and exit (relative names resolve under the downloads dir)")
	cmd.Flags().StringVar(&f.model, "model", "", "Backend-specific model (whisper-1, or a whisper.cpp model such as medium, small.en, large-v3)")
	cmd.Flags().StringVar(&f.backend, "backend", "", "Transcription backend: api or local")
	cmd.Flags().StringVar(&f.configPath, "config", "", "Config file path")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))
}

func loadConfig(f flags) (*config.Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	path := f.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	created, err := config.Init(path)
	if err != nil {
		slog.Warn("write default config", "path", path, "error", err)
	} else if created {
		slog.Info("wrote default config", "path", path)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	slog.Debug("config loaded", "path", cfg.Path())

	if f.backend != "" && f.backend != cfg.Backend {
		// Per-backend defaults follow the override.
		cfg.Backend = f.backend
		cfg.Model = ""
		cfg.SampleRate = 0
		cfg.MaxRecordSeconds = 0
		cfg.PlaySound = nil
		cfg.ApplyDefaults()
	}
	if f.model != "" {
		cfg.Model = f.model
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LogLevel == "debug" && !f.verbose {
		setupLogger(true)
	}
	return cfg, nil
}

func run(ctx context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	slog.Info("starting whisperkey", "version", version, "backend", cfg.Backend, "model", cfg.Model)

	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	backend, err := registry.Select(cfg.Backend)
	if err != nil {
		return err
	}
	if err := backend.Check(); err != nil {
		return fmt.Errorf("%s backend unavailable: %w", backend.Name(), err)
	}

	svc := app.New(app.Options{
		Recorder: recorder.New(recorder.Config{
			Source:      audiocapture.NewPortAudio(),
			Format:      cfg.Format(),
			OutputPath:  cfg.OutputPath,
			MaxDuration: cfg.MaxDuration(),
		}),
		Backend:   backend,
		Model:     cfg.Model,
		Clipboard: &clipboard.System{},
		Notifier:  notify.New(cfg.SoundEnabled(), cfg.Notifications),
		Cache:     openCache(cfg),
	})
	defer svc.Shutdown()

	if f.file != "" {
		path := cfg.ResolvePath(f.file)
		if _, err := svc.ProcessFile(ctx, path); err != nil {
			return fmt.Errorf("transcribe %s: %w", path, err)
		}
		return nil
	}

	return listen(ctx, cfg, svc)
}

func newRegistry(cfg *config.Config) (*stt.Registry, error) {
	registry := stt.NewRegistry()

	apiModel, localModel := "", ""
	if cfg.Backend == config.BackendLocal {
		localModel = cfg.Model
	} else {
		apiModel = cfg.Model
	}

	registry.Register(stt.NewWhisperAPI(stt.WhisperAPIConfig{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.APIURL,
		Model:         apiModel,
		CostPerMinute: cfg.CostPerMinute,
	}))

	local, err := stt.NewWhisperLocal(stt.WhisperLocalConfig{
		ModelSize: localModel,
		ModelDir:  cfg.ModelDir,
		BinPath:   cfg.WhisperBin,
	})
	if err != nil {
		if cfg.Backend == config.BackendLocal {
			return nil, fmt.Errorf("init local backend: %w", err)
		}
		slog.Warn("local backend disabled", "error", err)
	} else {
		registry.Register(local)
	}

	slog.Debug("transcription backends registered", "backends", registry.Names())
	return registry, nil
}

// openCache returns nil when caching is disabled or the store cannot be
// opened; transcription works without it.
func openCache(cfg *config.Config) *cache.Cache {
	if !cfg.Cache {
		return nil
	}
	path, err := cfg.CachePath()
	if err != nil {
		slog.Error("get cache path", "error", err)
		return nil
	}
	c, err := cache.New(path)
	if err != nil {
		slog.Error("init cache", "error", err)
		return nil
	}
	slog.Info("cache initialized", "path", path)
	return c
}

// listen runs the hotkey loop until interrupted. With the menu bar enabled
// the status indicator owns the main goroutine and the listener runs beside it.
func listen(ctx context.Context, cfg *config.Config, svc *app.Service) error {
	combo, err := hotkey.ParseCombo(cfg.Hotkey)
	if err != nil {
		return fmt.Errorf("parse hotkey: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Toggles run on their own goroutine so the listener keeps draining
	// hook events during a long transcription.
	served := make(chan struct{})
	go func() {
		defer close(served)
		svc.Serve(ctx)
	}()
	defer func() {
		stop()
		<-served
	}()

	listener := hotkey.NewListener(combo, func() {
		svc.RequestToggle()
	})

	slog.Info("press the hotkey to start or stop recording", "hotkey", cfg.Hotkey, "output", cfg.OutputPath)

	if !cfg.MenuBar {
		return listener.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listener.Run(ctx)
		stop()
	}()

	tray.Run(ctx, svc.Status, stop)
	stop()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
