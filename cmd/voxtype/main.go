package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/voxtype/voxtype/internal/audio"
	"github.com/voxtype/voxtype/internal/backend"
	"github.com/voxtype/voxtype/internal/backend/elevenlabs"
	"github.com/voxtype/voxtype/internal/backend/groq"
	"github.com/voxtype/voxtype/internal/backend/ollama"
	"github.com/voxtype/voxtype/internal/backend/openai"
	"github.com/voxtype/voxtype/internal/config"
	"github.com/voxtype/voxtype/internal/control"
	"github.com/voxtype/voxtype/internal/deliver"
	"github.com/voxtype/voxtype/internal/dispatch"
	"github.com/voxtype/voxtype/internal/engine"
	"github.com/voxtype/voxtype/internal/hotkey"
	"github.com/voxtype/voxtype/internal/notify"
	"github.com/voxtype/voxtype/internal/refine"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/voxtype/config.yaml)")
	writeConfig := flag.Bool("write-config", false, "write the default config file and exit")
	flag.Parse()

	// .env is a convenience for API keys; absence is fine.
	_ = godotenv.Load()

	if *writeConfig {
		path, err := config.WriteDefault()
		if err != nil {
			fmt.Fprintf(os.Stderr, "write config: %v\n", err)
			os.Exit(1)
		}
		if path == "" {
			fmt.Println("config file already exists at", config.DefaultConfigPath())
		} else {
			fmt.Println("wrote", path)
		}
		return
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = logger.Level(config.ParseLogLevel(cfg.LogLevel))

	printBanner(cfg)

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			logger.Warn().Err(err).Msg("sentry init failed")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	fatal := func(err error, msg string) {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		logger.Fatal().Err(err).Msg(msg)
	}

	transcribers := backend.NewRegistry[backend.Transcriber]()
	generators := backend.NewRegistry[backend.Generator]()

	oa := openai.New()
	for _, err := range []error{
		transcribers.Register(oa),
		transcribers.Register(groq.New()),
		transcribers.Register(elevenlabs.New()),
		generators.Register(oa),
		generators.Register(ollama.New(
			ollama.WithBaseURL(cfg.Ollama.URL),
			ollama.WithModel(cfg.Ollama.Model),
		)),
	} {
		if err != nil {
			fatal(err, "registering backends")
		}
	}

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		fatal(err, "initializing audio recorder")
	}
	logger.Info().Msg("audio recorder ready")

	sink, err := deliver.New(cfg.Deliver.Method)
	if err != nil {
		recorder.Close()
		fatal(err, "initializing delivery")
	}

	runner := dispatch.New(dispatch.Config{
		MaxConcurrent: cfg.Dispatch.MaxConcurrent,
		MaxAttempts:   cfg.Dispatch.MaxAttempts,
	}, logger.With().Str("component", "dispatch").Logger())

	refiner := refine.New(generators, config.APIKeyFor,
		logger.With().Str("component", "refine").Logger())

	// min_duration_ms: 0 turns the short-recording filter off.
	minDuration := cfg.MinDuration()
	if minDuration == 0 {
		minDuration = -1
	}

	eng, err := engine.New(engine.Config{
		Backend:       cfg.Backend,
		Language:      cfg.Language,
		SampleRate:    int(cfg.Audio.SampleRate),
		Channels:      int(cfg.Audio.Channels),
		MaxChunkBytes: cfg.MaxChunkBytes(),
		OverlapBytes:  cfg.OverlapBytes(),
		MinDuration:   minDuration,
	}, engine.Deps{
		Source:   recorder,
		Encoder:  audio.WAVEncoder{},
		Backends: transcribers,
		Runner:   runner,
		Polisher: refiner,
		Sink:     sink,
		Preset:   presetFunc(cfg),
		Key:      config.APIKeyFor,
	}, logger)
	if err != nil {
		recorder.Close()
		fatal(err, "wiring engine")
	}

	notifier := notify.NewDesktop(logger)
	eng.OnState(func(s engine.State) {
		if s == engine.StateRecording {
			notifier.RecordingStarted()
		}
	})

	var ctl *control.Server
	if cfg.Control.Enabled {
		ctl = control.New(eng, control.Backends{
			Transcribers: transcribers.Names(),
			Generators:   generators.Names(),
		}, logger)
		go func() {
			if err := ctl.Listen(cfg.Control.Addr); err != nil {
				logger.Error().Err(err).Msg("control server stopped")
			}
		}()
		logger.Info().Str("addr", cfg.Control.Addr).Msg("control API listening")
	}

	listener := hotkey.NewListener(cfg.Hotkey.Keys, cfg.Hotkey.Mode)
	go listener.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().
		Str("hotkey", strings.Join(cfg.Hotkey.Keys, "+")).
		Str("mode", cfg.Hotkey.Mode).
		Str("backend", cfg.Backend).
		Msg("ready")

	ctx := context.Background()
	events := listener.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				logger.Info().Msg("hotkey listener stopped")
				shutdown(ctl, recorder, logger)
				return
			}
			handleEvent(ctx, ev, eng, notifier, logger)

		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			listener.Stop()
			shutdown(ctl, recorder, logger)
			// Exit directly to avoid gohook's C cleanup crash. The OS
			// reclaims the event hook on process exit.
			os.Exit(0)
		}
	}
}

// handleEvent maps one hotkey event onto the engine. Stops and toggles run
// on their own goroutine because transcription blocks on the network; the
// engine rejects whatever arrives while one is in flight.
func handleEvent(ctx context.Context, ev hotkey.Event, eng *engine.Engine, notifier notify.Notifier, logger zerolog.Logger) {
	switch ev.Type {
	case hotkey.EventStart:
		report(nil, eng.Start(), notifier, logger)
	case hotkey.EventStop:
		go func() {
			out, err := eng.Stop(ctx)
			report(out, err, notifier, logger)
		}()
	case hotkey.EventToggle:
		go func() {
			out, err := eng.Toggle(ctx)
			report(out, err, notifier, logger)
		}()
	}
}

// report surfaces one engine round's result to the user.
func report(out *engine.Outcome, err error, notifier notify.Notifier, logger zerolog.Logger) {
	if err != nil {
		var serr *engine.StateError
		if errors.As(err, &serr) {
			// Benign race: a hotkey landed while the engine was busy.
			logger.Debug().Str("op", serr.Op).Str("state", serr.State.String()).Msg("request ignored")
			return
		}

		logger.Error().Err(err).Msg("recording round failed")
		sentry.CaptureException(err)

		if out != nil {
			// Transcription worked; only delivery failed. Print the text so
			// it is not lost.
			fmt.Println(out.Text)
			notifier.Failure("delivery failed, transcript printed to terminal")
			return
		}
		notifier.Failure(err.Error())
		return
	}

	if out == nil {
		// Discarded recording (too short, or silence).
		return
	}
	if out.Warning != "" {
		notifier.Warning(out.Warning)
	}
	notifier.TranscriptDelivered(len(out.Text))
}

func shutdown(ctl *control.Server, recorder *audio.Recorder, logger zerolog.Logger) {
	if ctl != nil {
		if err := ctl.Shutdown(); err != nil {
			logger.Warn().Err(err).Msg("control server shutdown")
		}
	}
	if err := recorder.Close(); err != nil {
		logger.Warn().Err(err).Msg("closing recorder")
	}
}

// presetFunc resolves the active refinement preset on every stop so a nil
// preset (refinement disabled) costs nothing.
func presetFunc(cfg *config.Config) engine.PresetFunc {
	return func() *refine.Preset {
		p := cfg.ActivePreset()
		if p == nil {
			return nil
		}
		return &refine.Preset{Name: p.Name, Instruction: p.Instruction, Backend: p.Backend}
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string, logger zerolog.Logger) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		logger.Info().Str("path", defaultPath).Msg("config loaded")
		return cfg, nil
	}

	logger.Info().Msg("no config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== voxtype ===")
	fmt.Printf("  Backend:  %s\n", cfg.Backend)
	fmt.Printf("  Hotkey:   %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	fmt.Printf("  Audio:    %dHz, %dch\n", cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Printf("  Deliver:  %s\n", cfg.Deliver.Method)
	if p := cfg.ActivePreset(); p != nil {
		fmt.Printf("  Refine:   %s (via %s)\n", p.Name, p.Backend)
	}
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("===============")
}
