// Command intervox runs an AI mock-interview session from the terminal:
// it connects to the interview backend, voices the interviewer's questions,
// records and filters the candidate's answers, and persists a session
// summary on completion.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/prepwell/intervox/internal/backend"
	"github.com/prepwell/intervox/internal/capture"
	"github.com/prepwell/intervox/internal/config"
	"github.com/prepwell/intervox/internal/gateway"
	"github.com/prepwell/intervox/internal/health"
	"github.com/prepwell/intervox/internal/observe"
	"github.com/prepwell/intervox/internal/session"
	"github.com/prepwell/intervox/internal/store"
	"github.com/prepwell/intervox/internal/transcript"
	"github.com/prepwell/intervox/internal/voice"
	"github.com/prepwell/intervox/pkg/audio"
	"github.com/prepwell/intervox/pkg/audio/wavfile"
	"github.com/prepwell/intervox/pkg/speech"
	openaispeech "github.com/prepwell/intervox/pkg/speech/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showStats := flag.Bool("stats", false, "print the interview history overview and exit")
	exportFormat := flag.String("export", "", "export interview history in the given format (csv|json) and exit")
	clearStore := flag.Bool("clear", false, "clear locally stored session records and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "intervox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "intervox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Client.LogLevel)
	slog.SetDefault(logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rest := backend.New(cfg.Backend.BaseURL)

	// ── One-shot modes ────────────────────────────────────────────────────────
	if *clearStore {
		if cfg.Store.Dir == "" {
			fmt.Fprintln(os.Stderr, "intervox: store.dir is not configured; nothing to clear")
			return 1
		}
		st, err := store.New(cfg.Store.Dir)
		if err != nil {
			slog.Error("failed to open session store", "err", err)
			return 1
		}
		if err := st.Clear(); err != nil {
			slog.Error("failed to clear session store", "err", err)
			return 1
		}
		slog.Info("session records cleared", "dir", cfg.Store.Dir)
		return 0
	}
	if *showStats {
		return printStats(ctx, rest)
	}
	if *exportFormat != "" {
		if err := rest.Export(ctx, backend.ExportFormat(*exportFormat), os.Stdout); err != nil {
			slog.Error("export failed", "err", err)
			return 1
		}
		return 0
	}

	slog.Info("intervox starting",
		"config", *configPath,
		"mode", cfg.Interview.Mode,
		"backend", cfg.Backend.WebSocketURL,
	)

	// ── Metrics provider ──────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Resume upload (resume mode only) ──────────────────────────────────────
	resumeID := ""
	if cfg.Interview.Mode == config.ModeResume {
		resumeID, err = rest.UploadResume(ctx, cfg.Interview.ResumeFile)
		if err != nil {
			slog.Error("resume upload failed — interview cannot start", "err", err)
			return 1
		}
		slog.Info("resume uploaded", "resume_id", resumeID)
	}

	// ── Session collaborators ─────────────────────────────────────────────────
	gw := gateway.New(gateway.Config{
		URL:         cfg.Backend.WebSocketURL,
		SettleDelay: cfg.Backend.SettleDelay,
		Backoff:     cfg.Backend.ReconnectBackoff,
		MaxBackoff:  cfg.Backend.ReconnectMaxBackoff,
		MaxAttempts: cfg.Backend.ReconnectMaxAttempts,
	})

	source := buildSource(cfg.Capture)
	transcribeURL := cfg.Backend.TranscribeURL
	if transcribeURL == "" {
		transcribeURL = cfg.Backend.BaseURL + "/transcribe_audio"
	}
	var captureOpts []capture.Option
	if cfg.Capture.ClipDuration > 0 {
		captureOpts = append(captureOpts, capture.WithClipDuration(cfg.Capture.ClipDuration))
	}
	capturer := capture.New(source, transcribeURL, captureOpts...)

	synth, err := buildSynthesizer(cfg.Speech)
	if err != nil {
		slog.Error("failed to build speech synthesizer", "err", err)
		return 1
	}

	var filterOpts []transcript.Option
	if cfg.Filter.EchoThreshold > 0 {
		filterOpts = append(filterOpts, transcript.WithEchoThreshold(cfg.Filter.EchoThreshold))
	}
	if cfg.Filter.OverlapThreshold > 0 {
		filterOpts = append(filterOpts, transcript.WithOverlapThreshold(cfg.Filter.OverlapThreshold))
	}
	filter := transcript.NewFilter(filterOpts...)

	runtimeOpts := []session.RuntimeOption{
		session.WithObserver(observe.NewSessionObserver(metrics)),
	}
	if cfg.Store.Dir != "" {
		st, err := store.New(cfg.Store.Dir)
		if err != nil {
			slog.Error("failed to open session store", "err", err)
			return 1
		}
		runtimeOpts = append(runtimeOpts, session.WithSummaryStore(st))
	}

	var rt *session.Runtime
	speaker := voice.New(synth, func() { rt.SpeechIdle() })
	rt = session.NewRuntime(
		session.Config{
			Mode:         session.Mode(cfg.Interview.Mode),
			ResumeID:     resumeID,
			Topics:       cfg.Interview.Topics,
			Language:     cfg.Interview.Language,
			HintInterval: cfg.Interview.HintInterval,
		},
		gw, capturer, speaker, filter,
		runtimeOpts...,
	)

	// ── Run session + diagnostics listener ────────────────────────────────────
	eg, egCtx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.Client.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		health.New(rt, health.SessionCheck(rt)).Register(mux)
		srv = &http.Server{Addr: cfg.Client.ListenAddr, Handler: mux}

		eg.Go(func() error {
			slog.Info("diagnostics listener started", "addr", cfg.Client.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	eg.Go(func() error {
		final, err := rt.Run(egCtx)
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
		if err != nil {
			return err
		}
		printOutcome(final)
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("session error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildSource selects the configured audio input, defaulting to silence
// when no device is configured so the session still runs end to end.
func buildSource(cfg config.CaptureConfig) audio.Source {
	switch cfg.Source {
	case "wavfile":
		return wavfile.New(cfg.WavFile)
	default:
		slog.Warn("no capture source configured; recording windows will hear silence")
		return audio.Silence()
	}
}

// buildSynthesizer selects the configured voice output. A nil synthesizer
// puts the voice controller in degraded text-only mode.
func buildSynthesizer(cfg config.SpeechConfig) (speech.Synthesizer, error) {
	switch cfg.Provider {
	case "openai":
		var opts []openaispeech.Option
		if cfg.Model != "" {
			opts = append(opts, openaispeech.WithModel(cfg.Model))
		}
		if cfg.Voice != "" {
			opts = append(opts, openaispeech.WithVoice(cfg.Voice))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openaispeech.WithBaseURL(cfg.BaseURL))
		}
		return openaispeech.New(cfg.APIKey, opts...)
	default:
		return nil, nil
	}
}

// printStats renders the one-shot analytics overview.
func printStats(ctx context.Context, rest *backend.Client) int {
	stats, _ := rest.Stats(ctx)
	insights, _ := rest.Insights(ctx)

	fmt.Printf("Interviews completed : %d\n", stats.TotalInterviews)
	fmt.Printf("Average score        : %.1f\n", stats.AverageScore)
	fmt.Printf("Best score           : %.1f\n", stats.BestScore)
	fmt.Printf("Practice hours       : %.1f\n", stats.TotalHours)
	if len(insights) > 0 {
		fmt.Println("\nInsights:")
		for _, in := range insights {
			fmt.Printf("  [%s] %s\n", in.Category, in.Text)
		}
	}
	return 0
}

// printOutcome summarises a completed session on stdout.
func printOutcome(final session.State) {
	if final.Phase != session.PhaseCompleted {
		return
	}
	fmt.Println("\nInterview complete.")
	if final.FinalScore > 0 {
		fmt.Printf("Score: %.1f\n", final.FinalScore)
	}
	if final.DownloadURL != "" {
		fmt.Printf("Full results: %s\n", final.DownloadURL)
	}
	questions := 0
	for _, e := range final.Log {
		if e.Kind == session.EntryQuestion {
			questions++
		}
	}
	fmt.Printf("Questions answered: %d\n", questions)
}

// newLogger builds the process-wide text logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
