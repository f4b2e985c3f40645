// cj-assistant - Classical Japanese study assistant over a local LLM.
//
// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/davidbennett1979/classical-japanese-assistant/internal/assistant"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/classifier"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/cli"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/config"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/ollama"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/prompt"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/retrieval"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/session"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/stream"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/telemetry"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdAsk:
		runStream(args, func(a *app, ctx context.Context, sessionID string, override *classifier.Route) <-chan stream.Event {
			return a.assistant.StreamAnswer(ctx, args.Query, sessionID, override)
		})
	case cli.CmdExplain:
		runStream(args, func(a *app, ctx context.Context, sessionID string, _ *classifier.Route) <-chan stream.Event {
			return a.assistant.ExplainGrammar(ctx, args.Query, sessionID)
		})
	case cli.CmdTranslate:
		runStream(args, func(a *app, ctx context.Context, sessionID string, _ *classifier.Route) <-chan stream.Event {
			return a.assistant.TranslatePassage(ctx, args.Query, sessionID)
		})
	case cli.CmdClassify:
		runClassify(args)
	case cli.CmdStats:
		runStats(args)
	case cli.CmdModels:
		runModels(args)
	case cli.CmdVersion:
		cli.PrintVersion()
	default:
		cli.PrintUsage()
	}
}

// =============================================================================
// WIRING
// =============================================================================

// app holds the wired application components.
type app struct {
	cfg       *config.Config
	assistant *assistant.Assistant
	retriever retrieval.Retriever
	telemetry *telemetry.Store
	client    *ollama.Client
	watcher   *config.Watcher
	logger    *zap.Logger
}

func buildLogger(args cli.Args) *zap.Logger {
	level := zapcore.WarnLevel
	if args.Verbose {
		level = zapcore.DebugLevel
	}
	if args.Quiet {
		level = zapcore.ErrorLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}

func loadConfig(args cli.Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		return config.LoadFromPath(args.ConfigPath)
	}
	return config.Load()
}

// buildApp wires config, backends, and the assistant together.
func buildApp(args cli.Args) (*app, error) {
	logger := buildLogger(args)

	cfg, err := loadConfig(args)
	if err != nil {
		return nil, err
	}
	model := cfg.Ollama.Model
	if args.Model != "" {
		model = args.Model
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		DefaultModel: model,
	})

	retriever := retrieval.NewChromaRetriever(retrieval.ChromaConfig{
		BaseURL:        cfg.Chroma.URL,
		Tenant:         cfg.Chroma.Tenant,
		Database:       cfg.Chroma.Database,
		Collection:     cfg.Chroma.Collection,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
	}, client, logger)

	clf := classifier.NewWithThresholds(classifier.Thresholds{
		HitDensity: cfg.Classifier.HitDensityThreshold,
		MinSources: cfg.Classifier.MinSources,
		Distance:   cfg.Classifier.DistanceThreshold,
	}, logger)

	composer := prompt.NewComposer()
	if cfg.Prompts.RAGTemplate != "" {
		if err := composer.LoadRAGTemplate(cfg.Prompts.RAGTemplate); err != nil {
			logger.Warn("falling back to built-in prompt template", zap.Error(err))
		}
	}

	var store *telemetry.Store
	if cfg.Telemetry.Enabled {
		store, err = telemetry.Open(cfg.TelemetryPath())
		if err != nil {
			logger.Warn("telemetry disabled", zap.Error(err))
			store = nil
		}
	}

	sessions := session.NewRegistry(time.Duration(cfg.Session.TTLMinutes)*time.Minute, logger)

	a := &app{
		cfg: cfg,
		assistant: assistant.New(assistant.Options{
			Model:           model,
			ReasoningModels: cfg.Ollama.ReasoningModels,
			TopK:            cfg.Chroma.TopK,
			Generator:       client,
			Retriever:       retriever,
			Classifier:      clf,
			Composer:        composer,
			Sessions:        sessions,
			Telemetry:       store,
			Logger:          logger,
		}),
		retriever: retriever,
		telemetry: store,
		client:    client,
		logger:    logger,
	}
	a.watchThresholds(args)
	return a, nil
}

// watchThresholds hot-applies [classifier] threshold edits while a
// generation is running.
func (a *app) watchThresholds(args cli.Args) {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	w, err := config.NewWatcher(path, func(cfg *config.Config) {
		a.assistant.Classifier().SetThresholds(classifier.Thresholds{
			HitDensity: cfg.Classifier.HitDensityThreshold,
			MinSources: cfg.Classifier.MinSources,
			Distance:   cfg.Classifier.DistanceThreshold,
		})
	}, a.logger)
	if err != nil {
		a.logger.Warn("config watch unavailable", zap.Error(err))
		return
	}
	if err := w.Watch(); err != nil {
		a.logger.Warn("config watch unavailable", zap.Error(err))
		return
	}
	a.watcher = w
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.telemetry != nil {
		a.telemetry.Close()
	}
	a.logger.Sync()
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

type streamFunc func(a *app, ctx context.Context, sessionID string, override *classifier.Route) <-chan stream.Event

// resolveSession returns a concrete session id for this invocation,
// minting one for anonymous runs. The stop signal handler and the
// stream must share the same id or the handler stops nothing.
func resolveSession(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func runStream(args cli.Args, start streamFunc) {
	if args.Query == "" {
		fmt.Fprintln(os.Stderr, "Error: no question given")
		cli.PrintUsage()
		os.Exit(2)
	}

	var override *classifier.Route
	if args.Route != "" {
		r, err := classifier.ParseRoute(args.Route)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		override = &r
	}

	a, err := buildApp(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	sessionID := resolveSession(args.Session)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First interrupt stops generation cooperatively so the partial
	// answer still arrives with its stop marker; a second one aborts.
	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	go func() {
		<-interrupts
		a.assistant.StopGeneration(sessionID)
		<-interrupts
		cancel()
	}()

	if err := printEvents(start(a, ctx, sessionID, override), args.Quiet); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printEvents renders the event stream to the terminal. Answer text
// goes to stdout; everything else to stderr so output can be piped.
func printEvents(events <-chan stream.Event, quiet bool) error {
	inThinking := false
	for ev := range events {
		switch ev.Type {
		case stream.EventModelInfo:
			if !quiet {
				fmt.Fprintf(os.Stderr, "model=%s route=%s confidence=%.2f\n",
					ev.Model, ev.Route, ev.Confidence)
				if len(ev.Sources) > 0 {
					fmt.Fprintf(os.Stderr, "sources: %v\n", ev.Sources)
				}
			}
		case stream.EventThinking:
			if !quiet {
				if !inThinking {
					fmt.Fprint(os.Stderr, "\n[thinking] ")
					inThinking = true
				}
				fmt.Fprint(os.Stderr, ev.Token)
			}
		case stream.EventAnswer:
			if inThinking {
				fmt.Fprintln(os.Stderr)
				inThinking = false
			}
			fmt.Print(ev.Token)
		case stream.EventFinal:
			if inThinking {
				fmt.Fprintln(os.Stderr)
			}
			fmt.Println()
		case stream.EventError:
			return fmt.Errorf("%s", ev.Message)
		}
	}
	return nil
}

func runClassify(args cli.Args) {
	if args.Query == "" {
		fmt.Fprintln(os.Stderr, "Error: no question given")
		os.Exit(2)
	}
	a, err := buildApp(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var passages []retrieval.Passage
	if p, err := a.retriever.Search(ctx, args.Query, a.cfg.Chroma.TopK); err == nil {
		passages = p
	} else {
		a.logger.Warn("classifying without retrieval", zap.Error(err))
	}

	result := a.assistant.Classify(args.Query, passages)
	fmt.Printf("route:       %s\n", result.Route)
	fmt.Printf("confidence:  %.2f\n", result.Confidence)
	fmt.Printf("explanation: %s\n", result.Explanation)
	fmt.Printf("metrics:     density=%.2f avg_distance=%.2f sources=%d results=%d\n",
		result.Metrics.HitDensity, result.Metrics.AvgDistance,
		result.Metrics.SourceDiversity, result.Metrics.ResultCount)
	for category, matches := range result.KeywordSignals {
		if len(matches) > 0 {
			fmt.Printf("signals[%s]: %v\n", category, matches)
		}
	}
}

func runStats(args cli.Args) {
	a, err := buildApp(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := a.assistant.RouteStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(stats.Format())
	if stats.OverrideCount > 0 {
		fmt.Printf("\nManual overrides: %d\n", stats.OverrideCount)
	}
}

func runModels(args cli.Args) {
	a, err := buildApp(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := a.client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(models) == 0 {
		fmt.Println("No models installed. Pull one with: ollama pull qwen2.5:14b")
		return
	}
	for _, m := range models {
		marker := " "
		if m.Name == a.cfg.Ollama.Model {
			marker = "*"
		}
		reasoning := ""
		if ollama.IsReasoningModel(m.Name, a.cfg.Ollama.ReasoningModels) {
			reasoning = " (reasoning)"
		}
		fmt.Printf("%s %-40s %6.1f GB  timeout %s%s\n",
			marker, m.Name, float64(m.Size)/(1024*1024*1024),
			ollama.TimeoutForModel(m.Name), reasoning)
	}
}
