package tavolo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/harunnryd/tavolo/pkg/adapters/stt"
	"github.com/harunnryd/tavolo/pkg/adapters/tts"
	"github.com/harunnryd/tavolo/pkg/call"
	"github.com/harunnryd/tavolo/pkg/configutil"
	"github.com/harunnryd/tavolo/pkg/llm"
	"github.com/harunnryd/tavolo/pkg/metrics"
	"github.com/harunnryd/tavolo/pkg/observers"
	"github.com/harunnryd/tavolo/pkg/redact"
	"github.com/harunnryd/tavolo/pkg/resilience"
	"github.com/harunnryd/tavolo/pkg/respond"
	"github.com/harunnryd/tavolo/pkg/runner"
	"github.com/harunnryd/tavolo/pkg/session"
	"github.com/harunnryd/tavolo/pkg/transports"
	twiliotransport "github.com/harunnryd/tavolo/pkg/transports/twilio"
)

type Engine struct {
	cfg       Config
	registry  *session.Registry
	transport transports.Transport
	orch      *call.Orchestrator
	providers *ProviderRegistry
	runner    *runner.LifecycleRunner
	asyncObs  *metrics.AsyncObserver
	mirror    *session.RedisMirror
	ctx       context.Context
	cancel    context.CancelFunc
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
}

func NewEngine(ctx context.Context, opts EngineOptions) (*Engine, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	SetDefaultLogger(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	slog.Info("tavolo_init",
		"environment", cfg.Environment,
		"restaurant", cfg.Restaurant.Name,
		"stt_provider", cfg.Vendors.STT.Provider,
		"tts_provider", cfg.Vendors.TTS.Provider,
		"llm_provider", cfg.Vendors.LLM.Provider,
		"transport", cfg.Transports.Provider,
	)

	var mirror session.Mirror
	rm := session.NewRedisMirror(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, slog.Default())
	if rm != nil {
		mirror = rm
	}
	registry := session.NewRegistry(mirror)

	if !strings.EqualFold(strings.TrimSpace(cfg.Transports.Provider), "twilio") {
		return nil, fmt.Errorf("unsupported transport provider: %s", cfg.Transports.Provider)
	}
	var twCfg twiliotransport.Config
	if err := configutil.DecodeSettings(cfg.Transports.Settings, &twCfg); err != nil {
		return nil, fmt.Errorf("transports.settings: %w", err)
	}
	transport := twiliotransport.New(twCfg, nil, registry)

	logObs := observers.NewLoggerObserver(slog.Default())
	latencyObs := observers.NewLatencyObserver(slog.Default())
	obsList := []metrics.Observer{logObs, latencyObs, transport.DashboardObserver()}
	var timelineObs *observers.TimelineObserver
	var usageObs *observers.UsageObserver
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		if cfg.Observability.RetentionDays > 0 {
			_, _ = observers.PurgeArtifacts(dir, time.Duration(cfg.Observability.RetentionDays)*24*time.Hour)
		}
		timelineObs = observers.NewTimelineObserver(dir)
		usageObs = observers.NewUsageObserver(dir)
		obsList = append(obsList, timelineObs, usageObs)
	}
	var obs metrics.Observer = observers.NewMultiObserver(obsList...)
	if cfg.Observability.SampleRate > 0 && cfg.Observability.SampleRate < 1 {
		obs = metrics.NewSamplingObserver(obs, cfg.Observability.SampleRate)
	}
	asyncObs := metrics.NewAsyncObserver(obs, 2048)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
		RegisterDefaults(providers)
	}

	transcriber, synthesizer, model, err := buildVendors(ctx, cfg, providers)
	if err != nil {
		return nil, err
	}
	if model != nil {
		retry := llm.NewRetryGenerator(model, llm.RetryConfig{MaxAttempts: 2})
		breaker := llm.NewCircuitBreakerGenerator(retry, resilience.NewCircuitBreaker(3, 30*time.Second))
		breaker.SetObserver(asyncObs)
		model = breaker
	}

	responder := respond.New(respond.Config{
		Facts:        cfg.Restaurant,
		Model:        model,
		ModelTimeout: time.Duration(cfg.Call.ModelTimeoutMS) * time.Millisecond,
		Observer:     asyncObs,
	})

	if strings.TrimSpace(cfg.Call.TransferTo) == "" {
		slog.Warn("transfer_number_missing", "detail", "escalated calls will hang up instead of dialing staff")
	}
	orch := call.NewOrchestrator(call.Config{
		ConfidenceThreshold: cfg.Call.ConfidenceThreshold,
		RestaurantPhone:     cfg.Call.TransferTo,
		TranscribeTimeout:   time.Duration(cfg.Call.TranscribeTimeoutMS) * time.Millisecond,
		SynthesizeTimeout:   time.Duration(cfg.Call.SynthesizeTimeoutMS) * time.Millisecond,
		Registry:            registry,
		Responder:           responder,
		Transcriber:         transcriber,
		Synthesizer:         synthesizer,
		Publisher:           transport.AudioPublisher(),
		Observer:            asyncObs,
	})
	transport.SetHandler(orch)
	transport.ConfigStatus = func() map[string]any {
		return map[string]any{
			"restaurant":  cfg.Restaurant.Name,
			"stt":         providerStatus(cfg.Vendors.STT.Provider, transcriber != nil),
			"tts":         providerStatus(cfg.Vendors.TTS.Provider, synthesizer != nil),
			"llm":         providerStatus(cfg.Vendors.LLM.Provider, model != nil),
			"redis":       rm != nil,
			"redact_pii":  redact.Enabled(),
			"transfer_to": redact.Text(cfg.Call.TransferTo),
		}
	}

	hooks := runner.Hooks{
		OnStart: func() {
			fields := []any{"message", "Tavolo Engine Ready"}
			for k, v := range transport.ReadyFields() {
				fields = append(fields, k, v)
			}
			slog.Info("engine_ready", fields...)
		},
		OnStop: func() {
			if asyncObs != nil {
				asyncObs.Close()
			}
			if timelineObs != nil {
				_ = timelineObs.Close()
			}
			if usageObs != nil {
				_ = usageObs.Close()
			}
			if rm != nil {
				_ = rm.Close()
			}
			slog.Info("shutdown", "goroutines", runtime.NumGoroutine(), "active_calls", registry.Count())
		},
	}

	drainer := runner.DrainerFunc(func() error {
		_ = transport.Stop()
		registry.SetDraining(true)
		drainCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		_ = registry.WaitForEmpty(drainCtx, 200*time.Millisecond)
		orch.Close()
		registry.CloseAll()
		return nil
	})

	lr := runner.NewLifecycleRunner(drainer, hooks, 30*time.Second)
	engineCtx, cancel := context.WithCancel(ctx)

	return &Engine{
		cfg:       cfg,
		registry:  registry,
		transport: transport,
		orch:      orch,
		providers: providers,
		runner:    lr,
		asyncObs:  asyncObs,
		mirror:    rm,
		ctx:       engineCtx,
		cancel:    cancel,
	}, nil
}

// buildVendors constructs the configured provider adapters. A vendor with
// no provider name is simply absent: the call flow degrades to Twilio
// speech recognition, text-only TwiML, and scripted replies.
func buildVendors(ctx context.Context, cfg Config, providers *ProviderRegistry) (stt.Transcriber, tts.Synthesizer, llm.TextGenerator, error) {
	var transcriber stt.Transcriber
	var synthesizer tts.Synthesizer
	var model llm.TextGenerator
	var err error

	if strings.TrimSpace(cfg.Vendors.STT.Provider) != "" {
		transcriber, err = providers.BuildSTT(cfg.Vendors.STT.Provider, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if strings.TrimSpace(cfg.Vendors.TTS.Provider) != "" {
		synthesizer, err = providers.BuildTTS(cfg.Vendors.TTS.Provider, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if strings.TrimSpace(cfg.Vendors.LLM.Provider) != "" {
		model, err = providers.BuildLLM(ctx, cfg.Vendors.LLM.Provider, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return transcriber, synthesizer, model, nil
}

func providerStatus(name string, wired bool) map[string]any {
	return map[string]any{"provider": name, "wired": wired}
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = e.ctx
	}
	if err := e.transport.Start(ctx); err != nil {
		return err
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.runner.Stop()
}

func (e *Engine) Registry() *session.Registry { return e.registry }

func (e *Engine) Transport() transports.Transport { return e.transport }

func (e *Engine) Orchestrator() *call.Orchestrator { return e.orch }

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Health() error {
	if e.transport == nil {
		return fmt.Errorf("missing transport")
	}
	return nil
}

func SetDefaultLogger(level, format string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(strings.TrimSpace(format)) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
