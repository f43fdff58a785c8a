package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avstack/gst-coquitts/internal/bus"
	"github.com/avstack/gst-coquitts/internal/config"
	"github.com/avstack/gst-coquitts/internal/element"
	"github.com/avstack/gst-coquitts/internal/natsserver"
	"github.com/avstack/gst-coquitts/internal/pipeline"
	"github.com/avstack/gst-coquitts/internal/synth"
	"github.com/avstack/gst-coquitts/internal/synthlog"
)

// Runtime wires the transform element, its bus transport and the
// observability endpoints into one process.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	history, err := synthlog.Open(ctx, r.cfg.SynthLog, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open synth log: %w", err)
	}
	defer history.Close()

	backend, err := buildBackend(r.cfg.Backend)
	if err != nil {
		return fmt.Errorf("failed to build backend: %w", err)
	}

	store := element.NewStoreWith(synth.Settings{
		Model:           r.cfg.Element.Model,
		Speaker:         r.cfg.Element.Speaker,
		Language:        r.cfg.Element.Language,
		VoiceRef:        r.cfg.Element.VoiceReference,
		UseAcceleration: r.cfg.Element.UseAcceleration,
	})
	engine := element.New(store, synth.NewSession(backend, r.logger), r.logger)

	svc := pipeline.NewService(ctx, busClient, engine, history, r.logger)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline service: %w", err)
	}
	defer svc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		r.handleReady(w, req, svc, busClient)
	})
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("backend_mode", r.cfg.Backend.Mode),
		slog.String("model", r.cfg.Element.Model))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func buildBackend(cfg config.BackendConfig) (synth.Backend, error) {
	switch cfg.Mode {
	case "mock":
		m := synth.NewMockBackend(cfg.MockRate)
		m.MultiLingualModel = cfg.MockMultiLingual
		m.MultiSpeakerModel = cfg.MockMultiSpeaker
		return m, nil
	case "exec":
		return synth.NewExecBackend(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Mode)
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request, svc *pipeline.Service, busClient *bus.Client) {
	if r.ready.Load() && busClient.Healthy() && svc.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
