package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avstack/gst-coquitts/internal/audio"
	"github.com/avstack/gst-coquitts/internal/bus"
	"github.com/avstack/gst-coquitts/internal/caps"
	"github.com/avstack/gst-coquitts/internal/element"
	"github.com/avstack/gst-coquitts/internal/protocol"
	"github.com/avstack/gst-coquitts/internal/synth"
	"github.com/avstack/gst-coquitts/internal/synthlog"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Service drives the transform engine from the bus: it receives text
// buffers, processes them one at a time and publishes the resulting audio
// buffers. It is the in-process stand-in for the pipeline host.
type Service struct {
	bus     *bus.Client
	engine  *element.Engine
	history *synthlog.Store
	logger  *slog.Logger

	sub    *nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	fatal  atomic.Bool

	meter        metric.Meter
	synthesized  metric.Int64Counter
	dropped      metric.Int64Counter
	flowErrors   metric.Int64Counter
	synthSeconds metric.Float64Histogram
}

func NewService(parent context.Context, busClient *bus.Client, engine *element.Engine, history *synthlog.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		bus:     busClient,
		engine:  engine,
		history: history,
		logger:  log.With(slog.String("component", "pipeline-service")),
		ctx:     ctx,
		cancel:  cancel,
		meter:   otel.Meter("github.com/avstack/gst-coquitts/pipeline"),
	}
	if err := s.initMetrics(); err != nil {
		s.logger.Warn("failed to initialize metrics", slogError(err))
	}
	return s
}

func (s *Service) initMetrics() error {
	var err error
	if s.synthesized, err = s.meter.Int64Counter("coquitts.buffers.synthesized"); err != nil {
		return err
	}
	if s.dropped, err = s.meter.Int64Counter("coquitts.buffers.dropped"); err != nil {
		return err
	}
	if s.flowErrors, err = s.meter.Int64Counter("coquitts.flow.errors"); err != nil {
		return err
	}
	s.synthSeconds, err = s.meter.Float64Histogram("coquitts.synthesis.duration.seconds")
	return err
}

func (s *Service) Start() error {
	s.probeVoiceReference()

	// The text side is always negotiable without backend access.
	textCaps, err := s.engine.Negotiate(s.ctx, element.SideText, nil)
	if err != nil {
		return err
	}
	s.logger.Info("advertising input caps", slog.String("caps", textCaps.String()))

	sub, err := s.bus.Conn().Subscribe(protocol.SubjectTextIn, s.handleText)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

// Healthy reports false once a fatal configuration error has been observed:
// the element cannot recover for its remaining lifetime.
func (s *Service) Healthy() bool {
	return s.sub != nil && !s.fatal.Load()
}

func (s *Service) probeVoiceReference() {
	ref := s.engine.Settings().Snapshot().VoiceRef
	if ref == "" {
		return
	}
	info, err := audio.ProbeReference(ref)
	if err != nil {
		s.logger.Warn("voice reference probe failed, backend may still accept it", slogError(err))
		return
	}
	s.logger.Info("voice reference probed",
		slog.String("path", ref),
		slog.Int("sample_rate", info.SampleRate),
		slog.Int("channels", info.Channels),
		slog.String("duration", info.Duration.String()))
}

// handleText runs on the subscription's dispatcher goroutine, so units are
// processed strictly one at a time in arrival order.
func (s *Service) handleText(msg *nats.Msg) {
	var in protocol.TextBuffer
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		s.logger.Warn("failed to decode text buffer", slogError(err))
		return
	}
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}

	s.wg.Add(1)
	defer s.wg.Done()

	s.engine.Push(in.Payload)

	start := time.Now()
	buf, err := s.engine.ProcessNext(s.ctx)
	elapsed := time.Since(start)

	if err != nil {
		s.reportError(in, err, elapsed)
		return
	}
	if buf == nil {
		// Soft synthesis failure: the unit is dropped and the stream
		// continues with the next one.
		s.dropped.Add(s.ctx, 1)
		s.record(synthlog.Entry{
			SessionID: in.SessionID,
			TextBytes: len(in.Payload),
			Outcome:   synthlog.OutcomeDropped,
			ElapsedMS: elapsed.Milliseconds(),
		})
		return
	}

	rate, err := s.engine.Session().OutputSampleRate()
	if err != nil {
		s.reportError(in, err, elapsed)
		return
	}

	out := protocol.AudioBuffer{
		SessionID:  in.SessionID,
		Sequence:   in.Sequence,
		Format:     caps.FormatF32LE,
		Channels:   1,
		SampleRate: rate,
		Data:       buf.Bytes(),
		Timestamp:  time.Now().UTC(),
	}
	if err := s.publishAudio(out); err != nil {
		s.reportError(in, err, elapsed)
		return
	}

	s.synthesized.Add(s.ctx, 1)
	s.synthSeconds.Record(s.ctx, elapsed.Seconds())
	s.record(synthlog.Entry{
		SessionID:  in.SessionID,
		TextBytes:  len(in.Payload),
		Samples:    buf.Len() / 4,
		SampleRate: rate,
		Outcome:    synthlog.OutcomeSynthesized,
		ElapsedMS:  elapsed.Milliseconds(),
	})
}

func (s *Service) publishAudio(out protocol.AudioBuffer) error {
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return s.bus.Conn().Publish(protocol.SubjectAudioOut, data)
}

// reportError surfaces flow and fatal errors to the host. Fatal
// configuration errors additionally mark the service unhealthy, since every
// later unit is guaranteed to fail identically.
func (s *Service) reportError(in protocol.TextBuffer, err error, elapsed time.Duration) {
	var cfgErr *synth.ConfigError
	isFatal := errors.As(err, &cfgErr)
	if isFatal {
		s.fatal.Store(true)
		s.logger.Error("fatal configuration error", slogError(err))
	} else {
		s.logger.Warn("flow error", slogError(err))
	}
	s.flowErrors.Add(s.ctx, 1)

	status := protocol.SynthStatus{
		SessionID: in.SessionID,
		Error:     err.Error(),
		Fatal:     isFatal,
		Timestamp: time.Now().UTC(),
	}
	if data, err := json.Marshal(status); err == nil {
		if pubErr := s.bus.Conn().Publish(protocol.SubjectSynthStatus, data); pubErr != nil {
			s.logger.Warn("failed to publish status", slogError(pubErr))
		}
	}

	s.record(synthlog.Entry{
		SessionID: in.SessionID,
		TextBytes: len(in.Payload),
		Outcome:   synthlog.OutcomeError,
		Detail:    err.Error(),
		ElapsedMS: elapsed.Milliseconds(),
	})
}

func (s *Service) record(e synthlog.Entry) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(s.ctx, e); err != nil {
		s.logger.Warn("failed to record utterance", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
