package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Settings is an immutable snapshot of the element's synthesis
// configuration. Optional fields use the empty string as unset.
type Settings struct {
	Model           string
	Speaker         string
	Language        string
	VoiceRef        string
	UseAcceleration bool
}

// State tracks the session lifecycle. Ready and Failed are terminal.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConfigError is a fatal mismatch between the configuration and the loaded
// model, detected at first readiness. It is terminal for the session: every
// later call fails with the same error.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "backend configuration: " + e.Reason }

// ErrNotReady is returned when a call requires a ready session but
// initialization has not happened yet.
var ErrNotReady = errors.New("backend session not ready")

// Session is the element's lazily-initialized handle to the synthesis
// backend. Construction runs at most once; concurrent callers block on the
// session lock until the single attempt finishes and then observe its
// outcome.
type Session struct {
	backend Backend
	log     *slog.Logger

	mu      sync.Mutex
	state   atomic.Int32
	handle  Handle
	failure error
}

func NewSession(backend Backend, log *slog.Logger) *Session {
	return &Session{
		backend: backend,
		log:     log.With(slog.String("component", "backend-session")),
	}
}

// State reports the current lifecycle state without blocking on an
// in-flight initialization.
func (s *Session) State() State { return State(s.state.Load()) }

// EnsureReady makes the session ready, constructing and validating the
// backend on first use. It is idempotent: a ready session returns nil
// immediately and a failed session returns its original fatal error
// forever. Construction may take as long as model loading takes; there is
// no timeout at this layer.
func (s *Session) EnsureReady(ctx context.Context, cfg Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateReady:
		return nil
	case StateFailed:
		return s.failure
	}

	s.state.Store(int32(StateInitializing))
	s.log.Debug("constructing backend",
		slog.String("model", cfg.Model),
		slog.Bool("use_acceleration", cfg.UseAcceleration))

	callLock.Lock()
	handle, err := s.backend.Construct(ctx, cfg.Model, cfg.UseAcceleration)
	callLock.Unlock()
	if err != nil {
		return s.fail(&ConfigError{Reason: fmt.Sprintf("construct model %q: %v", cfg.Model, err)})
	}

	callLock.Lock()
	multiLingual := handle.MultiLingual()
	callLock.Unlock()
	if multiLingual && cfg.Language == "" {
		return s.fail(&ConfigError{Reason: "model is multi-lingual and requires the language setting"})
	}

	callLock.Lock()
	multiSpeaker := handle.MultiSpeaker()
	callLock.Unlock()
	if multiSpeaker && cfg.Speaker == "" {
		return s.fail(&ConfigError{Reason: "model is multi-speaker and requires the speaker setting"})
	}

	callLock.Lock()
	rate := handle.OutputSampleRate()
	callLock.Unlock()

	s.handle = handle
	s.state.Store(int32(StateReady))
	s.log.Info("backend ready",
		slog.String("model", cfg.Model),
		slog.Int("sample_rate", rate))
	return nil
}

func (s *Session) fail(err *ConfigError) error {
	s.failure = err
	s.state.Store(int32(StateFailed))
	s.log.Error("backend session failed", slog.String("error", err.Error()))
	return err
}

// OutputSampleRate queries the backend's declared rate. Valid only once the
// session is ready.
func (s *Session) OutputSampleRate() (int, error) {
	handle, err := s.ready()
	if err != nil {
		return 0, err
	}
	callLock.Lock()
	defer callLock.Unlock()
	return handle.OutputSampleRate(), nil
}

// Synthesize converts one text unit to samples using the given settings
// snapshot. Unset optional fields are not forwarded. Errors here are
// per-unit and non-fatal; the session stays ready.
func (s *Session) Synthesize(ctx context.Context, text string, cfg Settings) ([]float32, error) {
	handle, err := s.ready()
	if err != nil {
		return nil, err
	}
	req := Request{
		Text:     text,
		Speaker:  cfg.Speaker,
		Language: cfg.Language,
		VoiceRef: cfg.VoiceRef,
	}
	callLock.Lock()
	defer callLock.Unlock()
	return handle.Synthesize(ctx, req)
}

func (s *Session) ready() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.State() {
	case StateReady:
		return s.handle, nil
	case StateFailed:
		return nil, s.failure
	default:
		return nil, ErrNotReady
	}
}
