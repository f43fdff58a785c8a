package element

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/avstack/gst-coquitts/internal/caps"
	"github.com/avstack/gst-coquitts/internal/synth"
)

// Side names the pad being negotiated.
type Side int

const (
	SideText Side = iota
	SideAudio
)

// ErrInvalidEncoding is returned when an input buffer is not valid UTF-8.
// Unlike a synthesis failure it is surfaced to the host, which decides
// whether to halt the stream.
var ErrInvalidEncoding = errors.New("input buffer is not valid utf-8")

// Engine converts queued text buffers into audio buffers, one unit at a
// time, on whatever goroutine the host drives it from.
type Engine struct {
	settings *Store
	session  *synth.Session
	log      *slog.Logger

	mu    sync.Mutex
	queue [][]byte
}

func New(settings *Store, session *synth.Session, log *slog.Logger) *Engine {
	return &Engine{
		settings: settings,
		session:  session,
		log:      log.With(slog.String("component", "transform-engine")),
	}
}

// Settings exposes the element's configuration store.
func (e *Engine) Settings() *Store { return e.settings }

// Session exposes the element's backend session.
func (e *Engine) Session() *synth.Session { return e.session }

// Push queues one input buffer for a later ProcessNext call.
func (e *Engine) Push(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, data)
}

func (e *Engine) takeQueued() ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil, false
	}
	data := e.queue[0]
	e.queue = e.queue[1:]
	return data, true
}

// Negotiate computes the capability set for one side of the element,
// narrowed by the upstream filter. The text side never needs the backend.
// The audio side requires the backend's sample rate and is therefore the
// one negotiation path that can trigger lazy initialization; a fatal
// configuration error fails negotiation outright, since without the rate no
// plausible audio format can be advertised.
func (e *Engine) Negotiate(ctx context.Context, side Side, filter caps.Set) (caps.Set, error) {
	if side == SideText {
		return caps.Text().Intersect(filter), nil
	}
	if err := e.session.EnsureReady(ctx, e.settings.Snapshot()); err != nil {
		return nil, fmt.Errorf("negotiate audio side: %w", err)
	}
	rate, err := e.session.OutputSampleRate()
	if err != nil {
		return nil, fmt.Errorf("negotiate audio side: %w", err)
	}
	e.log.Debug("negotiated audio caps", slog.Int("rate", rate))
	return caps.Audio(rate).Intersect(filter), nil
}

// ProcessNext converts at most one queued text buffer into an audio buffer.
// A (nil, nil) return means no output: either the queue was empty or the
// backend failed to synthesize this unit, in which case the unit is dropped
// and the stream continues. Fatal configuration errors and flow errors
// (invalid encoding, buffer allocation) are returned to the host.
func (e *Engine) ProcessNext(ctx context.Context) (*Buffer, error) {
	data, ok := e.takeQueued()
	if !ok {
		return nil, nil
	}

	if !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}
	text := string(data)

	cfg := e.settings.Snapshot()
	if err := e.session.EnsureReady(ctx, cfg); err != nil {
		return nil, err
	}

	samples, err := e.session.Synthesize(ctx, text, cfg)
	if err != nil {
		e.log.Warn("synthesis failed, dropping buffer",
			slog.Int("text_bytes", len(text)),
			slog.String("error", err.Error()))
		return nil, nil
	}
	e.log.Debug("synthesized buffer", slog.Int("samples", len(samples)))

	buf, err := NewAudioBuffer(samples)
	if err != nil {
		return nil, fmt.Errorf("allocate output buffer: %w", err)
	}
	return buf, nil
}
