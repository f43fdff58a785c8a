package element

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/avstack/gst-coquitts/internal/caps"
	"github.com/avstack/gst-coquitts/internal/synth"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newEngine(backend synth.Backend) *Engine {
	log := newLogger()
	return New(NewStore(), synth.NewSession(backend, log), log)
}

func TestProcessNextEmptyQueue(t *testing.T) {
	backend := synth.NewMockBackend(22050)
	e := newEngine(backend)

	buf, err := e.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf != nil {
		t.Fatalf("expected no output, got %d bytes", buf.Len())
	}
	if got := backend.Constructs(); got != 0 {
		t.Fatalf("empty queue must not touch the backend, got %d constructions", got)
	}
}

func TestProcessNextEncodesSamplesLittleEndian(t *testing.T) {
	backend := synth.NewMockBackend(22050)
	backend.Samples = []float32{0.1, -0.2, 0.05}
	e := newEngine(backend)

	e.Push([]byte("hello"))
	buf, err := e.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf == nil {
		t.Fatal("expected output buffer")
	}
	want := make([]byte, 12)
	binary.LittleEndian.PutUint32(want[0:], math.Float32bits(0.1))
	binary.LittleEndian.PutUint32(want[4:], math.Float32bits(-0.2))
	binary.LittleEndian.PutUint32(want[8:], math.Float32bits(0.05))
	got := buf.Bytes()
	if len(got) != len(want) {
		t.Fatalf("expected %d bytes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: expected %#x, got %#x", i, want[i], got[i])
		}
	}
}

func TestProcessNextInvalidUTF8(t *testing.T) {
	backend := synth.NewMockBackend(22050)
	e := newEngine(backend)

	e.Push([]byte{'h', 'i', 0xFF})
	buf, err := e.ProcessNext(context.Background())
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
	if buf != nil {
		t.Fatal("invalid encoding must not produce output")
	}
}

func TestProcessNextPropagatesConfigError(t *testing.T) {
	backend := synth.NewMockBackend(22050)
	backend.MultiLingualModel = true
	e := newEngine(backend)

	e.Push([]byte("hello"))
	var cfgErr *synth.ConfigError
	if _, err := e.ProcessNext(context.Background()); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}

	// Every subsequent unit fails identically.
	e.Push([]byte("world"))
	if _, err := e.ProcessNext(context.Background()); !errors.As(err, &cfgErr) {
		t.Fatalf("expected terminal ConfigError, got %v", err)
	}
}

func TestProcessNextDropsFailedSynthesis(t *testing.T) {
	backend := synth.NewMockBackend(22050)
	e := newEngine(backend)

	// Warm the session, then make synthesis fail for one unit.
	e.Push([]byte("warmup"))
	if _, err := e.ProcessNext(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	backend.SynthErr = errors.New("pathological input")
	e.Push([]byte("bad"))
	buf, err := e.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("synthesis failure must be absorbed, got %v", err)
	}
	if buf != nil {
		t.Fatal("failed synthesis must not produce output")
	}

	backend.SynthErr = nil
	e.Push([]byte("good"))
	buf, err = e.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("unexpected error after dropped unit: %v", err)
	}
	if buf == nil {
		t.Fatal("expected output after dropped unit")
	}
}

func TestNegotiateTextSideWithoutBackend(t *testing.T) {
	backend := synth.NewMockBackend(22050)
	e := newEngine(backend)

	set, err := e.Negotiate(context.Background(), SideText, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 1 || set[0].Media != caps.MediaText || set[0].Encoding != "utf8" {
		t.Fatalf("unexpected text caps: %s", set)
	}
	if got := backend.Constructs(); got != 0 {
		t.Fatalf("text negotiation must not touch the backend, got %d constructions", got)
	}
}

func TestNegotiateAudioSideInitializesBackend(t *testing.T) {
	backend := synth.NewMockBackend(44100)
	e := newEngine(backend)

	set, err := e.Negotiate(context.Background(), SideAudio, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 1 || set[0].Rate != 44100 {
		t.Fatalf("expected rate 44100, got %s", set)
	}
	if got := backend.Constructs(); got != 1 {
		t.Fatalf("expected lazy construction during negotiation, got %d", got)
	}
	if e.Session().State() != synth.StateReady {
		t.Fatalf("expected ready session, got %s", e.Session().State())
	}
}

func TestNegotiateAudioSideFilterOrder(t *testing.T) {
	backend := synth.NewMockBackend(22050)
	e := newEngine(backend)

	filter := caps.Set{
		{Media: caps.MediaAudio, Rate: 48000},
		{Media: caps.MediaAudio},
	}
	set, err := e.Negotiate(context.Background(), SideAudio, filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The first filter entry is incompatible; the wildcard entry matches
	// and is fixed to the backend rate.
	if len(set) != 1 || set[0].Rate != 22050 {
		t.Fatalf("unexpected negotiation result: %s", set)
	}
}

func TestNegotiateAudioSideFailsOnConfigError(t *testing.T) {
	backend := synth.NewMockBackend(22050)
	backend.MultiSpeakerModel = true
	e := newEngine(backend)

	var cfgErr *synth.ConfigError
	if _, err := e.Negotiate(context.Background(), SideAudio, nil); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestSettingsSnapshotIsolation(t *testing.T) {
	store := NewStore()
	if store.Snapshot().Model != DefaultModel {
		t.Fatalf("expected default model, got %q", store.Snapshot().Model)
	}
	snap := store.Snapshot()
	store.SetSpeaker("p225")
	store.SetLanguage("en")
	if snap.Speaker != "" || snap.Language != "" {
		t.Fatal("snapshot must not observe later updates")
	}
	next := store.Snapshot()
	if next.Speaker != "p225" || next.Language != "en" {
		t.Fatalf("unexpected snapshot: %+v", next)
	}
}
