package synth

import (
	"context"
	"errors"
	"sync/atomic"
)

// MockBackend is an in-memory backend for tests and the `mock` backend
// mode. Fields may be adjusted before the first Construct call.
type MockBackend struct {
	Rate              int
	MultiLingualModel bool
	MultiSpeakerModel bool
	Samples           []float32
	SynthErr          error
	ConstructErr      error

	constructs atomic.Int32
}

func NewMockBackend(rate int) *MockBackend {
	return &MockBackend{
		Rate:    rate,
		Samples: []float32{0, 0, 0},
	}
}

// Constructs reports how many times Construct has been called.
func (m *MockBackend) Constructs() int { return int(m.constructs.Load()) }

func (m *MockBackend) Construct(ctx context.Context, model string, useAcceleration bool) (Handle, error) {
	m.constructs.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ConstructErr != nil {
		return nil, m.ConstructErr
	}
	if model == "" {
		return nil, errors.New("empty model name")
	}
	return &mockHandle{backend: m}, nil
}

type mockHandle struct {
	backend *MockBackend
}

func (h *mockHandle) MultiLingual() bool    { return h.backend.MultiLingualModel }
func (h *mockHandle) MultiSpeaker() bool    { return h.backend.MultiSpeakerModel }
func (h *mockHandle) OutputSampleRate() int { return h.backend.Rate }

func (h *mockHandle) Synthesize(ctx context.Context, req Request) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.backend.SynthErr != nil {
		return nil, h.backend.SynthErr
	}
	if req.Text == "" {
		return nil, errors.New("empty text")
	}
	out := make([]float32, len(h.backend.Samples))
	copy(out, h.backend.Samples)
	return out, nil
}
