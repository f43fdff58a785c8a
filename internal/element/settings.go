package element

import (
	"sync"

	"github.com/avstack/gst-coquitts/internal/synth"
)

// DefaultModel is the baseline model used when none is configured.
const DefaultModel = "tts_models/tr/common-voice/glow-tts"

// Store holds the element's mutable synthesis settings. Setters store
// values with no side effects and no validation; all cross-checks against
// the live backend happen in the backend session, because valid speaker and
// language values are model-dependent and unknowable before the model
// loads. The store has its own lock so updates never block on an in-flight
// synthesis call.
type Store struct {
	mu      sync.Mutex
	current synth.Settings
}

func NewStore() *Store {
	return &Store{current: synth.Settings{Model: DefaultModel}}
}

// NewStoreWith seeds the store from an initial snapshot, falling back to
// DefaultModel when the model is unset.
func NewStoreWith(initial synth.Settings) *Store {
	if initial.Model == "" {
		initial.Model = DefaultModel
	}
	return &Store{current: initial}
}

func (s *Store) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Model = model
}

func (s *Store) SetSpeaker(speaker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Speaker = speaker
}

func (s *Store) SetLanguage(language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Language = language
}

func (s *Store) SetVoiceRef(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.VoiceRef = path
}

func (s *Store) SetUseAcceleration(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.UseAcceleration = on
}

// Snapshot returns an immutable copy of the current settings. The effect of
// a concurrent update is only observed by the next snapshot, never by one
// already taken.
func (s *Store) Snapshot() synth.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
