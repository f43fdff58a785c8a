package synth

import (
	"context"
	"sync"
)

// Request carries one synthesis call. Optional fields use the empty string
// as unset; unset fields are not forwarded to the backend, so backend
// defaults apply.
type Request struct {
	Text     string
	Speaker  string
	Language string
	VoiceRef string // path to a WAV file to clone the voice from
}

// Handle is a live, loaded synthesis model.
type Handle interface {
	// MultiLingual reports whether the model requires a language.
	MultiLingual() bool
	// MultiSpeaker reports whether the model requires a speaker.
	MultiSpeaker() bool
	// OutputSampleRate returns the rate of samples produced by Synthesize.
	OutputSampleRate() int
	// Synthesize converts text to mono float32 samples.
	Synthesize(ctx context.Context, req Request) ([]float32, error)
}

// Backend constructs handles. Construct may be arbitrarily slow (model
// loading); no timeout is imposed at this layer. Progress reporting is
// always disabled.
type Backend interface {
	Construct(ctx context.Context, model string, useAcceleration bool) (Handle, error)
}

// callLock serializes every call into the synthesis backend. The backend
// tolerates exactly one in-flight call process-wide, so it is acquired
// around each individual call and never held across calls. It is distinct
// from the Session lock, which only guards one-time initialization.
var callLock sync.Mutex
