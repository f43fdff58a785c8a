package protocol

import "time"

// TextBuffer is one text unit queued for synthesis.
type TextBuffer struct {
	SessionID string    `json:"session_id"`
	Sequence  int       `json:"sequence"`
	Payload   []byte    `json:"payload"` // UTF-8 text bytes
	Timestamp time.Time `json:"timestamp"`
}

// AudioBuffer is one synthesized audio unit. Data is sequential
// little-endian float32 samples with no header.
type AudioBuffer struct {
	SessionID  string    `json:"session_id"`
	Sequence   int       `json:"sequence"`
	Format     string    `json:"format"` // always "F32LE"
	Channels   int       `json:"channels"`
	SampleRate int       `json:"sample_rate"`
	Data       []byte    `json:"data"`
	Timestamp  time.Time `json:"timestamp"`
}

// SynthStatus reports a per-call failure to the host. Fatal means the
// element cannot produce further output for its remaining lifetime.
type SynthStatus struct {
	SessionID string    `json:"session_id"`
	Error     string    `json:"error"`
	Fatal     bool      `json:"fatal"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectTextIn      = "tts.text.in"
	SubjectAudioOut    = "tts.audio.out"
	SubjectSynthStatus = "tts.synth.status"
)
