package audio

import (
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, path string, rate, channels int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           make([]int, rate/10*channels), // 100ms of silence
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func TestProbeReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.wav")
	writeTestWAV(t, path, 22050, 1)

	info, err := ProbeReference(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SampleRate != 22050 || info.Channels != 1 || info.BitDepth != 16 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Duration <= 0 {
		t.Fatalf("expected positive duration, got %v", info.Duration)
	}
}

func TestProbeReferenceMissingFile(t *testing.T) {
	if _, err := ProbeReference(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestProbeReferenceNotWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.wav")
	if err := os.WriteFile(path, []byte("definitely not riff"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := ProbeReference(path); err == nil {
		t.Fatal("expected error for non-WAV payload")
	}
}
