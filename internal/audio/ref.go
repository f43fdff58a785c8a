package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// ReferenceInfo describes a voice-cloning reference WAV file.
type ReferenceInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// ProbeReference reads the header of the configured voice reference file.
// This is advisory only: whether the file is actually usable is up to the
// backend, which may support formats beyond plain PCM WAV. Callers log the
// outcome and move on.
func ProbeReference(path string) (ReferenceInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReferenceInfo{}, fmt.Errorf("open voice reference: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		return ReferenceInfo{}, fmt.Errorf("voice reference %q is not a valid WAV file", path)
	}

	dur, err := d.Duration()
	if err != nil {
		return ReferenceInfo{}, fmt.Errorf("read voice reference duration: %w", err)
	}

	return ReferenceInfo{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Duration:   dur,
	}, nil
}
