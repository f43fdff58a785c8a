package caps

import (
	"fmt"
	"strings"
)

// Media types handled by the element.
const (
	MediaText  = "text/x-raw"
	MediaAudio = "audio/x-raw"
)

// FormatF32LE is the only audio sample format the element produces.
const FormatF32LE = "F32LE"

// Structure describes one acceptable buffer format on a pad. Zero-valued
// fields are wildcards and match anything during intersection.
type Structure struct {
	Media    string
	Encoding string // text encoding, e.g. "utf8"
	Format   string // audio sample format, e.g. "F32LE"
	Channels int
	Rate     int
}

// Set is an ordered list of acceptable structures. Order matters: earlier
// entries are preferred during intersection.
type Set []Structure

// Text returns the fixed capability of the text pad.
func Text() Set {
	return Set{{Media: MediaText, Encoding: "utf8"}}
}

// Audio returns the capability of the audio pad at the given sample rate.
func Audio(rate int) Set {
	return Set{{Media: MediaAudio, Format: FormatF32LE, Channels: 1, Rate: rate}}
}

// Intersect narrows s by filter. The filter's ordering takes precedence:
// each filter structure is matched against s in order and the first
// compatible pairing wins. A nil filter leaves s unchanged. The result is
// empty when nothing is compatible.
func (s Set) Intersect(filter Set) Set {
	if filter == nil {
		out := make(Set, len(s))
		copy(out, s)
		return out
	}
	var out Set
	for _, f := range filter {
		for _, c := range s {
			if merged, ok := merge(f, c); ok {
				out = append(out, merged)
				break
			}
		}
	}
	return out
}

// Empty reports whether the set allows no format at all.
func (s Set) Empty() bool { return len(s) == 0 }

func (s Set) String() string {
	if len(s) == 0 {
		return "EMPTY"
	}
	parts := make([]string, len(s))
	for i, st := range s {
		parts[i] = st.String()
	}
	return strings.Join(parts, "; ")
}

func (s Structure) String() string {
	var b strings.Builder
	b.WriteString(s.Media)
	if s.Encoding != "" {
		fmt.Fprintf(&b, " encoding=%s", s.Encoding)
	}
	if s.Format != "" {
		fmt.Fprintf(&b, " format=%s", s.Format)
	}
	if s.Channels != 0 {
		fmt.Fprintf(&b, " channels=%d", s.Channels)
	}
	if s.Rate != 0 {
		fmt.Fprintf(&b, " rate=%d", s.Rate)
	}
	return b.String()
}

// merge combines two structures field by field, treating zero values as
// wildcards. It fails when any field is fixed on both sides with different
// values.
func merge(a, b Structure) (Structure, bool) {
	out := Structure{}
	var ok bool
	if out.Media, ok = mergeString(a.Media, b.Media); !ok {
		return Structure{}, false
	}
	if out.Encoding, ok = mergeString(a.Encoding, b.Encoding); !ok {
		return Structure{}, false
	}
	if out.Format, ok = mergeString(a.Format, b.Format); !ok {
		return Structure{}, false
	}
	if out.Channels, ok = mergeInt(a.Channels, b.Channels); !ok {
		return Structure{}, false
	}
	if out.Rate, ok = mergeInt(a.Rate, b.Rate); !ok {
		return Structure{}, false
	}
	return out, true
}

func mergeString(a, b string) (string, bool) {
	switch {
	case a == "":
		return b, true
	case b == "" || a == b:
		return a, true
	default:
		return "", false
	}
}

func mergeInt(a, b int) (int, bool) {
	switch {
	case a == 0:
		return b, true
	case b == 0 || a == b:
		return a, true
	default:
		return 0, false
	}
}
