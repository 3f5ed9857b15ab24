package telemetry

import (
	"math"
	"strconv"
	"strings"
)

const sentencePrefix = "$INXDR"

// Tag identifies which angle stream a sentence belongs to.
type Tag int

const (
	Camera Tag = iota
	Mast
)

// Name is the tag as it appears on the wire.
func (t Tag) Name() string {
	switch t {
	case Camera:
		return "CamAngle"
	case Mast:
		return "MastRot"
	default:
		return "Unknown"
	}
}

func (t Tag) String() string { return t.Name() }

func (t Tag) matches(field string) bool {
	return strings.EqualFold(strings.TrimSpace(field), t.Name())
}

type AngleSample struct {
	Tag     Tag
	Degrees float64
}

// ParseSentence decodes one `$INXDR,<type>,<value>,<unit>,<tag>[*<checksum>]` line.
// The checksum is not verified.
func ParseSentence(line string) (AngleSample, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, sentencePrefix) {
		return AngleSample{}, false
	}
	fields := strings.Split(line, ",")
	if len(fields) < 5 {
		return AngleSample{}, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return AngleSample{}, false
	}
	tagField := fields[4]
	if i := strings.IndexByte(tagField, '*'); i >= 0 {
		tagField = tagField[:i]
	}
	for _, t := range []Tag{Camera, Mast} {
		if t.matches(tagField) {
			return AngleSample{Tag: t, Degrees: v}, true
		}
	}
	return AngleSample{}, false
}

// DecodeDatagram returns the samples in payload carrying want, in order.
// Lines that do not parse or carry another tag are skipped.
func DecodeDatagram(payload []byte, want Tag) (samples []AngleSample, rejected int) {
	for _, line := range strings.Split(string(payload), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		s, ok := ParseSentence(line)
		if !ok || s.Tag != want {
			rejected++
			continue
		}
		samples = append(samples, s)
	}
	return samples, rejected
}
