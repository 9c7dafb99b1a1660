package transcribe

import (
	"context"
	"strings"
	"time"

	"vidscribe/media"
)

// Segment is one timed span of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a completed transcription with enough timing detail to
// synthesize caption files.
type Result struct {
	Text            string    `json:"text"`
	Segments        []Segment `json:"segments,omitempty"`
	Language        string    `json:"language,omitempty"`
	DurationSeconds float64   `json:"duration,omitempty"`
	Engine          string    `json:"engine,omitempty"`
}

// Engine turns an audio file into a Result. Implementations are
// blocking; callers bound them with the context.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string, durationSeconds float64) (*Result, error)
	Name() string
}

// Cues converts provider segment timestamps into subtitle cues so SRT
// and VTT artifacts can be synthesized for audio-transcribed jobs.
func (r *Result) Cues() []media.Cue {
	cues := make([]media.Cue, 0, len(r.Segments))
	for _, seg := range r.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		cues = append(cues, media.Cue{
			Start: time.Duration(seg.Start * float64(time.Second)),
			End:   time.Duration(seg.End * float64(time.Second)),
			Text:  text,
		})
	}
	return cues
}
