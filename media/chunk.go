package media

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"vidscribe/config"
	"vidscribe/errors"
)

// Chunker slices an audio file into provider-sized segments, cutting
// at detected silence so words are not split mid-sentence.
type Chunker struct {
	cfg config.MediaConfig
	log *logrus.Logger
}

func NewChunker(cfg config.MediaConfig, log *logrus.Logger) *Chunker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Chunker{cfg: cfg, log: log}
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*([\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*([\d.]+)`)
)

// DetectSilence returns candidate cut points: the midpoints of
// silences ffmpeg finds in the file.
func (c *Chunker) DetectSilence(ctx context.Context, path string) ([]float64, error) {
	const op = "Chunker.DetectSilence"

	output, err := runCommandCombined(ctx, c.log, c.cfg.FFmpegPath,
		"-i", path,
		"-af", "silencedetect=noise=-30dB:d=0.5",
		"-f", "null",
		"-",
	)
	if err != nil {
		return nil, errors.Internal(op, err, "Silence detection failed")
	}

	starts := silenceStartRe.FindAllStringSubmatch(string(output), -1)
	ends := silenceEndRe.FindAllStringSubmatch(string(output), -1)

	var points []float64
	for i, s := range starts {
		start, err := strconv.ParseFloat(s[1], 64)
		if err != nil {
			continue
		}
		// Pair with the matching end when present; a trailing silence
		// without an end still yields its start as a cut point.
		if i < len(ends) {
			if end, err := strconv.ParseFloat(ends[i][1], 64); err == nil && end > start {
				points = append(points, (start+end)/2)
				continue
			}
		}
		points = append(points, start)
	}

	return points, nil
}

// PlanSegments chooses cut boundaries from silence points. Each
// segment takes the latest silence point within maxSeconds of its
// start; when none qualifies, the split is forced at maxSeconds.
func PlanSegments(silencePoints []float64, totalSeconds, maxSeconds float64) [][2]float64 {
	var segments [][2]float64

	start := 0.0
	for totalSeconds-start > maxSeconds {
		cut := start + maxSeconds
		for _, p := range silencePoints {
			if p > start && p <= start+maxSeconds && p > start+maxSeconds/4 {
				cut = p
			}
		}
		segments = append(segments, [2]float64{start, cut})
		start = cut
	}
	segments = append(segments, [2]float64{start, totalSeconds})

	return segments
}

// Split cuts the file into segments no longer than the configured
// maximum, returning one file per segment in play order.
func (c *Chunker) Split(ctx context.Context, path string, totalSeconds float64) ([]string, error) {
	const op = "Chunker.Split"

	maxSeconds := float64(c.cfg.MaxChunkSeconds)
	if totalSeconds <= maxSeconds {
		return []string{path}, nil
	}

	silence, err := c.DetectSilence(ctx, path)
	if err != nil {
		// Silence detection is best-effort; forced splits still work.
		c.log.WithError(err).Warn("Silence detection failed, using fixed-length splits")
		silence = nil
	}

	segments := PlanSegments(silence, totalSeconds, maxSeconds)
	c.log.WithFields(logrus.Fields{
		"path":     path,
		"segments": len(segments),
	}).Info("Splitting audio into chunks")

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	var paths []string
	for i, seg := range segments {
		outPath := fmt.Sprintf("%s.chunk%03d%s", base, i, ext)
		_, err := runCommandCombined(ctx, c.log, c.cfg.FFmpegPath,
			"-y",
			"-i", path,
			"-ss", formatSeconds(seg[0]),
			"-to", formatSeconds(seg[1]),
			"-c", "copy",
			outPath,
		)
		if err != nil {
			return nil, errors.Internal(op, err, fmt.Sprintf("Failed to cut chunk %d", i))
		}
		paths = append(paths, outPath)
	}

	return paths, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+['"’”]?|[^.!?]+$`)

func splitSentences(text string) []string {
	matches := sentenceRe.FindAllString(text, -1)
	var sentences []string
	for _, m := range matches {
		if m = strings.TrimSpace(m); m != "" {
			sentences = append(sentences, m)
		}
	}
	return sentences
}

// MergeTranscripts joins chunk transcripts in file order, removing
// text duplicated across a chunk boundary. Adjacent chunks can repeat
// the last sentence or two where the audio overlapped a cut; the
// repeat is matched against the start of the next chunk and dropped
// once.
func MergeTranscripts(texts []string) string {
	if len(texts) == 0 {
		return ""
	}

	merged := strings.TrimSpace(texts[0])
	for _, next := range texts[1:] {
		next = strings.TrimSpace(next)
		if next == "" {
			continue
		}

		sentences := splitSentences(merged)
		for n := 2; n >= 1; n-- {
			if len(sentences) < n {
				continue
			}
			tail := strings.Join(sentences[len(sentences)-n:], " ")
			if strings.HasPrefix(next, tail) {
				next = strings.TrimSpace(strings.TrimPrefix(next, tail))
				break
			}
		}

		if next == "" {
			continue
		}
		merged = merged + " " + next
	}

	return merged
}
