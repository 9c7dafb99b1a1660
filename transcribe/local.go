package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"vidscribe/config"
	"vidscribe/errors"
)

// LocalEngine runs the whisper CLI on the worker host. Slower than the
// remote engine but quota-free; it backs the standard tier and the
// premium degrade path.
type LocalEngine struct {
	cfg config.MediaConfig
	log *logrus.Logger
}

func NewLocalEngine(cfg config.MediaConfig, log *logrus.Logger) *LocalEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LocalEngine{cfg: cfg, log: log}
}

func (e *LocalEngine) Name() string { return "whisper-local" }

type whisperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (e *LocalEngine) Transcribe(ctx context.Context, audioPath string, durationSeconds float64) (*Result, error) {
	const op = "LocalEngine.Transcribe"

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ProcessTimeout)
	defer cancel()

	outDir := filepath.Dir(audioPath)

	e.log.WithFields(logrus.Fields{
		"path":  audioPath,
		"model": e.cfg.WhisperModel,
	}).Info("Starting local transcription")

	cmd := exec.CommandContext(ctx, e.cfg.WhisperPath,
		audioPath,
		"--model", e.cfg.WhisperModel,
		"--output_format", "json",
		"--output_dir", outDir,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		e.log.WithError(err).WithField("stderr", stderr.String()).Error("Whisper execution failed")
		return nil, errors.Internal(op, err, "Local transcription failed")
	}

	// Whisper writes <basename>.json next to the audio file.
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outDir, base+".json")

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, errors.Internal(op, err, "Whisper produced no output file")
	}
	defer os.Remove(jsonPath)

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Internal(op, err, "Failed to parse whisper output")
	}

	result := &Result{
		Text:            strings.TrimSpace(out.Text),
		Language:        out.Language,
		DurationSeconds: durationSeconds,
		Engine:          e.Name(),
	}
	for _, seg := range out.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	if result.Text == "" {
		return nil, errors.Internal(op, nil, "Transcription produced no text")
	}

	return result, nil
}
