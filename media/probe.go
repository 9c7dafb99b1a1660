package media

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"vidscribe/config"
	"vidscribe/errors"
)

// Metadata is what the duration probe reports before any download.
type Metadata struct {
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration"`
	Extractor       string  `json:"extractor_key"`
}

func (m *Metadata) DurationMinutes() float64 {
	return m.DurationSeconds / 60
}

type Prober struct {
	cfg config.MediaConfig
	log *logrus.Logger
}

func NewProber(cfg config.MediaConfig, log *logrus.Logger) *Prober {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Prober{cfg: cfg, log: log}
}

// Probe fetches video metadata without downloading media. Callers
// decide whether a failure here is fatal; caption-first jobs tolerate
// it.
func (p *Prober) Probe(ctx context.Context, url string) (*Metadata, error) {
	const op = "Prober.Probe"

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	output, err := runCommand(ctx, p.log, p.cfg.YtdlpPath,
		"--dump-json",
		"--no-download",
		"--no-playlist",
		url,
	)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to fetch video metadata")
	}

	var meta Metadata
	if err := json.Unmarshal(output, &meta); err != nil {
		return nil, errors.Internal(op, err, "Failed to parse video metadata")
	}

	p.log.WithFields(logrus.Fields{
		"url":      url,
		"title":    meta.Title,
		"duration": meta.DurationSeconds,
	}).Info("Probed video metadata")

	return &meta, nil
}
