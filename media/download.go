package media

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vidscribe/config"
	"vidscribe/errors"
)

type Downloader struct {
	cfg config.MediaConfig
	log *logrus.Logger
}

func NewDownloader(cfg config.MediaConfig, log *logrus.Logger) *Downloader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Downloader{cfg: cfg, log: log}
}

// DownloadAudio extracts the audio track to destDir and returns the
// file path. The caller owns cleanup.
func (d *Downloader) DownloadAudio(ctx context.Context, url, destDir string) (string, error) {
	const op = "Downloader.DownloadAudio"

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", errors.Internal(op, err, "Failed to create download directory")
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.DownloadTimeout)
	defer cancel()

	outPath := filepath.Join(destDir, uuid.New().String()+".m4a")

	_, err := runCommand(ctx, d.log, d.cfg.YtdlpPath,
		"--extract-audio",
		"--audio-format", "m4a",
		"--audio-quality", "0",
		"--no-playlist",
		"--output", outPath,
		url,
	)
	if err != nil {
		return "", errors.Internal(op, err, "Failed to download audio")
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", errors.Internal(op, err, "Audio download produced no file")
	}

	d.log.WithFields(logrus.Fields{
		"url":  url,
		"path": outPath,
	}).Info("Audio downloaded")

	return outPath, nil
}
