package media

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vidscribe/errors"
)

// CaptionTrack is a downloaded subtitle file plus how it was sourced.
type CaptionTrack struct {
	Format  string // "srt" or "vtt"
	Content string
	Auto    bool
}

// DownloadCaptions fetches a subtitle track for url: authored tracks
// first, auto-generated as fallback; SRT preferred over VTT in both
// passes. Callers gate this on a recognized captioned platform.
func (d *Downloader) DownloadCaptions(ctx context.Context, url, lang string) (*CaptionTrack, error) {
	const op = "Downloader.DownloadCaptions"

	if lang == "" {
		lang = "en"
	}

	workDir := filepath.Join(os.TempDir(), "vidscribe-subs-"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, errors.Internal(op, err, "Failed to create caption directory")
	}
	defer os.RemoveAll(workDir)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.DownloadTimeout)
	defer cancel()

	// Authored subtitles first.
	track, err := d.fetchTrack(ctx, url, lang, workDir, false)
	if err == nil {
		return track, nil
	}
	d.log.WithError(err).WithField("url", url).Info("No authored captions, trying auto-generated")

	track, err = d.fetchTrack(ctx, url, lang, workDir, true)
	if err != nil {
		return nil, errors.NotFound(op, err, "No caption track available for this video")
	}
	return track, nil
}

func (d *Downloader) fetchTrack(ctx context.Context, url, lang, workDir string, auto bool) (*CaptionTrack, error) {
	const op = "Downloader.fetchTrack"

	outTemplate := filepath.Join(workDir, "track.%(ext)s")

	args := []string{
		"--skip-download",
		"--no-playlist",
		"--sub-langs", lang,
		"--sub-format", "srt/vtt",
		"--convert-subs", "srt",
		"--output", outTemplate,
	}
	if auto {
		args = append(args, "--write-auto-subs")
	} else {
		args = append(args, "--write-subs")
	}
	args = append(args, url)

	if _, err := runCommand(ctx, d.log, d.cfg.YtdlpPath, args...); err != nil {
		return nil, errors.Internal(op, err, "Caption download failed")
	}

	// yt-dlp names the file track.<lang>.<ext>; prefer srt.
	for _, ext := range []string{"srt", "vtt"} {
		path := filepath.Join(workDir, "track."+lang+"."+ext)
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if len(content) == 0 {
			continue
		}

		d.log.WithFields(logrus.Fields{
			"url":    url,
			"format": ext,
			"auto":   auto,
		}).Info("Caption track downloaded")

		return &CaptionTrack{
			Format:  ext,
			Content: string(content),
			Auto:    auto,
		}, nil
	}

	return nil, errors.NotFound(op, nil, "No caption file produced")
}

// Cues parses the track into cues according to its format.
func (t *CaptionTrack) Cues() []Cue {
	if t.Format == "vtt" {
		return ParseVTT(t.Content)
	}
	return ParseSRT(t.Content)
}
