package jobs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vidscribe/errors"
	"vidscribe/media"
	"vidscribe/models"
	"vidscribe/transcribe"
)

// Content is acquired transcript material, normalized across the three
// acquisition paths. SRT and VTT are always populated: downloaded for
// caption jobs, synthesized from segment timestamps for audio jobs.
type Content struct {
	Text string
	SRT  string
	VTT  string
}

// Strategy is one way of turning a job's source URL into Content. The
// orchestrator selects a strategy per job and swaps it exactly once on
// the premium degrade path; it never branches on provider detail
// itself.
type Strategy interface {
	Acquire(ctx context.Context, job *models.Job) (*Content, error)
}

// CaptionStrategy downloads an existing subtitle track instead of
// transcribing. Only valid for recognized captioned platforms; the
// submission path enforces that, so a miss here is an input error.
type CaptionStrategy struct {
	downloader *media.Downloader
	lang       string
}

func NewCaptionStrategy(downloader *media.Downloader, lang string) *CaptionStrategy {
	return &CaptionStrategy{downloader: downloader, lang: lang}
}

func (s *CaptionStrategy) Acquire(ctx context.Context, job *models.Job) (*Content, error) {
	const op = "CaptionStrategy.Acquire"

	track, err := s.downloader.DownloadCaptions(ctx, job.SourceURL, s.lang)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.InvalidInput(op, err, "This video has no caption track")
		}
		return nil, err
	}

	cues := track.Cues()
	if len(cues) == 0 {
		return nil, errors.InvalidInput(op, nil, "Caption track contained no cues")
	}

	content := &Content{Text: media.PlainText(cues)}
	if track.Format == "vtt" {
		content.VTT = track.Content
		content.SRT = media.FormatSRT(cues)
	} else {
		content.SRT = track.Content
		content.VTT = media.FormatVTT(cues)
	}
	return content, nil
}

// AudioStrategy downloads the source audio and runs it through a
// transcription engine. The same type serves the standard and premium
// tiers; only the injected engine differs.
type AudioStrategy struct {
	downloader *media.Downloader
	engine     transcribe.Engine
	tempDir    string
	log        *logrus.Logger
}

func NewAudioStrategy(downloader *media.Downloader, engine transcribe.Engine, tempDir string, log *logrus.Logger) *AudioStrategy {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AudioStrategy{
		downloader: downloader,
		engine:     engine,
		tempDir:    tempDir,
		log:        log,
	}
}

func (s *AudioStrategy) Acquire(ctx context.Context, job *models.Job) (*Content, error) {
	const op = "AudioStrategy.Acquire"

	workDir := filepath.Join(s.tempDir, "job-"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, errors.Internal(op, err, "Failed to create working directory")
	}
	defer os.RemoveAll(workDir)

	audioPath, err := s.downloader.DownloadAudio(ctx, job.SourceURL, workDir)
	if err != nil {
		return nil, err
	}

	var durationSeconds float64
	if job.DurationMinutes != nil {
		durationSeconds = *job.DurationMinutes * 60
	}

	result, err := s.engine.Transcribe(ctx, audioPath, durationSeconds)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"engine":   result.Engine,
		"segments": len(result.Segments),
	}).Info("Transcription finished")

	cues := result.Cues()
	return &Content{
		Text: result.Text,
		SRT:  media.FormatSRT(cues),
		VTT:  media.FormatVTT(cues),
	}, nil
}
