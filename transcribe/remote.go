package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"vidscribe/config"
	"vidscribe/errors"
	"vidscribe/media"
	"vidscribe/ratelimit"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2
)

// RemoteEngine submits audio to an OpenAI-compatible transcription API.
// Files over the provider's upload ceiling are split at silence
// boundaries and the chunk transcripts merged back together.
type RemoteEngine struct {
	cfg     config.RemoteConfig
	tracker ratelimit.Tracker
	chunker *media.Chunker
	client  *http.Client
	log     *logrus.Logger
}

func NewRemoteEngine(cfg config.RemoteConfig, tracker ratelimit.Tracker, chunker *media.Chunker, log *logrus.Logger) *RemoteEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RemoteEngine{
		cfg:     cfg,
		tracker: tracker,
		chunker: chunker,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		log:     log,
	}
}

func (e *RemoteEngine) Name() string { return "remote-api" }

type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (e *RemoteEngine) Transcribe(ctx context.Context, audioPath string, durationSeconds float64) (*Result, error) {
	const op = "RemoteEngine.Transcribe"

	seconds := int(durationSeconds)
	decision, err := e.tracker.CanProcess(ctx, seconds)
	if err != nil {
		return nil, errors.Internal(op, err, "Rate tracker check failed")
	}
	if !decision.Allowed {
		e.log.WithFields(logrus.Fields{
			"hourly_remaining": decision.HourlyRemaining,
			"daily_remaining":  decision.DailyRemaining,
			"wait":             decision.EstimatedWait,
		}).Warn("Remote quota exhausted, refusing submission")
		return nil, errors.RateLimited(op, nil,
			fmt.Sprintf("Remote transcription quota exhausted, retry in %s", decision.EstimatedWait.Round(time.Second)))
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, errors.Internal(op, err, "Audio file missing")
	}

	var result *Result
	if info.Size() > e.cfg.MaxFileBytes {
		result, err = e.transcribeChunked(ctx, audioPath, durationSeconds)
	} else {
		result, err = e.transcribeFile(ctx, audioPath)
	}
	if err != nil {
		return nil, err
	}

	if trackErr := e.tracker.TrackUsage(ctx, seconds); trackErr != nil {
		e.log.WithError(trackErr).Warn("Failed to record remote usage")
	}

	result.DurationSeconds = durationSeconds
	result.Engine = e.Name()
	return result, nil
}

func (e *RemoteEngine) transcribeChunked(ctx context.Context, audioPath string, durationSeconds float64) (*Result, error) {
	const op = "RemoteEngine.transcribeChunked"

	paths, err := e.chunker.Split(ctx, audioPath, durationSeconds)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, p := range paths {
			if p != audioPath {
				os.Remove(p)
			}
		}
	}()

	e.log.WithFields(logrus.Fields{
		"path":   audioPath,
		"chunks": len(paths),
	}).Info("Transcribing oversize file in chunks")

	var (
		texts    []string
		segments []Segment
		language string
		offset   float64
	)
	for i, p := range paths {
		chunk, err := e.transcribeFile(ctx, p)
		if err != nil {
			return nil, errors.Internal(op, err, fmt.Sprintf("Chunk %d of %d failed", i+1, len(paths)))
		}

		texts = append(texts, chunk.Text)
		if language == "" {
			language = chunk.Language
		}
		for _, seg := range chunk.Segments {
			segments = append(segments, Segment{
				Start: seg.Start + offset,
				End:   seg.End + offset,
				Text:  seg.Text,
			})
		}

		// Advance by the provider-reported chunk duration, falling back
		// to the last segment boundary when it is absent.
		switch {
		case chunk.DurationSeconds > 0:
			offset += chunk.DurationSeconds
		case len(chunk.Segments) > 0:
			offset += chunk.Segments[len(chunk.Segments)-1].End
		}
	}

	return &Result{
		Text:     media.MergeTranscripts(texts),
		Segments: segments,
		Language: language,
	}, nil
}

// transcribeFile submits one upload-sized file, retrying transient
// failures with exponential backoff. Rate-limit responses are never
// retried; the provider's counters are reconciled and the error
// surfaces so the job can fall back or fail.
func (e *RemoteEngine) transcribeFile(ctx context.Context, path string) (*Result, error) {
	const op = "RemoteEngine.transcribeFile"

	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		result, retryable, err := e.doRequest(ctx, path)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}

		lastErr = err
		e.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"backoff": backoff,
		}).Warn("Remote transcription attempt failed")

		if attempt == e.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Internal(op, ctx.Err(), "Transcription cancelled")
		case <-time.After(backoff):
		}
		backoff *= backoffFactor
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return nil, errors.Internal(op, lastErr,
		fmt.Sprintf("Remote transcription failed after %d attempts", e.cfg.MaxRetries))
}

// doRequest performs one API call. The second return reports whether
// the failure is worth retrying.
func (e *RemoteEngine) doRequest(ctx context.Context, path string) (*Result, bool, error) {
	const op = "RemoteEngine.doRequest"

	body, contentType, err := e.buildRequestBody(path)
	if err != nil {
		return nil, false, err
	}

	url := strings.TrimSuffix(e.cfg.BaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, false, errors.Internal(op, err, "Failed to build request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, errors.Internal(op, err, "Request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, errors.Internal(op, err, "Failed to read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var out verboseResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, false, errors.Internal(op, err, "Failed to parse transcription response")
		}
		result := &Result{
			Text:            strings.TrimSpace(out.Text),
			Language:        out.Language,
			DurationSeconds: out.Duration,
		}
		for _, seg := range out.Segments {
			result.Segments = append(result.Segments, Segment{
				Start: seg.Start,
				End:   seg.End,
				Text:  strings.TrimSpace(seg.Text),
			})
		}
		return result, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, e.handleRateLimit(ctx, resp, respBody)

	case resp.StatusCode >= 500:
		return nil, true, errors.Internal(op, nil,
			fmt.Sprintf("Provider error %d: %s", resp.StatusCode, truncateBody(respBody)))

	default:
		return nil, false, errors.Internal(op, nil,
			fmt.Sprintf("Provider rejected request with %d: %s", resp.StatusCode, truncateBody(respBody)))
	}
}

var usedSecondsRe = regexp.MustCompile(`(?i)used\s+(\d+)`)

// handleRateLimit feeds the provider's authoritative usage figure back
// into the tracker so local counters stop drifting, then surfaces a
// rate-limit error for the caller's fallback logic.
func (e *RemoteEngine) handleRateLimit(ctx context.Context, resp *http.Response, body []byte) error {
	const op = "RemoteEngine.handleRateLimit"

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	usedSeconds := -1
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if m := usedSecondsRe.FindStringSubmatch(apiErr.Error.Message); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				usedSeconds = v
			}
		}
	}

	if usedSeconds >= 0 {
		if err := e.tracker.Reconcile(ctx, usedSeconds, retryAfter); err != nil {
			e.log.WithError(err).Warn("Failed to reconcile rate tracker")
		}
	}

	e.log.WithFields(logrus.Fields{
		"used_seconds": usedSeconds,
		"retry_after":  retryAfter,
	}).Warn("Provider rate limit hit")

	return errors.RateLimited(op, nil, "Remote transcription provider rate limit reached")
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func (e *RemoteEngine) buildRequestBody(path string) (*bytes.Buffer, string, error) {
	const op = "RemoteEngine.buildRequestBody"

	f, err := os.Open(path)
	if err != nil {
		return nil, "", errors.Internal(op, err, "Failed to open audio file")
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", errors.Internal(op, err, "Failed to build multipart body")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", errors.Internal(op, err, "Failed to read audio file")
	}
	if err := w.WriteField("model", e.cfg.Model); err != nil {
		return nil, "", errors.Internal(op, err, "Failed to build multipart body")
	}
	if err := w.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", errors.Internal(op, err, "Failed to build multipart body")
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Internal(op, err, "Failed to finalize multipart body")
	}

	return &buf, w.FormDataContentType(), nil
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
