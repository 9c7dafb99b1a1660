package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"vidscribe/models"
)

// Payload is the callback body delivered when a job reaches a terminal
// state. Content fields depend on the job's response format: plain_text
// inlines the transcript, url carries artifact links, verbose sends
// both.
type Payload struct {
	JobID      string `json:"job_id"`
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Quality    string `json:"quality,omitempty"`

	PlainText      string `json:"plain_text,omitempty"`
	CaptionSRTText string `json:"caption_srt_text,omitempty"`
	CaptionVTTText string `json:"caption_vtt_text,omitempty"`
	PlainTextURL   string `json:"plain_text_url,omitempty"`
	CaptionSRTURL  string `json:"caption_srt_url,omitempty"`
	CaptionVTTURL  string `json:"caption_vtt_url,omitempty"`
}

// Notifier POSTs terminal-state callbacks. Delivery is best-effort:
// failures are logged and abandoned, never retried, and never affect
// the job's stored state. A shared rate limiter paces outbound calls
// so a burst of completions cannot hammer customer endpoints.
type Notifier struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *logrus.Logger
}

func NewNotifier(requestTimeout time.Duration, perSecond float64, log *logrus.Logger) *Notifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if perSecond <= 0 {
		perSecond = 10
	}
	return &Notifier{
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(perSecond)),
		log:     log,
	}
}

// JobFinished sends the terminal callback for a job. Jobs without a
// callback URL are skipped silently.
func (n *Notifier) JobFinished(ctx context.Context, job *models.Job) {
	if job.CallbackURL == "" {
		return
	}

	payload := buildPayload(job)

	if err := n.limiter.Wait(ctx); err != nil {
		n.log.WithError(err).WithField("job_id", job.ID).Warn("Callback abandoned while waiting for rate limiter")
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.WithError(err).WithField("job_id", job.ID).Error("Failed to encode callback payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.CallbackURL, bytes.NewReader(body))
	if err != nil {
		n.log.WithError(err).WithField("job_id", job.ID).Error("Failed to build callback request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.WithError(err).WithFields(logrus.Fields{
			"job_id": job.ID,
			"url":    job.CallbackURL,
		}).Warn("Callback delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.WithFields(logrus.Fields{
			"job_id": job.ID,
			"url":    job.CallbackURL,
			"status": resp.StatusCode,
		}).Warn("Callback endpoint returned non-success status")
		return
	}

	n.log.WithField("job_id", job.ID).Info("Callback delivered")
}

func buildPayload(job *models.Job) Payload {
	p := Payload{
		JobID:   job.ID,
		Status:  string(job.Status),
		Message: job.StatusMessage,
	}

	switch job.Status {
	case models.StatusCompleted:
		p.StatusCode = http.StatusOK
	case models.StatusFailedInsufficientCreds:
		p.StatusCode = http.StatusPaymentRequired
	default:
		p.StatusCode = http.StatusInternalServerError
	}

	if !job.IsCompleted() {
		return p
	}

	p.Quality = string(job.EffectiveQuality())

	format := job.ResponseFormat
	if format == "" {
		format = models.FormatPlainText
	}

	if format == models.FormatPlainText || format == models.FormatVerbose {
		p.PlainText = job.PlainText
		p.CaptionSRTText = job.CaptionSRTText
		p.CaptionVTTText = job.CaptionVTTText
	}
	if format == models.FormatURL || format == models.FormatVerbose {
		p.PlainTextURL = job.PlainTextURL
		p.CaptionSRTURL = job.CaptionSRTURL
		p.CaptionVTTURL = job.CaptionVTTURL
	}

	return p
}
