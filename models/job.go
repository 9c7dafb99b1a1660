package models

import (
	"time"
)

type Status string

const (
	StatusPending                 Status = "pending"
	StatusPendingCreditDeduction  Status = "pending_credit_deduction"
	StatusProcessing              Status = "processing"
	StatusCompleted               Status = "completed"
	StatusFailed                  Status = "failed"
	StatusFailedInsufficientCreds Status = "failed_insufficient_credits"
)

type Quality string

const (
	QualityCaptionFirst Quality = "caption_first"
	QualityStandard     Quality = "standard"
	QualityPremium      Quality = "premium"
)

func (q Quality) Valid() bool {
	switch q {
	case QualityCaptionFirst, QualityStandard, QualityPremium:
		return true
	}
	return false
}

// ResponseFormat controls what the callback payload carries.
type ResponseFormat string

const (
	FormatPlainText ResponseFormat = "plain_text"
	FormatURL       ResponseFormat = "url"
	FormatVerbose   ResponseFormat = "verbose"
)

// Job is one unit of work turning a video URL into transcript and
// caption artifacts. Mutated exclusively by the orchestrator after
// submission; never deleted.
type Job struct {
	ID               string         `json:"id"`
	OwnerID          string         `json:"owner_id"`
	SourceURL        string         `json:"source_url"`
	RequestedQuality Quality        `json:"requested_quality"`
	ResolvedQuality  Quality        `json:"resolved_quality,omitempty"`
	Status           Status         `json:"status"`
	StatusMessage    string         `json:"status_message,omitempty"`
	CallbackURL      string         `json:"callback_url,omitempty"`
	ResponseFormat   ResponseFormat `json:"response_format,omitempty"`
	AllowDegrade     bool           `json:"allow_degrade"`

	// DurationMinutes is nil until metadata has been fetched. A non-nil
	// zero means the probe ran and the platform would not report a
	// duration, which is tolerated only for caption-first jobs.
	DurationMinutes *float64 `json:"duration_minutes,omitempty"`

	// CreditsCharged is set if and only if a matching ledger transaction
	// references this job.
	CreditsCharged *int `json:"credits_charged,omitempty"`

	PlainText      string `json:"plain_text,omitempty"`
	CaptionSRTText string `json:"caption_srt_text,omitempty"`
	CaptionVTTText string `json:"caption_vtt_text,omitempty"`
	PlainTextURL   string `json:"plain_text_url,omitempty"`
	CaptionSRTURL  string `json:"caption_srt_url,omitempty"`
	CaptionVTTURL  string `json:"caption_vtt_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusFailedInsufficientCreds:
		return true
	}
	return false
}

func (j *Job) IsProcessing() bool { return j.Status == StatusProcessing }
func (j *Job) IsCompleted() bool  { return j.Status == StatusCompleted }

// EffectiveQuality is the quality the job actually ran at, accounting
// for the premium-to-standard degrade path.
func (j *Job) EffectiveQuality() Quality {
	if j.ResolvedQuality != "" {
		return j.ResolvedQuality
	}
	return j.RequestedQuality
}
