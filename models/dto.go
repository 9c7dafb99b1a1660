package models

// JobRequest is the incoming submission payload.
type JobRequest struct {
	URL            string         `json:"url"`
	Quality        Quality        `json:"quality"`
	CallbackURL    string         `json:"callback_url,omitempty"`
	ResponseFormat ResponseFormat `json:"response_format,omitempty"`
	AllowDegrade   bool           `json:"allow_degrade,omitempty"`
}

// JobResponse is the API view of a job. Internal fields (owner,
// callback) stay out of it.
type JobResponse struct {
	ID              string   `json:"id"`
	SourceURL       string   `json:"source_url"`
	Quality         Quality  `json:"quality"`
	Status          Status   `json:"status"`
	StatusMessage   string   `json:"status_message,omitempty"`
	DurationMinutes *float64 `json:"duration_minutes,omitempty"`
	CreditsCharged  *int     `json:"credits_charged,omitempty"`
	PlainText       string   `json:"plain_text,omitempty"`
	PlainTextURL    string   `json:"plain_text_url,omitempty"`
	CaptionSRTURL   string   `json:"caption_srt_url,omitempty"`
	CaptionVTTURL   string   `json:"caption_vtt_url,omitempty"`
}

func NewJobResponse(j *Job) *JobResponse {
	return &JobResponse{
		ID:              j.ID,
		SourceURL:       j.SourceURL,
		Quality:         j.EffectiveQuality(),
		Status:          j.Status,
		StatusMessage:   j.StatusMessage,
		DurationMinutes: j.DurationMinutes,
		CreditsCharged:  j.CreditsCharged,
		PlainText:       j.PlainText,
		PlainTextURL:    j.PlainTextURL,
		CaptionSRTURL:   j.CaptionSRTURL,
		CaptionVTTURL:   j.CaptionVTTURL,
	}
}
