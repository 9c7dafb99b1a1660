package validation

import (
	"net/url"
	"strings"

	"vidscribe/errors"
	"vidscribe/models"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateURL performs basic source URL validation.
func (v *Validator) ValidateURL(urlStr string) error {
	const op = "Validator.ValidateURL"

	if urlStr == "" {
		return errors.InvalidInput(op, nil, "URL is required")
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return errors.InvalidInput(op, err, "Invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.InvalidInput(op, nil, "URL must use HTTP or HTTPS")
	}

	if parsedURL.Hostname() == "" {
		return errors.InvalidInput(op, nil, "URL must include a host")
	}

	return nil
}

// IsCaptionedPlatform reports whether the URL belongs to a platform
// with downloadable subtitle tracks. The caption-first quality is only
// valid for these hosts.
func (v *Validator) IsCaptionedPlatform(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsedURL.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	switch host {
	case "youtube.com", "youtu.be", "youtube-nocookie.com":
		return true
	}
	return false
}

// ValidateRequest checks a submission payload before a job is created.
func (v *Validator) ValidateRequest(req *models.JobRequest) error {
	const op = "Validator.ValidateRequest"

	if err := v.ValidateURL(req.URL); err != nil {
		return err
	}

	if !req.Quality.Valid() {
		return errors.InvalidInput(op, nil, "Unknown quality tier")
	}

	if req.Quality == models.QualityCaptionFirst && !v.IsCaptionedPlatform(req.URL) {
		return errors.InvalidInput(op, nil, "Caption download is only supported for YouTube URLs")
	}

	if req.CallbackURL != "" {
		if err := v.ValidateURL(req.CallbackURL); err != nil {
			return errors.InvalidInput(op, err, "Invalid callback URL")
		}
	}

	switch req.ResponseFormat {
	case "", models.FormatPlainText, models.FormatURL, models.FormatVerbose:
	default:
		return errors.InvalidInput(op, nil, "Unknown response format")
	}

	return nil
}
