package sqlite

import (
	"context"
	"database/sql"
	"time"

	"vidscribe/errors"
	"vidscribe/models"
)

const (
	upsertJobQuery = `
        INSERT INTO jobs (
            id, owner_id, source_url, requested_quality, resolved_quality,
            status, status_message, callback_url, response_format, allow_degrade,
            duration_minutes, credits_charged,
            plain_text, caption_srt_text, caption_vtt_text,
            plain_text_url, caption_srt_url, caption_vtt_url,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            resolved_quality = excluded.resolved_quality,
            status = excluded.status,
            status_message = excluded.status_message,
            duration_minutes = excluded.duration_minutes,
            credits_charged = excluded.credits_charged,
            plain_text = excluded.plain_text,
            caption_srt_text = excluded.caption_srt_text,
            caption_vtt_text = excluded.caption_vtt_text,
            plain_text_url = excluded.plain_text_url,
            caption_srt_url = excluded.caption_srt_url,
            caption_vtt_url = excluded.caption_vtt_url,
            updated_at = excluded.updated_at
    `

	selectJobColumns = `
        SELECT id, owner_id, source_url, requested_quality, resolved_quality,
               status, status_message, callback_url, response_format, allow_degrade,
               duration_minutes, credits_charged,
               plain_text, caption_srt_text, caption_vtt_text,
               plain_text_url, caption_srt_url, caption_vtt_url,
               created_at, updated_at
        FROM jobs`

	getJobQuery = selectJobColumns + ` WHERE id = ?`

	getJobsByOwnerQuery = selectJobColumns + ` WHERE owner_id = ? ORDER BY created_at DESC LIMIT ?`
)

// JobRepository is the sqlite implementation of repository.JobRepository.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Save(ctx context.Context, job *models.Job) error {
	const op = "JobRepository.Save"

	for i := 0; i < 3; i++ { // Simple retry for transient sqlite lock errors
		err := r.save(ctx, job)
		if err == nil {
			return nil
		}
		if !isLockError(err) {
			return errors.Internal(op, err, "Failed to save job")
		}
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return errors.Internal(op, nil, "Failed after retries")
}

func (r *JobRepository) save(ctx context.Context, job *models.Job) error {
	_, err := r.db.ExecContext(ctx, upsertJobQuery,
		job.ID,
		job.OwnerID,
		job.SourceURL,
		string(job.RequestedQuality),
		nullString(string(job.ResolvedQuality)),
		string(job.Status),
		nullString(job.StatusMessage),
		nullString(job.CallbackURL),
		nullString(string(job.ResponseFormat)),
		job.AllowDegrade,
		job.DurationMinutes,
		job.CreditsCharged,
		nullString(job.PlainText),
		nullString(job.CaptionSRTText),
		nullString(job.CaptionVTTText),
		nullString(job.PlainTextURL),
		nullString(job.CaptionSRTURL),
		nullString(job.CaptionVTTURL),
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (r *JobRepository) Find(ctx context.Context, id string) (*models.Job, error) {
	const op = "JobRepository.Find"

	job, err := scanJob(r.db.QueryRowContext(ctx, getJobQuery, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "Job not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query job")
	}
	return job, nil
}

func (r *JobRepository) FindByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Job, error) {
	const op = "JobRepository.FindByOwner"

	rows, err := r.db.QueryContext(ctx, getJobsByOwnerQuery, ownerID, limit)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query jobs")
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Internal(op, err, "Failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed reading job rows")
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	job := &models.Job{}
	var (
		requestedQuality, status                         string
		resolvedQuality, statusMessage                   sql.NullString
		callbackURL, responseFormat                      sql.NullString
		plainText, srtText, vttText                      sql.NullString
		plainTextURL, srtURL, vttURL                     sql.NullString
		durationMinutes                                  sql.NullFloat64
		creditsCharged                                   sql.NullInt64
	)

	err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.SourceURL,
		&requestedQuality,
		&resolvedQuality,
		&status,
		&statusMessage,
		&callbackURL,
		&responseFormat,
		&job.AllowDegrade,
		&durationMinutes,
		&creditsCharged,
		&plainText,
		&srtText,
		&vttText,
		&plainTextURL,
		&srtURL,
		&vttURL,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.RequestedQuality = models.Quality(requestedQuality)
	job.ResolvedQuality = models.Quality(resolvedQuality.String)
	job.Status = models.Status(status)
	job.StatusMessage = statusMessage.String
	job.CallbackURL = callbackURL.String
	job.ResponseFormat = models.ResponseFormat(responseFormat.String)
	job.PlainText = plainText.String
	job.CaptionSRTText = srtText.String
	job.CaptionVTTText = vttText.String
	job.PlainTextURL = plainTextURL.String
	job.CaptionSRTURL = srtURL.String
	job.CaptionVTTURL = vttURL.String

	if durationMinutes.Valid {
		d := durationMinutes.Float64
		job.DurationMinutes = &d
	}
	if creditsCharged.Valid {
		c := int(creditsCharged.Int64)
		job.CreditsCharged = &c
	}

	return job, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
