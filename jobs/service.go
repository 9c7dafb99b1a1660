package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vidscribe/credits"
	"vidscribe/errors"
	"vidscribe/media"
	"vidscribe/models"
	"vidscribe/repository"
	"vidscribe/storage"
	"vidscribe/validation"
)

// MetadataProber resolves a video's metadata before any charge.
type MetadataProber interface {
	Probe(ctx context.Context, url string) (*media.Metadata, error)
}

// Notifier delivers terminal-state callbacks. Best-effort; the
// orchestrator never inspects the outcome.
type Notifier interface {
	JobFinished(ctx context.Context, job *models.Job)
}

// Service drives a job from pending to a terminal state: metadata,
// credit reservation, acquisition with the premium degrade path,
// artifact persistence, completion. It is the only writer of job rows
// after submission.
type Service struct {
	repo      repository.JobRepository
	ledger    *credits.Ledger
	pricing   *credits.Pricing
	prober    MetadataProber
	strategy  map[models.Quality]Strategy
	store     storage.Store
	notifier  Notifier
	validator *validation.Validator
	log       *logrus.Logger
}

func NewService(
	repo repository.JobRepository,
	ledger *credits.Ledger,
	pricing *credits.Pricing,
	prober MetadataProber,
	strategies map[models.Quality]Strategy,
	store storage.Store,
	notifier Notifier,
	log *logrus.Logger,
) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		repo:      repo,
		ledger:    ledger,
		pricing:   pricing,
		prober:    prober,
		strategy:  strategies,
		store:     store,
		notifier:  notifier,
		validator: validation.NewValidator(),
		log:       log,
	}
}

// Process runs one job to a terminal state. Safe under queue
// redelivery: terminal jobs are skipped, and a job that already
// carries a charge is never charged again.
func (s *Service) Process(ctx context.Context, jobID string) error {
	job, err := s.repo.Find(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		s.log.WithFields(logrus.Fields{
			"job_id": job.ID,
			"status": job.Status,
		}).Info("Skipping redelivered terminal job")
		return nil
	}

	log := s.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"quality": job.RequestedQuality,
	})
	log.Info("Processing job")

	if err := s.resolveMetadata(ctx, job); err != nil {
		return s.fail(ctx, job, err)
	}

	if err := s.reserveCredits(ctx, job); err != nil {
		if errors.IsInsufficientCredits(err) {
			return s.failInsufficientCredits(ctx, job, err)
		}
		return s.fail(ctx, job, err)
	}

	if err := s.transition(ctx, job, models.StatusProcessing); err != nil {
		return s.fail(ctx, job, err)
	}

	content, err := s.acquire(ctx, job)
	if err != nil {
		return s.fail(ctx, job, err)
	}

	if err := s.persistArtifacts(ctx, job, content); err != nil {
		return s.fail(ctx, job, err)
	}

	job.Status = models.StatusCompleted
	job.StatusMessage = ""
	if err := s.save(ctx, job); err != nil {
		return s.fail(ctx, job, err)
	}

	log.WithField("resolved_quality", job.EffectiveQuality()).Info("Job completed")
	s.notifier.JobFinished(ctx, job)
	return nil
}

// resolveMetadata probes the source for its duration. A failed probe
// is tolerated only for caption-first jobs on a recognized platform,
// where length does not affect price; the explicit zero records that
// the probe ran and the platform would not say.
func (s *Service) resolveMetadata(ctx context.Context, job *models.Job) error {
	if job.DurationMinutes != nil {
		return nil
	}

	meta, err := s.prober.Probe(ctx, job.SourceURL)
	if err != nil {
		if job.RequestedQuality == models.QualityCaptionFirst && s.validator.IsCaptionedPlatform(job.SourceURL) {
			s.log.WithError(err).WithField("job_id", job.ID).Warn("Metadata probe failed, tolerated for caption-first job")
			zero := 0.0
			job.DurationMinutes = &zero
			return s.save(ctx, job)
		}
		return err
	}

	minutes := meta.DurationMinutes()
	job.DurationMinutes = &minutes
	return s.save(ctx, job)
}

func (s *Service) reserveCredits(ctx context.Context, job *models.Job) error {
	if job.CreditsCharged != nil {
		// A prior delivery already paid; do not charge twice.
		return nil
	}

	if err := s.transition(ctx, job, models.StatusPendingCreditDeduction); err != nil {
		return err
	}

	cost, err := s.pricing.Cost(job.RequestedQuality, job.DurationMinutes)
	if err != nil {
		return err
	}

	kind := models.TxTranscription
	if job.RequestedQuality == models.QualityCaptionFirst {
		kind = models.TxCaptionDownload
	}
	if _, err := s.ledger.Reserve(ctx, job.OwnerID, cost, kind, credits.Ref{JobID: job.ID}); err != nil {
		return err
	}

	job.CreditsCharged = &cost
	return s.save(ctx, job)
}

// acquire runs the job's acquisition strategy. A premium job that hits
// the remote provider's rate limit, and was submitted with permission
// to degrade, reruns on the standard strategy and records the
// substitution; the original charge stands.
func (s *Service) acquire(ctx context.Context, job *models.Job) (*Content, error) {
	const op = "jobs.Service.acquire"

	strat, ok := s.strategy[job.RequestedQuality]
	if !ok {
		return nil, errors.Internal(op, nil, fmt.Sprintf("No strategy for quality %q", job.RequestedQuality))
	}

	content, err := strat.Acquire(ctx, job)
	if err == nil {
		return content, nil
	}

	if job.RequestedQuality == models.QualityPremium && job.AllowDegrade && errors.IsRateLimited(err) {
		s.log.WithError(err).WithField("job_id", job.ID).Warn("Premium engine rate limited, degrading to standard")

		fallback, ok := s.strategy[models.QualityStandard]
		if !ok {
			return nil, err
		}
		content, fbErr := fallback.Acquire(ctx, job)
		if fbErr != nil {
			return nil, fbErr
		}

		job.ResolvedQuality = models.QualityStandard
		if saveErr := s.save(ctx, job); saveErr != nil {
			return nil, saveErr
		}
		return content, nil
	}

	return nil, err
}

func (s *Service) persistArtifacts(ctx context.Context, job *models.Job, content *Content) error {
	artifacts := []struct {
		text        string
		key         string
		contentType string
		textField   *string
		urlField    *string
	}{
		{content.Text, "jobs/" + job.ID + "/transcript.txt", storage.ContentTypeText, &job.PlainText, &job.PlainTextURL},
		{content.SRT, "jobs/" + job.ID + "/captions.srt", storage.ContentTypeSRT, &job.CaptionSRTText, &job.CaptionSRTURL},
		{content.VTT, "jobs/" + job.ID + "/captions.vtt", storage.ContentTypeVTT, &job.CaptionVTTText, &job.CaptionVTTURL},
	}

	for _, a := range artifacts {
		if a.text == "" {
			continue
		}
		url, err := s.store.Save(ctx, a.key, []byte(a.text), a.contentType)
		if err != nil {
			return err
		}
		*a.textField = a.text
		*a.urlField = url
	}

	return s.save(ctx, job)
}

func (s *Service) transition(ctx context.Context, job *models.Job, status models.Status) error {
	job.Status = status
	return s.save(ctx, job)
}

// save is the single write path after submission; every mutation
// refreshes UpdatedAt so the row always reflects its last transition.
func (s *Service) save(ctx context.Context, job *models.Job) error {
	job.UpdatedAt = time.Now().UTC()
	return s.repo.Save(ctx, job)
}

// fail moves the job to failed, refunding at most once if a charge was
// applied. Refund failure is logged, never retried; the job still
// terminates.
func (s *Service) fail(ctx context.Context, job *models.Job, cause error) error {
	if job.CreditsCharged != nil {
		amount := *job.CreditsCharged
		if _, err := s.ledger.Refund(ctx, job.OwnerID, amount, credits.Ref{JobID: job.ID}); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"job_id": job.ID,
				"amount": amount,
			}).Error("Refund failed for failed job")
		}
	}

	job.Status = models.StatusFailed
	job.StatusMessage = errors.Message(cause)
	if err := s.save(ctx, job); err != nil {
		s.log.WithError(err).WithField("job_id", job.ID).Error("Failed to persist failure state")
	}

	s.log.WithError(cause).WithField("job_id", job.ID).Error("Job failed")
	s.notifier.JobFinished(ctx, job)
	return cause
}

// failInsufficientCredits terminates without refund; the reservation
// never wrote anything.
func (s *Service) failInsufficientCredits(ctx context.Context, job *models.Job, cause error) error {
	job.Status = models.StatusFailedInsufficientCreds
	job.StatusMessage = errors.Message(cause)
	if err := s.save(ctx, job); err != nil {
		s.log.WithError(err).WithField("job_id", job.ID).Error("Failed to persist failure state")
	}

	s.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"owner_id": job.OwnerID,
	}).Warn("Job failed on insufficient credits")
	s.notifier.JobFinished(ctx, job)
	return cause
}

// Submit validates a request, persists the job in pending, and hands
// it to the queue. Enqueue failure rolls nothing back; the job stays
// pending and surfaces the error to the caller.
func (s *Service) Submit(ctx context.Context, ownerID string, req *models.JobRequest, enqueue func(context.Context, *models.Job) error) (*models.Job, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		SourceURL:        req.URL,
		RequestedQuality: req.Quality,
		Status:           models.StatusPending,
		CallbackURL:      req.CallbackURL,
		ResponseFormat:   req.ResponseFormat,
		AllowDegrade:     req.AllowDegrade,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}
	if err := enqueue(ctx, job); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"quality": job.RequestedQuality,
	}).Info("Job submitted")
	return job, nil
}

// Find loads one job by id.
func (s *Service) Find(ctx context.Context, id string) (*models.Job, error) {
	return s.repo.Find(ctx, id)
}

// Abort force-fails a non-terminal job through the regular failure
// path, refunding any applied charge. Workers use it when processing
// died without returning, so the job cannot stay stuck in an
// intermediate state with its credits held.
func (s *Service) Abort(ctx context.Context, jobID string, cause error) error {
	job, err := s.repo.Find(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return nil
	}
	s.fail(ctx, job, cause)
	return nil
}
