package summary

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vidscribe/credits"
	"vidscribe/errors"
	"vidscribe/models"
	"vidscribe/repository"
)

const (
	summaryInstruction = "Summarize the following video transcript in a few " +
		"concise paragraphs. Preserve the key points and any conclusions."
	ideasInstruction = "Read the following video transcript and propose a " +
		"numbered list of follow-up content ideas: topics, angles, and " +
		"formats a creator could make next."
)

// Derivative is the result of a derived-content operation. Derivatives
// are returned to the caller, not stored; re-running the operation
// charges again.
type Derivative struct {
	ID             string                 `json:"id"`
	JobID          string                 `json:"job_id"`
	Kind           models.TransactionKind `json:"kind"`
	Text           string                 `json:"text"`
	CreditsCharged int                    `json:"credits_charged"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Service charges for and produces derived content from completed
// transcription jobs. Each operation has its own fixed price and is
// refunded in full when generation fails.
type Service struct {
	jobs      repository.JobRepository
	ledger    *credits.Ledger
	pricing   *credits.Pricing
	generator Generator
	log       *logrus.Logger
}

func NewService(jobs repository.JobRepository, ledger *credits.Ledger, pricing *credits.Pricing, generator Generator, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		jobs:      jobs,
		ledger:    ledger,
		pricing:   pricing,
		generator: generator,
		log:       log,
	}
}

// Summarize produces a prose summary of a completed job's transcript.
func (s *Service) Summarize(ctx context.Context, jobID string) (*Derivative, error) {
	return s.derive(ctx, jobID, models.TxSummary, summaryInstruction)
}

// ContentIdeas produces follow-up content suggestions from a completed
// job's transcript.
func (s *Service) ContentIdeas(ctx context.Context, jobID string) (*Derivative, error) {
	return s.derive(ctx, jobID, models.TxContentIdeas, ideasInstruction)
}

func (s *Service) derive(ctx context.Context, jobID string, kind models.TransactionKind, instruction string) (*Derivative, error) {
	const op = "summary.Service.derive"

	job, err := s.jobs.Find(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsCompleted() {
		return nil, errors.InvalidInput(op, nil, "Job has no transcript yet")
	}
	if job.PlainText == "" {
		return nil, errors.InvalidInput(op, nil, "Job completed without transcript text")
	}

	cost, err := s.pricing.OperationCost(kind)
	if err != nil {
		return nil, err
	}

	derivedID := uuid.New().String()
	ref := credits.Ref{JobID: job.ID, DerivedJobID: derivedID}

	if _, err := s.ledger.Reserve(ctx, job.OwnerID, cost, kind, ref); err != nil {
		return nil, err
	}

	text, err := s.generator.Generate(ctx, instruction, job.PlainText)
	if err != nil {
		if _, refundErr := s.ledger.Refund(ctx, job.OwnerID, cost, ref); refundErr != nil {
			s.log.WithError(refundErr).WithFields(logrus.Fields{
				"job_id":     job.ID,
				"derived_id": derivedID,
			}).Error("Failed to refund derived-content charge")
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"derived_id": derivedID,
		"kind":       kind,
		"cost":       cost,
	}).Info("Derived content generated")

	return &Derivative{
		ID:             derivedID,
		JobID:          job.ID,
		Kind:           kind,
		Text:           text,
		CreditsCharged: cost,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
