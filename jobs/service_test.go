package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"vidscribe/config"
	"vidscribe/credits"
	"vidscribe/errors"
	"vidscribe/media"
	"vidscribe/models"
)

type fakeJobRepo struct {
	jobs  map[string]*models.Job
	saves int
}

func (f *fakeJobRepo) Save(_ context.Context, job *models.Job) error {
	f.saves++
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobRepo) Find(_ context.Context, id string) (*models.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, errors.NotFound("fakeJobRepo.Find", nil, "Job not found")
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobRepo) FindByOwner(context.Context, string, int) ([]*models.Job, error) {
	return nil, nil
}

type fakeLedgerRepo struct {
	balances map[string]int
	entries  []*models.CreditTransaction
}

func (f *fakeLedgerRepo) Balance(_ context.Context, ownerID string) (int, error) {
	return f.balances[ownerID], nil
}

func (f *fakeLedgerRepo) Deduct(_ context.Context, tx *models.CreditTransaction) (int, error) {
	balance := f.balances[tx.OwnerID]
	if balance < tx.Amount {
		return 0, errors.InsufficientCredits("fakeLedgerRepo.Deduct", nil, "Insufficient credits")
	}
	f.balances[tx.OwnerID] = balance - tx.Amount
	f.entries = append(f.entries, tx)
	return f.balances[tx.OwnerID], nil
}

func (f *fakeLedgerRepo) Add(_ context.Context, tx *models.CreditTransaction) (int, error) {
	f.balances[tx.OwnerID] += tx.Amount
	f.entries = append(f.entries, tx)
	return f.balances[tx.OwnerID], nil
}

func (f *fakeLedgerRepo) SetBalance(_ context.Context, ownerID string, amount int, _ models.TransactionKind) (int, error) {
	f.balances[ownerID] = amount
	return amount, nil
}

func (f *fakeLedgerRepo) TransactionsByOwner(context.Context, string, int) ([]*models.CreditTransaction, error) {
	return f.entries, nil
}

func (f *fakeLedgerRepo) TransactionsByJob(_ context.Context, jobID string) ([]*models.CreditTransaction, error) {
	var out []*models.CreditTransaction
	for _, e := range f.entries {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeProber struct {
	meta *media.Metadata
	err  error
}

func (f *fakeProber) Probe(context.Context, string) (*media.Metadata, error) {
	return f.meta, f.err
}

type fakeStrategy struct {
	content *Content
	errs    []error
	calls   int
}

func (f *fakeStrategy) Acquire(context.Context, *models.Job) (*Content, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.content, nil
}

type fakeStore struct {
	saved map[string]string
	err   error
}

func (f *fakeStore) Save(_ context.Context, key string, content []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.saved == nil {
		f.saved = map[string]string{}
	}
	f.saved[key] = string(content)
	return "https://artifacts.test/" + key, nil
}

func (f *fakeStore) Read(_ context.Context, key string) ([]byte, error) {
	return []byte(f.saved[key]), nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.saved[key]
	return ok, nil
}

type fakeNotifier struct {
	finished []*models.Job
}

func (f *fakeNotifier) JobFinished(_ context.Context, job *models.Job) {
	copied := *job
	f.finished = append(f.finished, &copied)
}

type fixture struct {
	repo     *fakeJobRepo
	ledger   *fakeLedgerRepo
	notifier *fakeNotifier
	store    *fakeStore
	standard *fakeStrategy
	premium  *fakeStrategy
	captions *fakeStrategy
	service  *Service
}

func newFixture(t *testing.T, balance int, prober MetadataProber) *fixture {
	t.Helper()

	pricing, err := credits.NewPricing(config.CreditsConfig{
		CaptionFirstCost:  2,
		StandardBlockRate: 5,
		PremiumBlockRate:  10,
		SummaryCost:       3,
		ContentIdeasCost:  2,
		BlockMinutes:      10,
		FreeTierAllowance: 10,
		FreeTierCap:       60,
	})
	if err != nil {
		t.Fatalf("NewPricing() error = %v", err)
	}

	f := &fixture{
		repo:     &fakeJobRepo{jobs: map[string]*models.Job{}},
		ledger:   &fakeLedgerRepo{balances: map[string]int{}},
		notifier: &fakeNotifier{},
		store:    &fakeStore{},
		standard: &fakeStrategy{content: &Content{Text: "standard text", SRT: "srt", VTT: "vtt"}},
		premium:  &fakeStrategy{content: &Content{Text: "premium text", SRT: "srt", VTT: "vtt"}},
		captions: &fakeStrategy{content: &Content{Text: "caption text", SRT: "srt", VTT: "vtt"}},
	}
	f.ledger.balances["owner-1"] = balance

	strategies := map[models.Quality]Strategy{
		models.QualityStandard:     f.standard,
		models.QualityPremium:      f.premium,
		models.QualityCaptionFirst: f.captions,
	}

	f.service = NewService(
		f.repo,
		credits.NewLedger(f.ledger, 60, nil),
		pricing,
		prober,
		strategies,
		f.store,
		f.notifier,
		nil,
	)
	return f
}

func (f *fixture) addJob(job *models.Job) {
	f.repo.jobs[job.ID] = job
}

func minutesMeta(m float64) *fakeProber {
	return &fakeProber{meta: &media.Metadata{DurationSeconds: m * 60}}
}

// Balance 100, standard 12-minute job at 5 credits per block: two
// blocks, 10 credits, balance 90, job completes.
func TestProcessStandardJobChargesAndCompletes(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityStandard,
		Status:           models.StatusPending,
	})

	if err := f.service.Process(context.Background(), "job-1"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	job := f.repo.jobs["job-1"]
	if job.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.CreditsCharged == nil || *job.CreditsCharged != 10 {
		t.Errorf("CreditsCharged = %v, want 10", job.CreditsCharged)
	}
	if f.ledger.balances["owner-1"] != 90 {
		t.Errorf("balance = %d, want 90", f.ledger.balances["owner-1"])
	}
	if job.PlainText != "standard text" {
		t.Errorf("PlainText = %q", job.PlainText)
	}
	if job.PlainTextURL == "" || job.CaptionSRTURL == "" || job.CaptionVTTURL == "" {
		t.Errorf("artifact URLs missing: %q %q %q", job.PlainTextURL, job.CaptionSRTURL, job.CaptionVTTURL)
	}
	if len(f.notifier.finished) != 1 || f.notifier.finished[0].Status != models.StatusCompleted {
		t.Errorf("notifier calls = %+v", f.notifier.finished)
	}
	if len(f.store.saved) != 3 {
		t.Errorf("saved %d artifacts, want 3", len(f.store.saved))
	}
}

// Balance 3 against a 10-credit job: no charge, no rows, distinct
// terminal state.
func TestProcessInsufficientCredits(t *testing.T) {
	f := newFixture(t, 3, minutesMeta(12))
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityStandard,
		Status:           models.StatusPending,
	})

	if err := f.service.Process(context.Background(), "job-1"); err == nil {
		t.Fatal("expected error")
	}

	job := f.repo.jobs["job-1"]
	if job.Status != models.StatusFailedInsufficientCreds {
		t.Fatalf("status = %s, want failed_insufficient_credits", job.Status)
	}
	if job.CreditsCharged != nil {
		t.Errorf("CreditsCharged = %v, want nil", job.CreditsCharged)
	}
	if f.ledger.balances["owner-1"] != 3 {
		t.Errorf("balance = %d, want untouched 3", f.ledger.balances["owner-1"])
	}
	if len(f.ledger.entries) != 0 {
		t.Errorf("ledger has %d entries, want none", len(f.ledger.entries))
	}
	if f.standard.calls != 0 {
		t.Error("acquisition must not run after a failed reservation")
	}
	if len(f.notifier.finished) != 1 {
		t.Errorf("notifier called %d times, want 1", len(f.notifier.finished))
	}
}

// Reservation succeeds, acquisition throws: exactly one refund equal
// to the charge, balance restored, job failed with the cause.
func TestProcessRefundsOnAcquisitionFailure(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(35))
	f.standard.errs = []error{errors.Internal("test", nil, "engine exploded")}
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityStandard,
		Status:           models.StatusPending,
	})

	if err := f.service.Process(context.Background(), "job-1"); err == nil {
		t.Fatal("expected error")
	}

	job := f.repo.jobs["job-1"]
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.StatusMessage != "engine exploded" {
		t.Errorf("StatusMessage = %q", job.StatusMessage)
	}
	if f.ledger.balances["owner-1"] != 100 {
		t.Errorf("balance = %d, want restored 100", f.ledger.balances["owner-1"])
	}

	var charges, refunds []*models.CreditTransaction
	for _, e := range f.ledger.entries {
		if e.Kind == models.TxRefund {
			refunds = append(refunds, e)
		} else {
			charges = append(charges, e)
		}
	}
	if len(charges) != 1 || len(refunds) != 1 {
		t.Fatalf("got %d charges and %d refunds, want 1 and 1", len(charges), len(refunds))
	}
	if charges[0].Amount != refunds[0].Amount {
		t.Errorf("refund %d != charge %d", refunds[0].Amount, charges[0].Amount)
	}
	if charges[0].JobID != "job-1" || refunds[0].JobID != "job-1" {
		t.Errorf("entries not referencing job: %q %q", charges[0].JobID, refunds[0].JobID)
	}
}

func TestProcessPremiumDegradesOnRateLimit(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))
	f.premium.errs = []error{errors.RateLimited("test", nil, "quota exhausted")}
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityPremium,
		AllowDegrade:     true,
		Status:           models.StatusPending,
	})

	if err := f.service.Process(context.Background(), "job-1"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	job := f.repo.jobs["job-1"]
	if job.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.ResolvedQuality != models.QualityStandard {
		t.Errorf("ResolvedQuality = %q, want standard", job.ResolvedQuality)
	}
	if f.standard.calls != 1 || f.premium.calls != 1 {
		t.Errorf("strategy calls premium=%d standard=%d, want 1 each", f.premium.calls, f.standard.calls)
	}
	// Original premium-rate charge stands after the degrade.
	if job.CreditsCharged == nil || *job.CreditsCharged != 20 {
		t.Errorf("CreditsCharged = %v, want premium-rate 20", job.CreditsCharged)
	}
	if job.PlainText != "standard text" {
		t.Errorf("PlainText = %q, want the fallback engine's output", job.PlainText)
	}
}

func TestProcessPremiumNoDegradeWithoutPermission(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))
	f.premium.errs = []error{errors.RateLimited("test", nil, "quota exhausted")}
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityPremium,
		AllowDegrade:     false,
		Status:           models.StatusPending,
	})

	if err := f.service.Process(context.Background(), "job-1"); err == nil {
		t.Fatal("expected error")
	}

	job := f.repo.jobs["job-1"]
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if f.standard.calls != 0 {
		t.Error("standard strategy must not run without degrade permission")
	}
	if f.ledger.balances["owner-1"] != 100 {
		t.Errorf("balance = %d, want refunded 100", f.ledger.balances["owner-1"])
	}
}

func TestProcessPremiumNonRateLimitFailureIsFatal(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))
	f.premium.errs = []error{errors.Internal("test", nil, "provider down")}
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityPremium,
		AllowDegrade:     true,
		Status:           models.StatusPending,
	})

	if err := f.service.Process(context.Background(), "job-1"); err == nil {
		t.Fatal("expected error")
	}
	if f.standard.calls != 0 {
		t.Error("only rate-limit failures may trigger the degrade path")
	}
	if f.repo.jobs["job-1"].Status != models.StatusFailed {
		t.Errorf("status = %s, want failed", f.repo.jobs["job-1"].Status)
	}
}

func TestProcessMetadataFailureFatalForLengthDependentQuality(t *testing.T) {
	f := newFixture(t, 100, &fakeProber{err: errors.Internal("test", nil, "probe failed")})
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityStandard,
		Status:           models.StatusPending,
	})

	if err := f.service.Process(context.Background(), "job-1"); err == nil {
		t.Fatal("expected error")
	}

	job := f.repo.jobs["job-1"]
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	// Nothing was reserved, so nothing may be refunded.
	if len(f.ledger.entries) != 0 {
		t.Errorf("ledger has %d entries, want none", len(f.ledger.entries))
	}
}

func TestProcessMetadataFailureToleratedForCaptionFirst(t *testing.T) {
	f := newFixture(t, 100, &fakeProber{err: errors.Internal("test", nil, "probe failed")})
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://www.youtube.com/watch?v=abc123",
		RequestedQuality: models.QualityCaptionFirst,
		Status:           models.StatusPending,
	})

	if err := f.service.Process(context.Background(), "job-1"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	job := f.repo.jobs["job-1"]
	if job.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.DurationMinutes == nil || *job.DurationMinutes != 0 {
		t.Errorf("DurationMinutes = %v, want explicit zero sentinel", job.DurationMinutes)
	}
	if job.CreditsCharged == nil || *job.CreditsCharged != 2 {
		t.Errorf("CreditsCharged = %v, want flat 2", job.CreditsCharged)
	}
}

func TestProcessSkipsTerminalJob(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		RequestedQuality: models.QualityStandard,
		Status:           models.StatusCompleted,
	})

	if err := f.service.Process(context.Background(), "job-1"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if f.repo.saves != 0 {
		t.Errorf("terminal job was mutated, %d saves", f.repo.saves)
	}
	if len(f.ledger.entries) != 0 {
		t.Error("terminal job must not touch the ledger")
	}
	if f.standard.calls != 0 {
		t.Error("terminal job must not be acquired again")
	}
}

func TestProcessRedeliveryDoesNotDoubleCharge(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))
	charged := 10
	minutes := 12.0
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityStandard,
		Status:           models.StatusProcessing,
		DurationMinutes:  &minutes,
		CreditsCharged:   &charged,
	})

	if err := f.service.Process(context.Background(), "job-1"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if f.repo.jobs["job-1"].Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", f.repo.jobs["job-1"].Status)
	}
	// The prior delivery's charge stands; this run adds nothing.
	if len(f.ledger.entries) != 0 {
		t.Errorf("redelivery wrote %d ledger entries, want none", len(f.ledger.entries))
	}
	if f.ledger.balances["owner-1"] != 100 {
		t.Errorf("balance = %d, want untouched 100", f.ledger.balances["owner-1"])
	}
}

func TestProcessPersistFailureRefunds(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))
	f.store.err = fmt.Errorf("bucket unavailable")
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityStandard,
		Status:           models.StatusPending,
	})

	if err := f.service.Process(context.Background(), "job-1"); err == nil {
		t.Fatal("expected error")
	}
	if f.repo.jobs["job-1"].Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", f.repo.jobs["job-1"].Status)
	}
	if f.ledger.balances["owner-1"] != 100 {
		t.Errorf("balance = %d, want refunded 100", f.ledger.balances["owner-1"])
	}
}

func TestSubmitCreatesPendingJobAndEnqueues(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))

	var enqueued *models.Job
	job, err := f.service.Submit(context.Background(), "owner-1", &models.JobRequest{
		URL:     "https://www.youtube.com/watch?v=abc123",
		Quality: models.QualityStandard,
	}, func(_ context.Context, j *models.Job) error {
		enqueued = j
		return nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if job.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.ID == "" {
		t.Error("job must get an id")
	}
	if enqueued == nil || enqueued.ID != job.ID {
		t.Error("job was not enqueued")
	}
	if _, ok := f.repo.jobs[job.ID]; !ok {
		t.Error("job was not persisted")
	}
}

// Every transition must refresh UpdatedAt; a job submitted two hours
// ago and processed now cannot still carry the submission timestamp.
func TestProcessRefreshesUpdatedAt(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))
	submitted := time.Now().UTC().Add(-2 * time.Hour)
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityStandard,
		Status:           models.StatusPending,
		CreatedAt:        submitted,
		UpdatedAt:        submitted,
	})

	if err := f.service.Process(context.Background(), "job-1"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	job := f.repo.jobs["job-1"]
	if job.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if !job.UpdatedAt.After(submitted) {
		t.Errorf("UpdatedAt = %s, want later than submission", job.UpdatedAt)
	}
	if !job.UpdatedAt.After(job.CreatedAt) {
		t.Errorf("UpdatedAt %s not after CreatedAt %s", job.UpdatedAt, job.CreatedAt)
	}
}

// Failure paths stamp UpdatedAt too.
func TestFailRefreshesUpdatedAt(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))
	f.standard.errs = []error{errors.Internal("test", nil, "Engine exploded")}
	submitted := time.Now().UTC().Add(-2 * time.Hour)
	f.addJob(&models.Job{
		ID:               "job-1",
		OwnerID:          "owner-1",
		SourceURL:        "https://example.com/v/1",
		RequestedQuality: models.QualityStandard,
		Status:           models.StatusPending,
		CreatedAt:        submitted,
		UpdatedAt:        submitted,
	})

	if err := f.service.Process(context.Background(), "job-1"); err == nil {
		t.Fatal("Process() error = nil, want failure")
	}

	job := f.repo.jobs["job-1"]
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !job.UpdatedAt.After(submitted) {
		t.Errorf("UpdatedAt = %s, want later than submission", job.UpdatedAt)
	}
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t, 100, minutesMeta(12))

	_, err := f.service.Submit(context.Background(), "owner-1", &models.JobRequest{
		URL:     "https://example.com/v/1",
		Quality: models.QualityCaptionFirst,
	}, func(context.Context, *models.Job) error { return nil })
	if !errors.IsInvalidInput(err) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
}
