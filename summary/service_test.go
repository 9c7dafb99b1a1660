package summary

import (
	"context"
	"testing"

	"vidscribe/config"
	"vidscribe/credits"
	"vidscribe/errors"
	"vidscribe/models"
)

type fakeJobRepo struct {
	jobs map[string]*models.Job
}

func (f *fakeJobRepo) Save(_ context.Context, job *models.Job) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobRepo) Find(_ context.Context, id string) (*models.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, errors.NotFound("fakeJobRepo.Find", nil, "Job not found")
	}
	return job, nil
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

func (f *fakeLedgerRepo) SetBalance(_ context.Context, ownerID string, amount int, kind models.TransactionKind) (int, error) {
	f.balances[ownerID] = amount
	return amount, nil
}

func (f *fakeLedgerRepo) TransactionsByOwner(context.Context, string, int) ([]*models.CreditTransaction, error) {
	return f.entries, nil
}

func (f *fakeLedgerRepo) TransactionsByJob(context.Context, string) ([]*models.CreditTransaction, error) {
	return f.entries, nil
}

type fakeGenerator struct {
	text string
	err  error

	gotInstruction string
	gotTranscript  string
}

func (f *fakeGenerator) Generate(_ context.Context, instruction, transcript string) (string, error) {
	f.gotInstruction = instruction
	f.gotTranscript = transcript
	return f.text, f.err
}

func newTestService(t *testing.T, gen Generator, balance int) (*Service, *fakeLedgerRepo) {
	t.Helper()

	pricing, err := credits.NewPricing(config.CreditsConfig{
		CaptionFirstCost:  1,
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

	ledgerRepo := &fakeLedgerRepo{balances: map[string]int{"owner-1": balance}}
	jobRepo := &fakeJobRepo{jobs: map[string]*models.Job{
		"job-1": {
			ID:        "job-1",
			OwnerID:   "owner-1",
			Status:    models.StatusCompleted,
			PlainText: "A talk about goroutines and channels.",
		},
		"job-pending": {
			ID:      "job-pending",
			OwnerID: "owner-1",
			Status:  models.StatusProcessing,
		},
	}}

	return NewService(jobRepo, credits.NewLedger(ledgerRepo, 60, nil), pricing, gen, nil), ledgerRepo
}

func TestSummarizeChargesFixedCost(t *testing.T) {
	gen := &fakeGenerator{text: "A concise summary."}
	svc, ledger := newTestService(t, gen, 10)

	d, err := svc.Summarize(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if d.Text != "A concise summary." {
		t.Errorf("Text = %q", d.Text)
	}
	if d.CreditsCharged != 3 {
		t.Errorf("CreditsCharged = %d, want 3", d.CreditsCharged)
	}
	if d.ID == "" {
		t.Error("derivative must have an id")
	}
	if ledger.balances["owner-1"] != 7 {
		t.Errorf("balance = %d, want 7", ledger.balances["owner-1"])
	}
	if gen.gotTranscript != "A talk about goroutines and channels." {
		t.Errorf("generator got transcript %q", gen.gotTranscript)
	}

	if len(ledger.entries) != 1 {
		t.Fatalf("got %d ledger entries, want 1", len(ledger.entries))
	}
	entry := ledger.entries[0]
	if entry.Kind != models.TxSummary {
		t.Errorf("entry kind = %s, want summary", entry.Kind)
	}
	if entry.JobID != "job-1" || entry.DerivedJobID != d.ID {
		t.Errorf("entry refs = %q/%q, want job-1/%s", entry.JobID, entry.DerivedJobID, d.ID)
	}
}

func TestContentIdeasUsesOwnPrice(t *testing.T) {
	svc, ledger := newTestService(t, &fakeGenerator{text: "1. More Go talks"}, 10)

	d, err := svc.ContentIdeas(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("ContentIdeas() error = %v", err)
	}
	if d.CreditsCharged != 2 {
		t.Errorf("CreditsCharged = %d, want 2", d.CreditsCharged)
	}
	if ledger.balances["owner-1"] != 8 {
		t.Errorf("balance = %d, want 8", ledger.balances["owner-1"])
	}
	if ledger.entries[0].Kind != models.TxContentIdeas {
		t.Errorf("entry kind = %s, want content_ideas", ledger.entries[0].Kind)
	}
}

func TestDeriveRefundsOnGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.Internal("test", nil, "model unavailable")}
	svc, ledger := newTestService(t, gen, 10)

	if _, err := svc.Summarize(context.Background(), "job-1"); err == nil {
		t.Fatal("expected error from failing generator")
	}
	if ledger.balances["owner-1"] != 10 {
		t.Errorf("balance = %d, want full refund to 10", ledger.balances["owner-1"])
	}
	if len(ledger.entries) != 2 {
		t.Fatalf("got %d ledger entries, want charge plus refund", len(ledger.entries))
	}
	if ledger.entries[1].Kind != models.TxRefund {
		t.Errorf("second entry kind = %s, want refund", ledger.entries[1].Kind)
	}
	if ledger.entries[1].Amount != ledger.entries[0].Amount {
		t.Errorf("refund %d != charge %d", ledger.entries[1].Amount, ledger.entries[0].Amount)
	}
}

func TestDeriveInsufficientCredits(t *testing.T) {
	svc, ledger := newTestService(t, &fakeGenerator{text: "unused"}, 1)

	_, err := svc.Summarize(context.Background(), "job-1")
	if !errors.IsInsufficientCredits(err) {
		t.Fatalf("expected insufficient-credits error, got %v", err)
	}
	if ledger.balances["owner-1"] != 1 {
		t.Errorf("balance = %d, want untouched 1", ledger.balances["owner-1"])
	}
	if len(ledger.entries) != 0 {
		t.Errorf("got %d ledger entries, want none", len(ledger.entries))
	}
}

func TestDeriveRejectsIncompleteJob(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{text: "unused"}, 10)

	_, err := svc.Summarize(context.Background(), "job-pending")
	if !errors.IsInvalidInput(err) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
}

func TestDeriveUnknownJob(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{text: "unused"}, 10)

	_, err := svc.Summarize(context.Background(), "missing")
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
