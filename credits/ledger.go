package credits

import (
	"context"

	"github.com/sirupsen/logrus"

	"vidscribe/models"
	"vidscribe/repository"
)

// Ref identifies what a ledger entry charges for. Exactly one of the
// fields is normally set; both empty means an account-level operation.
type Ref struct {
	JobID        string
	DerivedJobID string
}

// Ledger is the sole writer of user credit balances. The orchestrator
// reserves and refunds through it; subscription flows grant and reset
// through it; nothing else touches the balance.
type Ledger struct {
	repo        repository.LedgerRepository
	freeTierCap int
	log         *logrus.Logger
}

func NewLedger(repo repository.LedgerRepository, freeTierCap int, log *logrus.Logger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{repo: repo, freeTierCap: freeTierCap, log: log}
}

// Reserve debits amount before chargeable work begins. Returns the new
// balance; an insufficient balance fails with no write at all.
func (l *Ledger) Reserve(ctx context.Context, ownerID string, amount int, kind models.TransactionKind, ref Ref) (int, error) {
	entry := &models.CreditTransaction{
		OwnerID:      ownerID,
		JobID:        ref.JobID,
		DerivedJobID: ref.DerivedJobID,
		Kind:         kind,
		Amount:       amount,
	}

	newBalance, err := l.repo.Deduct(ctx, entry)
	if err != nil {
		return 0, err
	}

	l.log.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"job_id":   ref.JobID,
		"kind":     kind,
		"amount":   amount,
		"balance":  newBalance,
	}).Info("Credits reserved")

	return newBalance, nil
}

// Refund returns a previously reserved amount. Called only from the
// orchestrator's failure path, only for amounts actually reserved.
func (l *Ledger) Refund(ctx context.Context, ownerID string, amount int, ref Ref) (int, error) {
	entry := &models.CreditTransaction{
		OwnerID:      ownerID,
		JobID:        ref.JobID,
		DerivedJobID: ref.DerivedJobID,
		Kind:         models.TxRefund,
		Amount:       amount,
	}

	newBalance, err := l.repo.Add(ctx, entry)
	if err != nil {
		return 0, err
	}

	l.log.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"job_id":   ref.JobID,
		"amount":   amount,
		"balance":  newBalance,
	}).Info("Credits refunded")

	return newBalance, nil
}

// Grant adds credits from subscription renewal or refresh flows.
func (l *Ledger) Grant(ctx context.Context, ownerID string, amount int, kind models.TransactionKind) (int, error) {
	entry := &models.CreditTransaction{
		OwnerID: ownerID,
		Kind:    kind,
		Amount:  amount,
	}
	return l.repo.Add(ctx, entry)
}

// GrantCapped applies the free tier's periodic refresh: never push the
// balance above the cap, and still write a zero-amount audit row when
// the cap already holds, so the trail explains why nothing moved.
func (l *Ledger) GrantCapped(ctx context.Context, ownerID string, amount int) (int, error) {
	balance, err := l.repo.Balance(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	granted := amount
	if balance >= l.freeTierCap {
		granted = 0
	} else if balance+amount > l.freeTierCap {
		granted = l.freeTierCap - balance
	}

	entry := &models.CreditTransaction{
		OwnerID: ownerID,
		Kind:    models.TxRefresh,
		Amount:  granted,
	}
	return l.repo.Add(ctx, entry)
}

// SetToTierAllowance resets the balance to exactly the monthly
// allotment on paid-tier renewal, rather than adding to it.
func (l *Ledger) SetToTierAllowance(ctx context.Context, ownerID string, amount int) (int, error) {
	return l.repo.SetBalance(ctx, ownerID, amount, models.TxRenewal)
}

func (l *Ledger) Balance(ctx context.Context, ownerID string) (int, error) {
	return l.repo.Balance(ctx, ownerID)
}

func (l *Ledger) History(ctx context.Context, ownerID string, limit int) ([]*models.CreditTransaction, error) {
	return l.repo.TransactionsByOwner(ctx, ownerID, limit)
}
