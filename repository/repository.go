package repository

import (
	"context"

	"vidscribe/models"
)

// JobRepository persists job records by opaque id.
type JobRepository interface {
	Save(ctx context.Context, job *models.Job) error
	Find(ctx context.Context, id string) (*models.Job, error)
	FindByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Job, error)
}

// LedgerRepository owns the user balance scalar and the append-only
// transaction log. Every mutating call runs as a single atomic
// operation: balance read, conditional write, and audit insert commit
// or roll back together.
type LedgerRepository interface {
	Balance(ctx context.Context, ownerID string) (int, error)

	// Deduct subtracts amount from the balance and appends an audit
	// row, failing without any write when the balance is short.
	Deduct(ctx context.Context, tx *models.CreditTransaction) (newBalance int, err error)

	// Add increases the balance and appends an audit row. Zero-amount
	// entries are written like any other so the trail stays complete.
	Add(ctx context.Context, tx *models.CreditTransaction) (newBalance int, err error)

	// SetBalance overwrites the balance to an exact value and appends
	// an audit row recording the movement.
	SetBalance(ctx context.Context, ownerID string, amount int, kind models.TransactionKind) (newBalance int, err error)

	TransactionsByOwner(ctx context.Context, ownerID string, limit int) ([]*models.CreditTransaction, error)
	TransactionsByJob(ctx context.Context, jobID string) ([]*models.CreditTransaction, error)
}
