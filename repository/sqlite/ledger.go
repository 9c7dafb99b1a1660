package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"vidscribe/errors"
	"vidscribe/models"
)

const (
	ensureUserQuery = `INSERT OR IGNORE INTO users (id, credit_balance) VALUES (?, 0)`

	getBalanceQuery = `SELECT credit_balance FROM users WHERE id = ?`

	setBalanceQuery = `UPDATE users SET credit_balance = ? WHERE id = ?`

	insertTransactionQuery = `
        INSERT INTO credit_transactions (
            id, owner_id, job_id, derived_job_id, kind, amount,
            balance_before, balance_after, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	selectTransactionColumns = `
        SELECT id, owner_id, job_id, derived_job_id, kind, amount,
               balance_before, balance_after, created_at
        FROM credit_transactions`

	getTransactionsByOwnerQuery = selectTransactionColumns +
		` WHERE owner_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`

	getTransactionsByJobQuery = selectTransactionColumns +
		` WHERE job_id = ? OR derived_job_id = ? ORDER BY created_at ASC, id ASC`
)

// LedgerRepository is the sqlite implementation of
// repository.LedgerRepository. Each mutating call runs the balance
// read, the conditional balance write, and the audit insert inside one
// transaction, so a short balance or a failed insert leaves nothing
// behind.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Balance(ctx context.Context, ownerID string) (int, error) {
	const op = "LedgerRepository.Balance"

	var balance int
	err := r.db.QueryRowContext(ctx, getBalanceQuery, ownerID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Internal(op, err, "Failed to read balance")
	}
	return balance, nil
}

func (r *LedgerRepository) Deduct(ctx context.Context, entry *models.CreditTransaction) (int, error) {
	const op = "LedgerRepository.Deduct"

	if entry.Amount < 0 {
		return 0, errors.InvalidInput(op, nil, "Amount must be non-negative")
	}

	var newBalance int
	err := WithTransaction(ctx, r.db, func(tx Executor) error {
		balance, err := balanceForUpdate(ctx, tx, entry.OwnerID)
		if err != nil {
			return err
		}

		if balance < entry.Amount {
			return errors.InsufficientCredits(op, nil, "Insufficient credits")
		}

		newBalance = balance - entry.Amount
		return applyEntry(ctx, tx, entry, balance, newBalance)
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *LedgerRepository) Add(ctx context.Context, entry *models.CreditTransaction) (int, error) {
	const op = "LedgerRepository.Add"

	if entry.Amount < 0 {
		return 0, errors.InvalidInput(op, nil, "Amount must be non-negative")
	}

	var newBalance int
	err := WithTransaction(ctx, r.db, func(tx Executor) error {
		balance, err := balanceForUpdate(ctx, tx, entry.OwnerID)
		if err != nil {
			return err
		}

		newBalance = balance + entry.Amount
		return applyEntry(ctx, tx, entry, balance, newBalance)
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *LedgerRepository) SetBalance(ctx context.Context, ownerID string, amount int, kind models.TransactionKind) (int, error) {
	const op = "LedgerRepository.SetBalance"

	if amount < 0 {
		return 0, errors.InvalidInput(op, nil, "Amount must be non-negative")
	}

	err := WithTransaction(ctx, r.db, func(tx Executor) error {
		balance, err := balanceForUpdate(ctx, tx, ownerID)
		if err != nil {
			return err
		}

		// The audit amount records the movement magnitude so the log
		// still replays to the final balance.
		delta := amount - balance
		entry := &models.CreditTransaction{
			OwnerID: ownerID,
			Kind:    kind,
			Amount:  delta,
		}
		if delta < 0 {
			entry.Amount = -delta
			entry.Kind = models.TxManualDeduct
		}

		return applyEntry(ctx, tx, entry, balance, amount)
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (r *LedgerRepository) TransactionsByOwner(ctx context.Context, ownerID string, limit int) ([]*models.CreditTransaction, error) {
	const op = "LedgerRepository.TransactionsByOwner"

	rows, err := r.db.QueryContext(ctx, getTransactionsByOwnerQuery, ownerID, limit)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query transactions")
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *LedgerRepository) TransactionsByJob(ctx context.Context, jobID string) ([]*models.CreditTransaction, error) {
	const op = "LedgerRepository.TransactionsByJob"

	rows, err := r.db.QueryContext(ctx, getTransactionsByJobQuery, jobID, jobID)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query transactions")
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// balanceForUpdate creates the user row if missing and returns the
// current balance inside the caller's transaction.
func balanceForUpdate(ctx context.Context, tx Executor, ownerID string) (int, error) {
	const op = "sqlite.balanceForUpdate"

	if _, err := tx.ExecContext(ctx, ensureUserQuery, ownerID); err != nil {
		return 0, errors.Internal(op, err, "Failed to ensure user row")
	}

	var balance int
	if err := tx.QueryRowContext(ctx, getBalanceQuery, ownerID).Scan(&balance); err != nil {
		return 0, errors.Internal(op, err, "Failed to read balance")
	}
	return balance, nil
}

func applyEntry(ctx context.Context, tx Executor, entry *models.CreditTransaction, before, after int) error {
	const op = "sqlite.applyEntry"

	if _, err := tx.ExecContext(ctx, setBalanceQuery, after, entry.OwnerID); err != nil {
		return errors.Internal(op, err, "Failed to write balance")
	}

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, insertTransactionQuery,
		id,
		entry.OwnerID,
		nullString(entry.JobID),
		nullString(entry.DerivedJobID),
		string(entry.Kind),
		entry.Amount,
		before,
		after,
		createdAt,
	)
	if err != nil {
		return errors.Internal(op, err, "Failed to append transaction")
	}

	entry.ID = id
	entry.BalanceBefore = before
	entry.BalanceAfter = after
	entry.CreatedAt = createdAt
	return nil
}

func scanTransactions(rows *sql.Rows) ([]*models.CreditTransaction, error) {
	var txs []*models.CreditTransaction
	for rows.Next() {
		entry := &models.CreditTransaction{}
		var jobID, derivedJobID sql.NullString
		var kind string

		err := rows.Scan(
			&entry.ID,
			&entry.OwnerID,
			&jobID,
			&derivedJobID,
			&kind,
			&entry.Amount,
			&entry.BalanceBefore,
			&entry.BalanceAfter,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		entry.JobID = jobID.String
		entry.DerivedJobID = derivedJobID.String
		entry.Kind = models.TransactionKind(kind)
		txs = append(txs, entry)
	}
	return txs, rows.Err()
}
