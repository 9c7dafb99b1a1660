package models

import "time"

// TransactionKind is the business reason for a ledger entry. One kind
// exists per chargeable operation so the audit trail explains itself.
type TransactionKind string

const (
	TxAllocation       TransactionKind = "allocation"
	TxRefresh          TransactionKind = "refresh"
	TxRenewal          TransactionKind = "renewal"
	TxRefund           TransactionKind = "refund"
	TxManualAdd        TransactionKind = "manual_add"
	TxManualDeduct     TransactionKind = "manual_deduct"
	TxTranscription    TransactionKind = "transcription"
	TxCaptionDownload  TransactionKind = "caption_download"
	TxSummary          TransactionKind = "summary"
	TxContentIdeas     TransactionKind = "content_ideas"
)

// IsCredit reports whether the kind adds to the balance.
func (k TransactionKind) IsCredit() bool {
	switch k {
	case TxAllocation, TxRefresh, TxRenewal, TxRefund, TxManualAdd:
		return true
	}
	return false
}

// SignedAmount applies the kind's direction to a non-negative amount.
func (k TransactionKind) SignedAmount(amount int) int {
	if k.IsCredit() {
		return amount
	}
	return -amount
}

// CreditTransaction is an immutable ledger entry. Amount is always
// non-negative; the kind carries the sign. BalanceBefore/After are
// captured at write time so the log replays to the current balance.
type CreditTransaction struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	JobID         string          `json:"job_id,omitempty"`
	DerivedJobID  string          `json:"derived_job_id,omitempty"`
	Kind          TransactionKind `json:"kind"`
	Amount        int             `json:"amount"`
	BalanceBefore int             `json:"balance_before"`
	BalanceAfter  int             `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}
