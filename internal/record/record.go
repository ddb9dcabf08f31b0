package record

import (
	"errors"

	"TxStream/internal/money"
)

// Kind is the transaction record type.
type Kind uint8

const (
	KindDeposit Kind = iota
	KindWithdrawal
	KindDispute
	KindResolve
	KindChargeback
)

// ErrMalformed marks a record that is missing its client or transaction
// identifier (or carries an unparseable field). Record sources return it
// per-row; the run loop skips the row and continues.
var ErrMalformed = errors.New("record: malformed record")

// ParseKind maps a kind string to a Kind. Any unrecognized string, not just
// "dispute", maps to KindDispute — inherited behavior kept for parity with
// upstream producers that rely on it.
func ParseKind(s string) Kind {
	switch s {
	case "deposit":
		return KindDeposit
	case "withdrawal":
		return KindWithdrawal
	case "resolve":
		return KindResolve
	case "chargeback":
		return KindChargeback
	default:
		return KindDispute
	}
}

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	case KindDispute:
		return "dispute"
	case KindResolve:
		return "resolve"
	case KindChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}

// HasAmount reports whether records of this kind carry an amount field.
// Dispute-lifecycle records reference a prior transaction instead.
func (k Kind) HasAmount() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Record is a single parsed transaction record. Amount is zero when the
// source omitted it.
type Record struct {
	Kind     Kind
	ClientID uint16
	TxID     uint32
	Amount   money.Amount
}
