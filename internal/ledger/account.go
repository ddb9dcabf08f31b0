package ledger

import (
	"fmt"

	"TxStream/internal/money"
	"TxStream/internal/record"
)

// Status tracks the dispute lifecycle of a history entry, separate from the
// entry's original kind. Only the latest status matters for validating
// dispute -> resolve | chargeback transitions.
type Status uint8

const (
	StatusNone Status = iota
	StatusDisputed
	StatusResolved
	StatusChargedBack
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusDisputed:
		return "disputed"
	case StatusResolved:
		return "resolved"
	case StatusChargedBack:
		return "charged_back"
	default:
		return "unknown"
	}
}

// Entry is one transaction in an account's history. Kind and Amount record
// the original transaction and are never rewritten; Status carries the
// dispute progression.
type Entry struct {
	Kind   record.Kind
	Amount money.Amount
	Status Status
}

// Account is the per-client ledger state machine. It is exclusively owned by
// the engine's client map and is not safe for concurrent use.
//
// Invariants: total == available + held at all times (total is derived, never
// stored), and held equals the sum of amounts of currently disputed entries.
type Account struct {
	clientID  uint16
	available money.Amount
	held      money.Amount
	locked    bool
	history   map[uint32]*Entry
}

// NewAccount constructs an account from the first record seen for a client.
// The seeding record is folded in here, not re-dispatched: available starts
// at the record's amount (zero for dispute-lifecycle records, whose amount
// is absent) and the record enters history undisputed.
func NewAccount(clientID uint16, first record.Record) *Account {
	acc := &Account{
		clientID:  clientID,
		available: first.Amount,
		history:   make(map[uint32]*Entry),
	}
	acc.history[first.TxID] = &Entry{Kind: first.Kind, Amount: first.Amount}
	return acc
}

// Apply routes one record through the state machine and reports whether any
// state changed. Precondition failures (insufficient funds, unknown tx,
// wrong dispute status, locked account) are not errors: the record is a
// valid, silently-ignored transition.
func (a *Account) Apply(rec record.Record) bool {
	switch rec.Kind {
	case record.KindDeposit:
		return a.deposit(rec.TxID, rec.Amount)
	case record.KindWithdrawal:
		return a.withdraw(rec.TxID, rec.Amount)
	case record.KindDispute:
		return a.dispute(rec.TxID)
	case record.KindResolve:
		return a.resolve(rec.TxID)
	case record.KindChargeback:
		return a.chargeback(rec.TxID)
	default:
		return false
	}
}

// deposit always applies, locked accounts included. A deposit reusing an
// existing tx ID overwrites that history entry.
func (a *Account) deposit(txID uint32, amount money.Amount) bool {
	next, err := a.available.Add(amount)
	if err != nil {
		return false
	}
	if _, err := next.Add(a.held); err != nil {
		// Total would overflow; treat like any other failed precondition.
		return false
	}
	a.available = next
	a.history[txID] = &Entry{Kind: record.KindDeposit, Amount: amount}
	return true
}

// withdraw requires strictly more than the requested amount available —
// withdrawing the exact balance is rejected — and an unlocked account.
func (a *Account) withdraw(txID uint32, amount money.Amount) bool {
	if a.locked || a.available <= amount {
		return false
	}
	next, err := a.available.Sub(amount)
	if err != nil {
		return false
	}
	a.available = next
	a.history[txID] = &Entry{Kind: record.KindWithdrawal, Amount: amount}
	return true
}

// dispute freezes the referenced transaction's amount. It applies only to a
// known, not-yet-disputed entry: re-disputing an active, resolved, or
// charged-back transaction is a no-op, as is referencing an unknown tx.
func (a *Account) dispute(txID uint32) bool {
	e, ok := a.history[txID]
	if !ok || e.Status != StatusNone {
		return false
	}
	available, err := a.available.Sub(e.Amount)
	if err != nil {
		return false
	}
	held, err := a.held.Add(e.Amount)
	if err != nil {
		return false
	}
	a.available = available
	a.held = held
	e.Status = StatusDisputed
	return true
}

// resolve releases a disputed amount back to available. It requires an
// active dispute and an unlocked account.
func (a *Account) resolve(txID uint32) bool {
	e, ok := a.history[txID]
	if !ok || e.Status != StatusDisputed || a.locked {
		return false
	}
	available, err := a.available.Add(e.Amount)
	if err != nil {
		return false
	}
	held, err := a.held.Sub(e.Amount)
	if err != nil {
		return false
	}
	a.available = available
	a.held = held
	e.Status = StatusResolved
	return true
}

// chargeback withdraws a disputed amount and permanently locks the account.
// Unlike resolve it still applies when the account is already locked.
func (a *Account) chargeback(txID uint32) bool {
	e, ok := a.history[txID]
	if !ok || e.Status != StatusDisputed {
		return false
	}
	held, err := a.held.Sub(e.Amount)
	if err != nil {
		return false
	}
	a.held = held
	a.locked = true
	e.Status = StatusChargedBack
	return true
}

func (a *Account) ClientID() uint16 { return a.clientID }

// Available returns funds free to withdraw. May be negative after a dispute
// of already-withdrawn funds.
func (a *Account) Available() money.Amount { return a.available }

// Held returns funds frozen pending dispute resolution.
func (a *Account) Held() money.Amount { return a.held }

// Total returns available + held. It is derived on every call; the pairwise
// overflow checks in each mutation guarantee the sum fits.
func (a *Account) Total() money.Amount { return a.available + a.held }

// Locked reports whether a chargeback has frozen withdrawals.
func (a *Account) Locked() bool { return a.locked }

// Entry returns the history entry for a tx ID, if known.
func (a *Account) Entry(txID uint32) (Entry, bool) {
	e, ok := a.history[txID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// CheckInvariant verifies money conservation: held must equal the sum of the
// amounts of currently disputed entries (total == available + held holds by
// construction since total is derived).
func (a *Account) CheckInvariant() error {
	var disputed money.Amount
	for _, e := range a.history {
		if e.Status == StatusDisputed {
			disputed += e.Amount
		}
	}
	if disputed != a.held {
		return fmt.Errorf("client %d: held %s != sum of disputed amounts %s",
			a.clientID, a.held, disputed)
	}
	return nil
}

// Snapshot is a point-in-time read-only view of one client's balances and
// lock state.
type Snapshot struct {
	ClientID  uint16
	Available money.Amount
	Held      money.Amount
	Total     money.Amount
	Locked    bool
}

func (a *Account) Snapshot() Snapshot {
	return Snapshot{
		ClientID:  a.clientID,
		Available: a.available,
		Held:      a.held,
		Total:     a.Total(),
		Locked:    a.locked,
	}
}
