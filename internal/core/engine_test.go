package core_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"TxStream/internal/core"
	"TxStream/internal/ledger"
	"TxStream/internal/money"
	"TxStream/internal/record"
)

func newEngine() *core.Engine {
	return core.NewEngine(zerolog.Nop(), nil)
}

func rec(kind record.Kind, client uint16, tx uint32, amount string) record.Record {
	r := record.Record{Kind: kind, ClientID: client, TxID: tx}
	if amount != "" {
		r.Amount = money.MustParse(amount)
	}
	return r
}

func snapshotFor(t *testing.T, e *core.Engine, client uint16) ledger.Snapshot {
	t.Helper()
	acc, ok := e.Account(client)
	if !ok {
		t.Fatalf("no account for client %d", client)
	}
	return acc.Snapshot()
}

func TestProcess_CreatesAccountOnFirstSight(t *testing.T) {
	e := newEngine()
	e.Process(rec(record.KindDeposit, 1, 1, "5"))

	snap := snapshotFor(t, e, 1)
	if snap.Available.String() != "5" || snap.Total.String() != "5" {
		t.Errorf("seeded balances: available=%s total=%s", snap.Available, snap.Total)
	}
}

func TestProcess_RoutesByClient(t *testing.T) {
	e := newEngine()
	e.Process(rec(record.KindDeposit, 1, 1, "5"))
	e.Process(rec(record.KindDeposit, 2, 2, "7"))
	e.Process(rec(record.KindWithdrawal, 1, 3, "2"))

	if got := snapshotFor(t, e, 1).Available.String(); got != "3" {
		t.Errorf("client 1 available: got %s, want 3", got)
	}
	if got := snapshotFor(t, e, 2).Available.String(); got != "7" {
		t.Errorf("client 2 available: got %s, want 7", got)
	}
}

func TestProcess_FirstRecordDisputeCreatesEmptyAccount(t *testing.T) {
	// A dispute referencing a never-seen client still registers an account:
	// empty, unlocked, non-disputed.
	e := newEngine()
	e.Process(rec(record.KindDispute, 9, 42, ""))

	snap := snapshotFor(t, e, 9)
	if !snap.Total.IsZero() || !snap.Available.IsZero() || !snap.Held.IsZero() {
		t.Errorf("expected empty account, got %+v", snap)
	}
	if snap.Locked {
		t.Error("account should not be locked")
	}
}

// ============================================================================
// End-to-end scenarios
// ============================================================================

func TestScenario_TwoDeposits(t *testing.T) {
	e := newEngine()
	e.Process(rec(record.KindDeposit, 1, 1, "5"))
	e.Process(rec(record.KindDeposit, 1, 2, "3"))

	snap := snapshotFor(t, e, 1)
	if snap.Available.String() != "8" || snap.Held.String() != "0" || snap.Total.String() != "8" || snap.Locked {
		t.Errorf("got %+v, want available=8 held=0 total=8 unlocked", snap)
	}
}

func TestScenario_OverdrawIsNoOp(t *testing.T) {
	e := newEngine()
	e.Process(rec(record.KindDeposit, 1, 1, "5"))
	e.Process(rec(record.KindWithdrawal, 1, 2, "6"))

	snap := snapshotFor(t, e, 1)
	if snap.Available.String() != "5" || snap.Total.String() != "5" {
		t.Errorf("got available=%s total=%s, want 5/5", snap.Available, snap.Total)
	}
}

func TestScenario_DisputeThenChargeback(t *testing.T) {
	e := newEngine()
	e.Process(rec(record.KindDeposit, 1, 1, "10"))
	e.Process(rec(record.KindDispute, 1, 1, ""))

	snap := snapshotFor(t, e, 1)
	if snap.Available.String() != "0" || snap.Held.String() != "10" || snap.Total.String() != "10" {
		t.Errorf("after dispute: got %+v, want available=0 held=10 total=10", snap)
	}

	e.Process(rec(record.KindChargeback, 1, 1, ""))

	snap = snapshotFor(t, e, 1)
	if snap.Available.String() != "0" || snap.Held.String() != "0" || snap.Total.String() != "0" {
		t.Errorf("after chargeback: got %+v, want all zero", snap)
	}
	if !snap.Locked {
		t.Error("chargeback must lock the account")
	}

	if err := e.CheckInvariants(); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

// ============================================================================
// Snapshots and summary
// ============================================================================

func TestSnapshotsSorted_AscendingClientID(t *testing.T) {
	e := newEngine()
	for _, client := range []uint16{42, 7, 65535, 1} {
		e.Process(rec(record.KindDeposit, client, uint32(client), "1"))
	}

	snaps := e.SnapshotsSorted()
	if len(snaps) != 4 {
		t.Fatalf("got %d snapshots, want 4", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i-1].ClientID >= snaps[i].ClientID {
			t.Fatalf("snapshots not sorted: %d before %d", snaps[i-1].ClientID, snaps[i].ClientID)
		}
	}
}

func TestSnapshots_OnePerClient(t *testing.T) {
	e := newEngine()
	e.Process(rec(record.KindDeposit, 1, 1, "1"))
	e.Process(rec(record.KindDeposit, 1, 2, "1"))
	e.Process(rec(record.KindDeposit, 2, 3, "1"))

	if got := len(e.Snapshots()); got != 2 {
		t.Errorf("got %d snapshots, want 2", got)
	}
}

func TestSummary(t *testing.T) {
	e := newEngine()
	e.Process(rec(record.KindDeposit, 1, 1, "10"))
	e.Process(rec(record.KindDeposit, 2, 2, "5"))
	e.Process(rec(record.KindDispute, 1, 1, ""))
	e.Process(rec(record.KindChargeback, 1, 1, ""))

	s := e.Summary()
	if s.Processed != 4 {
		t.Errorf("processed: got %d, want 4", s.Processed)
	}
	if s.Clients != 2 {
		t.Errorf("clients: got %d, want 2", s.Clients)
	}
	if s.Locked != 1 {
		t.Errorf("locked: got %d, want 1", s.Locked)
	}
}

// ============================================================================
// Run loop
// ============================================================================

// sliceSource yields scripted results for Run tests.
type sliceSource struct {
	results []sourceResult
	idx     int
}

type sourceResult struct {
	rec record.Record
	err error
}

func (s *sliceSource) Next() (record.Record, error) {
	if s.idx >= len(s.results) {
		return record.Record{}, io.EOF
	}
	r := s.results[s.idx]
	s.idx++
	return r.rec, r.err
}

func TestRun_SkipsMalformedRecords(t *testing.T) {
	e := newEngine()
	src := &sliceSource{results: []sourceResult{
		{rec: rec(record.KindDeposit, 1, 1, "5")},
		{err: fmt.Errorf("line 3: %w: missing client", record.ErrMalformed)},
		{rec: rec(record.KindDeposit, 1, 2, "3")},
	}}

	if err := e.Run(context.Background(), src); err != nil {
		t.Fatalf("run: %v", err)
	}

	s := e.Summary()
	if s.Processed != 2 || s.Skipped != 1 {
		t.Errorf("summary: got processed=%d skipped=%d, want 2/1", s.Processed, s.Skipped)
	}
	if got := snapshotFor(t, e, 1).Available.String(); got != "8" {
		t.Errorf("available: got %s, want 8", got)
	}
}

func TestRun_SourceFailureIsFatal(t *testing.T) {
	e := newEngine()
	readErr := errors.New("disk gone")
	src := &sliceSource{results: []sourceResult{
		{rec: rec(record.KindDeposit, 1, 1, "5")},
		{err: readErr},
	}}

	err := e.Run(context.Background(), src)
	if !errors.Is(err, readErr) {
		t.Fatalf("expected terminal source error, got %v", err)
	}
	// The partial fold up to the failure is kept.
	if got := snapshotFor(t, e, 1).Available.String(); got != "5" {
		t.Errorf("available: got %s, want 5", got)
	}
}

func TestRun_ContextCancelStopsFold(t *testing.T) {
	e := newEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx, &sliceSource{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
