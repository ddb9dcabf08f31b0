package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"TxStream/internal/ledger"
	"TxStream/internal/observability"
	"TxStream/internal/record"
)

// RecordSource yields a finite, ordered sequence of transaction records.
// Next returns io.EOF when the source is exhausted, record.ErrMalformed
// (wrapped) for a row that should be skipped, and any other error for a
// terminal source failure.
type RecordSource interface {
	Next() (record.Record, error)
}

// Summary describes one completed run.
type Summary struct {
	Processed uint64 // records routed to an account
	Skipped   uint64 // malformed records dropped
	Clients   int
	Locked    int
}

// Engine routes records to per-client accounts, creating accounts on first
// sight, and produces the final snapshot set. It is the single-threaded
// processor: each record is applied to completion before the next is read,
// and no state is shared across clients.
type Engine struct {
	log     zerolog.Logger
	metrics *observability.Metrics // nil disables metrics

	clients   map[uint16]*ledger.Account
	processed uint64
	skipped   uint64
}

func NewEngine(log zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		log:     log,
		metrics: metrics,
		clients: make(map[uint16]*ledger.Account),
	}
}

// Process applies a single record. The first record for a client constructs
// its account seeded from that record; later records dispatch to the
// account's state machine. State-machine rejections are not errors.
func (e *Engine) Process(rec record.Record) {
	start := time.Now()
	e.processed++

	acc, ok := e.clients[rec.ClientID]
	if !ok {
		e.clients[rec.ClientID] = ledger.NewAccount(rec.ClientID, rec)
		e.log.Debug().
			Uint16("client", rec.ClientID).
			Uint32("tx", rec.TxID).
			Stringer("kind", rec.Kind).
			Msg("account created")
		if e.metrics != nil {
			e.metrics.AccountsCreated.Inc()
			e.metrics.AccountsTotal.Set(float64(len(e.clients)))
			e.metrics.RecordsApplied.WithLabelValues(rec.Kind.String()).Inc()
			e.metrics.RecordDuration.WithLabelValues(rec.Kind.String()).Observe(time.Since(start).Seconds())
		}
		return
	}

	lockedBefore := acc.Locked()
	applied := acc.Apply(rec)

	if e.metrics != nil {
		kind := rec.Kind.String()
		if applied {
			e.metrics.RecordsApplied.WithLabelValues(kind).Inc()
			switch rec.Kind {
			case record.KindDispute:
				e.metrics.DisputesOpen.Inc()
			case record.KindResolve, record.KindChargeback:
				e.metrics.DisputesOpen.Dec()
			}
			if !lockedBefore && acc.Locked() {
				e.metrics.AccountsLocked.Inc()
			}
		} else {
			e.metrics.RecordsIgnored.WithLabelValues(kind).Inc()
		}
		e.metrics.RecordDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}

	if !applied {
		e.log.Debug().
			Uint16("client", rec.ClientID).
			Uint32("tx", rec.TxID).
			Stringer("kind", rec.Kind).
			Msg("record ignored by state machine")
	}
}

// Run folds an entire source into the engine. Malformed rows are counted and
// skipped; a terminal source error aborts the run and is returned. Context
// cancellation stops the fold between records.
func (e *Engine) Run(ctx context.Context, src RecordSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, record.ErrMalformed) {
				e.skipped++
				if e.metrics != nil {
					e.metrics.RecordsSkipped.WithLabelValues("malformed").Inc()
				}
				e.log.Debug().Err(err).Msg("skipping malformed record")
				continue
			}
			return fmt.Errorf("record source failed: %w", err)
		}

		e.Process(rec)
	}
}

// Account returns the account for a client, if one exists.
func (e *Engine) Account(clientID uint16) (*ledger.Account, bool) {
	acc, ok := e.clients[clientID]
	return acc, ok
}

// Snapshots returns one snapshot per known client in map iteration order.
// Callers that need deterministic output use SnapshotsSorted.
func (e *Engine) Snapshots() []ledger.Snapshot {
	snaps := make([]ledger.Snapshot, 0, len(e.clients))
	for _, acc := range e.clients {
		snaps = append(snaps, acc.Snapshot())
	}
	return snaps
}

// SnapshotsSorted returns snapshots ordered by ascending client ID.
func (e *Engine) SnapshotsSorted() []ledger.Snapshot {
	snaps := e.Snapshots()
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].ClientID < snaps[j].ClientID
	})
	return snaps
}

// Summary returns run totals for logging and persistence.
func (e *Engine) Summary() Summary {
	locked := 0
	for _, acc := range e.clients {
		if acc.Locked() {
			locked++
		}
	}
	return Summary{
		Processed: e.processed,
		Skipped:   e.skipped,
		Clients:   len(e.clients),
		Locked:    locked,
	}
}

// CheckInvariants verifies money conservation across every account.
func (e *Engine) CheckInvariants() error {
	for _, acc := range e.clients {
		if err := acc.CheckInvariant(); err != nil {
			return err
		}
	}
	return nil
}
