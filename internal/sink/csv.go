package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"TxStream/internal/ledger"
)

// CSVSink renders client snapshots as CSV with the layout
//
//	client,available,held,total,locked
//
// Row ordering is whatever the caller passes in: the engine exposes both
// unordered and sorted-by-client snapshot slices.
type CSVSink struct {
	w *csv.Writer
}

func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

// Write emits the header and one row per snapshot. Amounts render with
// minimal decimals (no trailing zeros), booleans as true/false.
func (s *CSVSink) Write(snaps []ledger.Snapshot) error {
	if err := s.w.Write([]string{"client", "available", "held", "total", "locked"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, snap := range snaps {
		row := []string{
			strconv.FormatUint(uint64(snap.ClientID), 10),
			snap.Available.String(),
			snap.Held.String(),
			snap.Total.String(),
			strconv.FormatBool(snap.Locked),
		}
		if err := s.w.Write(row); err != nil {
			return fmt.Errorf("write client %d: %w", snap.ClientID, err)
		}
	}

	s.w.Flush()
	return s.w.Error()
}
