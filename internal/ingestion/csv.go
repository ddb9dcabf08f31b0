package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"TxStream/internal/money"
	"TxStream/internal/record"
)

// CSVSource reads transaction records from a CSV stream with the layout
//
//	type,client,tx,amount
//
// A header row is skipped if present. Fields tolerate surrounding
// whitespace; the amount column may be absent or empty. Rows missing a
// client or tx identifier yield record.ErrMalformed and are skippable;
// reader-level failures are terminal.
type CSVSource struct {
	r      *csv.Reader
	closer io.Closer
	line   int
}

func NewCSVSource(r io.Reader) *CSVSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are handled per-field
	cr.TrimLeadingSpace = true
	return &CSVSource{r: cr}
}

// NewCSVFileSource opens path for reading. Callers own Close.
func NewCSVFileSource(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record source: %w", err)
	}
	src := NewCSVSource(f)
	src.closer = f
	return src, nil
}

func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Next returns the next record, io.EOF at end of stream, or an error.
func (s *CSVSource) Next() (record.Record, error) {
	for {
		row, err := s.r.Read()
		if err != nil {
			if err == io.EOF {
				return record.Record{}, io.EOF
			}
			return record.Record{}, fmt.Errorf("read csv: %w", err)
		}
		s.line++

		if s.line == 1 && isHeader(row) {
			continue
		}

		return parseRow(row, s.line)
	}
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "type")
}

func parseRow(row []string, line int) (record.Record, error) {
	if len(row) < 3 {
		return record.Record{}, fmt.Errorf("line %d: %w: want at least type,client,tx, got %d fields",
			line, record.ErrMalformed, len(row))
	}

	kind := record.ParseKind(strings.TrimSpace(row[0]))

	clientField := strings.TrimSpace(row[1])
	if clientField == "" {
		return record.Record{}, fmt.Errorf("line %d: %w: missing client", line, record.ErrMalformed)
	}
	clientID, err := strconv.ParseUint(clientField, 10, 16)
	if err != nil {
		return record.Record{}, fmt.Errorf("line %d: %w: client %q", line, record.ErrMalformed, clientField)
	}

	txField := strings.TrimSpace(row[2])
	if txField == "" {
		return record.Record{}, fmt.Errorf("line %d: %w: missing tx", line, record.ErrMalformed)
	}
	txID, err := strconv.ParseUint(txField, 10, 32)
	if err != nil {
		return record.Record{}, fmt.Errorf("line %d: %w: tx %q", line, record.ErrMalformed, txField)
	}

	// Amount defaults to zero when the column is absent or empty, which is
	// the normal shape for dispute-lifecycle rows.
	var amount money.Amount
	if len(row) > 3 {
		if amountField := strings.TrimSpace(row[3]); amountField != "" {
			amount, err = money.Parse(amountField)
			if err != nil {
				return record.Record{}, fmt.Errorf("line %d: %w: amount %q", line, record.ErrMalformed, amountField)
			}
		}
	}

	return record.Record{
		Kind:     kind,
		ClientID: uint16(clientID),
		TxID:     uint32(txID),
		Amount:   amount,
	}, nil
}
