package ingestion_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"TxStream/internal/ingestion"
	"TxStream/internal/money"
	"TxStream/internal/record"
)

func readAll(t *testing.T, src *ingestion.CSVSource) ([]record.Record, []error) {
	t.Helper()
	var recs []record.Record
	var malformed []error
	for {
		rec, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return recs, malformed
			}
			if errors.Is(err, record.ErrMalformed) {
				malformed = append(malformed, err)
				continue
			}
			t.Fatalf("unexpected source error: %v", err)
		}
		recs = append(recs, rec)
	}
}

func TestCSVSource_ParsesRecords(t *testing.T) {
	input := `type,client,tx,amount
deposit, 1, 1, 1.0
withdrawal, 1, 2, 0.5
dispute, 1, 1,
`
	recs, malformed := readAll(t, ingestion.NewCSVSource(strings.NewReader(input)))
	if len(malformed) != 0 {
		t.Fatalf("unexpected malformed rows: %v", malformed)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}

	if recs[0].Kind != record.KindDeposit || recs[0].ClientID != 1 || recs[0].TxID != 1 {
		t.Errorf("record 0: got %+v", recs[0])
	}
	if recs[0].Amount != money.MustParse("1") {
		t.Errorf("record 0 amount: got %s, want 1", recs[0].Amount)
	}
	if recs[1].Kind != record.KindWithdrawal || recs[1].Amount != money.MustParse("0.5") {
		t.Errorf("record 1: got %+v", recs[1])
	}
	if recs[2].Kind != record.KindDispute || !recs[2].Amount.IsZero() {
		t.Errorf("record 2: got %+v", recs[2])
	}
}

func TestCSVSource_NoHeader(t *testing.T) {
	recs, malformed := readAll(t, ingestion.NewCSVSource(strings.NewReader("deposit,1,1,2.5\n")))
	if len(malformed) != 0 || len(recs) != 1 {
		t.Fatalf("got %d records %d malformed, want 1/0", len(recs), len(malformed))
	}
	if recs[0].Amount != money.MustParse("2.5") {
		t.Errorf("amount: got %s, want 2.5", recs[0].Amount)
	}
}

func TestCSVSource_MissingAmountColumnDefaultsToZero(t *testing.T) {
	// Dispute-lifecycle rows commonly omit the amount column entirely.
	recs, malformed := readAll(t, ingestion.NewCSVSource(strings.NewReader("dispute,1,1\n")))
	if len(malformed) != 0 || len(recs) != 1 {
		t.Fatalf("got %d records %d malformed, want 1/0", len(recs), len(malformed))
	}
	if !recs[0].Amount.IsZero() {
		t.Errorf("amount: got %s, want 0", recs[0].Amount)
	}
}

func TestCSVSource_MalformedRows(t *testing.T) {
	cases := []string{
		"deposit,,1,1.0\n",       // missing client
		"deposit,1,,1.0\n",       // missing tx
		"deposit,70000,1,1.0\n",  // client out of uint16 range
		"deposit,1,abc,1.0\n",    // non-numeric tx
		"deposit,1,1,abc\n",      // non-numeric amount
		"deposit,1\n",            // too few fields
	}

	for _, input := range cases {
		_, err := ingestion.NewCSVSource(strings.NewReader(input)).Next()
		if !errors.Is(err, record.ErrMalformed) {
			t.Errorf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestCSVSource_UnknownKindBecomesDispute(t *testing.T) {
	recs, malformed := readAll(t, ingestion.NewCSVSource(strings.NewReader("transfer,1,1,\n")))
	if len(malformed) != 0 || len(recs) != 1 {
		t.Fatalf("got %d records %d malformed, want 1/0", len(recs), len(malformed))
	}
	if recs[0].Kind != record.KindDispute {
		t.Errorf("kind: got %v, want KindDispute", recs[0].Kind)
	}
}

func TestCSVSource_MalformedRowDoesNotStopStream(t *testing.T) {
	input := "deposit,1,1,1.0\ndeposit,,2,1.0\ndeposit,2,3,1.0\n"
	recs, malformed := readAll(t, ingestion.NewCSVSource(strings.NewReader(input)))
	if len(recs) != 2 {
		t.Errorf("got %d records, want 2", len(recs))
	}
	if len(malformed) != 1 {
		t.Errorf("got %d malformed, want 1", len(malformed))
	}
}
