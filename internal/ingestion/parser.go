package ingestion

import (
	"encoding/json"
	"fmt"

	"TxStream/internal/money"
	"TxStream/internal/record"
)

// recordJSON is the wire format for records received over NATS. Field names
// use snake_case to match upstream producers; amount travels as a decimal
// string so no precision is lost in transit.
type recordJSON struct {
	Type   string  `json:"type"`
	Client *uint16 `json:"client"`
	Tx     *uint32 `json:"tx"`
	Amount string  `json:"amount,omitempty"`
}

// ParseRawRecord converts a JSON payload into a typed record. Missing client
// or tx identifiers make the payload malformed (skippable); an unrecognized
// type string falls back to dispute via record.ParseKind.
func ParseRawRecord(data []byte) (record.Record, error) {
	var j recordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return record.Record{}, fmt.Errorf("%w: %v", record.ErrMalformed, err)
	}

	if j.Client == nil {
		return record.Record{}, fmt.Errorf("%w: missing client", record.ErrMalformed)
	}
	if j.Tx == nil {
		return record.Record{}, fmt.Errorf("%w: missing tx", record.ErrMalformed)
	}

	var amount money.Amount
	if j.Amount != "" {
		var err error
		amount, err = money.Parse(j.Amount)
		if err != nil {
			return record.Record{}, fmt.Errorf("%w: amount %q", record.ErrMalformed, j.Amount)
		}
	}

	return record.Record{
		Kind:     record.ParseKind(j.Type),
		ClientID: *j.Client,
		TxID:     *j.Tx,
		Amount:   amount,
	}, nil
}
