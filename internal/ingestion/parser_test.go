package ingestion_test

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"OptionStats/internal/event"
	"OptionStats/internal/ingestion"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func baseMeta() map[string]interface{} {
	return map[string]interface{}{
		"block_number": int64(18_500_000),
		"tx_hash":      "0xdeadbeef",
		"log_index":    int64(3),
		"timestamp":    int64(1_700_000_000),
		"contract":     "0x00000000000000000000000000000000000000aa",
	}
}

func TestParseCreate(t *testing.T) {
	payload := baseMeta()
	payload["option_id"] = int64(7)
	payload["user"] = "0x00000000000000000000000000000000000000cc"
	payload["total_fee"] = "100000000000000000000"
	payload["settlement_fee"] = "20000000000000000000"

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "Create")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	c, ok := evt.(*event.Create)
	if !ok {
		t.Fatalf("expected *event.Create, got %T", evt)
	}
	if c.OptionID != 7 {
		t.Errorf("option id: got %d, want 7", c.OptionID)
	}
	want, _ := new(big.Int).SetString("100000000000000000000", 10)
	if c.TotalFee.Cmp(want) != 0 {
		t.Errorf("total fee: got %s, want %s", c.TotalFee, want)
	}
	if c.IdempotencyKey() != "0xdeadbeef-3" {
		t.Errorf("idempotency key: got %s", c.IdempotencyKey())
	}
	if c.SourceSequence() != 18_500_000<<16|3 {
		t.Errorf("source sequence: got %d", c.SourceSequence())
	}
}

func TestParseExercise(t *testing.T) {
	payload := baseMeta()
	payload["option_id"] = int64(9)
	payload["payout"] = "180000000"
	payload["price_at_expiration"] = "6600000000000"

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "Exercise")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	ex := evt.(*event.Exercise)
	if ex.Payout.Cmp(big.NewInt(180_000_000)) != 0 {
		t.Errorf("payout: got %s", ex.Payout)
	}
}

func TestParseTokenTransfer(t *testing.T) {
	payload := baseMeta()
	payload["from"] = "0x0000000000000000000000000000000000000000"
	payload["to"] = "0x00000000000000000000000000000000000000dd"
	payload["value"] = "5000000000000000000"

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "TokenTransfer")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	tr := evt.(*event.TokenTransfer)
	if tr.To != "0x00000000000000000000000000000000000000dd" {
		t.Errorf("to: got %s", tr.To)
	}
}

func TestParseRejectsBadPayloads(t *testing.T) {
	// Missing tx_hash.
	payload := baseMeta()
	delete(payload, "tx_hash")
	payload["option_id"] = int64(7)
	payload["user"] = "0xcc"
	payload["total_fee"] = "100"
	payload["settlement_fee"] = "20"
	if _, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "Create"); err == nil {
		t.Error("payload without tx_hash must be rejected")
	}

	// Amount that is not a decimal string.
	payload = baseMeta()
	payload["option_id"] = int64(7)
	payload["user"] = "0xcc"
	payload["total_fee"] = "not-a-number"
	payload["settlement_fee"] = "20"
	if _, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "Create"); err == nil {
		t.Error("non-numeric amount must be rejected")
	}

	// Unknown type.
	if _, err := ingestion.ParseRawEvent(rawFromJSON(t, baseMeta()), "Nonsense"); err == nil {
		t.Error("unknown event type must be rejected")
	}
}
