package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("BTC/USDT", SideBuy, TypeLimit, dec("0.5"), dec("30000"), "deal-1")
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}
	return o
}

func TestNewOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		side   Side
		typ    OrderType
		amount string
		price  string
		ok     bool
	}{
		{"valid limit", "BTC/USDT", SideBuy, TypeLimit, "1", "100", true},
		{"valid market", "BTC/USDT", SideSell, TypeMarket, "1", "0", true},
		{"empty symbol", "", SideBuy, TypeLimit, "1", "100", false},
		{"bad side", "BTC/USDT", "LONG", TypeLimit, "1", "100", false},
		{"zero amount", "BTC/USDT", SideBuy, TypeLimit, "0", "100", false},
		{"negative amount", "BTC/USDT", SideBuy, TypeLimit, "-1", "100", false},
		{"limit without price", "BTC/USDT", SideBuy, TypeLimit, "1", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder(tt.symbol, tt.side, tt.typ, dec(tt.amount), dec(tt.price), "")
			if (err == nil) != tt.ok {
				t.Errorf("NewOrder() error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestOrder_MarkPlaced(t *testing.T) {
	o := newTestOrder(t)
	ts := time.Now().UTC()

	if err := o.MarkPlaced("ex-1", ts); err != nil {
		t.Fatalf("MarkPlaced failed: %v", err)
	}
	if o.Status != StatusOpen || o.ExchangeID != "ex-1" {
		t.Errorf("got status=%s exchangeID=%s, want OPEN/ex-1", o.Status, o.ExchangeID)
	}

	// A second placement must be rejected.
	if err := o.MarkPlaced("ex-2", ts); err == nil {
		t.Error("MarkPlaced twice should fail")
	}
	if o.ExchangeID != "ex-1" {
		t.Errorf("exchange id overwritten to %s", o.ExchangeID)
	}
}

func TestOrder_ApplyUpdate_Idempotent(t *testing.T) {
	o := newTestOrder(t)
	ts := time.Now().UTC()
	if err := o.MarkPlaced("ex-1", ts); err != nil {
		t.Fatal(err)
	}

	snap := OrderSnapshot{
		ExchangeID:   "ex-1",
		Status:       StatusPartiallyFilled,
		FilledAmount: dec("0.2"),
		AveragePrice: dec("29999.5"),
		Timestamp:    ts.Add(time.Second),
	}

	if !o.ApplyUpdate(snap) {
		t.Fatal("first ApplyUpdate should mutate")
	}
	before := *o

	// Same snapshot again: no mutation at all.
	if o.ApplyUpdate(snap) {
		t.Error("second ApplyUpdate of identical snapshot should be a no-op")
	}
	if *o != before {
		t.Error("order state changed on idempotent re-apply")
	}
}

func TestOrder_ApplyUpdate_NeverRegresses(t *testing.T) {
	o := newTestOrder(t)
	ts := time.Now().UTC()
	if err := o.MarkPlaced("ex-1", ts); err != nil {
		t.Fatal(err)
	}

	o.ApplyUpdate(OrderSnapshot{
		ExchangeID:   "ex-1",
		Status:       StatusPartiallyFilled,
		FilledAmount: dec("0.3"),
		Timestamp:    ts.Add(2 * time.Second),
	})

	tests := []struct {
		name string
		snap OrderSnapshot
	}{
		{"older timestamp", OrderSnapshot{ExchangeID: "ex-1", Status: StatusOpen, FilledAmount: dec("0.1"), Timestamp: ts.Add(time.Second)}},
		{"lower status rank", OrderSnapshot{ExchangeID: "ex-1", Status: StatusOpen, Timestamp: ts.Add(3 * time.Second)}},
		{"foreign exchange id", OrderSnapshot{ExchangeID: "ex-9", Status: StatusFilled, FilledAmount: dec("0.5"), Timestamp: ts.Add(3 * time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if o.ApplyUpdate(tt.snap) {
				t.Error("stale snapshot applied")
			}
			if !o.FilledAmount.Equal(dec("0.3")) || o.Status != StatusPartiallyFilled {
				t.Errorf("state regressed: status=%s filled=%s", o.Status, o.FilledAmount)
			}
		})
	}
}

func TestOrder_ApplyUpdate_ClampsFilled(t *testing.T) {
	o := newTestOrder(t)
	ts := time.Now().UTC()
	if err := o.MarkPlaced("ex-1", ts); err != nil {
		t.Fatal(err)
	}

	o.ApplyUpdate(OrderSnapshot{
		ExchangeID:   "ex-1",
		Status:       StatusFilled,
		FilledAmount: dec("0.7"), // above Amount 0.5
		Timestamp:    ts.Add(time.Second),
	})
	if !o.FilledAmount.Equal(o.Amount) {
		t.Errorf("FilledAmount = %s, want clamped to %s", o.FilledAmount, o.Amount)
	}
}

func TestOrder_ApplyUpdate_TerminalIsFinal(t *testing.T) {
	o := newTestOrder(t)
	ts := time.Now().UTC()
	if err := o.MarkPlaced("ex-1", ts); err != nil {
		t.Fatal(err)
	}
	o.ApplyUpdate(OrderSnapshot{ExchangeID: "ex-1", Status: StatusFilled, FilledAmount: dec("0.5"), Timestamp: ts.Add(time.Second)})

	if o.ApplyUpdate(OrderSnapshot{ExchangeID: "ex-1", Status: StatusCanceled, Timestamp: ts.Add(2 * time.Second)}) {
		t.Error("terminal order accepted an update")
	}
	if o.Status != StatusFilled {
		t.Errorf("status = %s, want FILLED", o.Status)
	}
}

func TestOrder_Cancel(t *testing.T) {
	tests := []struct {
		name       string
		status     OrderStatus
		wantStatus OrderStatus
	}{
		{"pending cancels locally", StatusPending, StatusCanceled},
		{"open cancels", StatusOpen, StatusCanceled},
		{"partial cancels", StatusPartiallyFilled, StatusCanceled},
		{"filled is a no-op", StatusFilled, StatusFilled},
		{"canceled is a no-op", StatusCanceled, StatusCanceled},
		{"failed is a no-op", StatusFailed, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrder(t)
			o.Status = tt.status
			if err := o.Cancel(time.Now().UTC()); err != nil {
				t.Errorf("Cancel() error = %v", err)
			}
			if o.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", o.Status, tt.wantStatus)
			}
		})
	}
}

func TestOrder_JSONRoundTrip(t *testing.T) {
	o := newTestOrder(t)
	ts := time.Now().UTC().Truncate(time.Microsecond)
	if err := o.MarkPlaced("ex-1", ts); err != nil {
		t.Fatal(err)
	}
	o.ApplyUpdate(OrderSnapshot{
		ExchangeID:   "ex-1",
		Status:       StatusPartiallyFilled,
		FilledAmount: dec("0.25"),
		AveragePrice: dec("30001.5"),
		Fees:         dec("0.03"),
		Timestamp:    ts.Add(time.Second),
	})
	o.Retries = 2
	o.ErrorMessage = "timeout on attempt 2"

	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Order
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.ID != o.ID || back.Side != o.Side || back.Type != o.Type ||
		back.Status != o.Status || back.ExchangeID != o.ExchangeID ||
		back.DealID != o.DealID || back.Retries != o.Retries ||
		back.ErrorMessage != o.ErrorMessage {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", back, *o)
	}
	if !back.Price.Equal(o.Price) || !back.Amount.Equal(o.Amount) ||
		!back.FilledAmount.Equal(o.FilledAmount) || !back.AveragePrice.Equal(o.AveragePrice) ||
		!back.Fees.Equal(o.Fees) {
		t.Error("decimal fields did not round-trip")
	}
	if !back.CreatedAt.Equal(o.CreatedAt) || !back.LastSyncAt.Equal(o.LastSyncAt) {
		t.Error("timestamps did not round-trip")
	}
}
