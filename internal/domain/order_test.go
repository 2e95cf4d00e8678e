package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

func TestNewOrderRecord_SkipsZeroQuantityAndSumsTotal(t *testing.T) {
	date := time.Date(2024, 5, 1, 10, 30, 0, 123456789, time.UTC)
	rec := domain.NewOrderRecord(date, []domain.OrderLine{
		{ProductID: "A", Price: 10, Quantity: 3},
		{ProductID: "B", Price: 2.5, Quantity: 0},
		{ProductID: "C", Price: 2.5, Quantity: 2},
	})

	if len(rec.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(rec.Items))
	}
	if rec.Total != 35 {
		t.Fatalf("expected total 35, got %v", rec.Total)
	}
	if rec.Key() != "2024-05-01T10:30:00.123Z" {
		t.Fatalf("unexpected key %s", rec.Key())
	}
}

func TestOrderRecord_JSONRoundTrip(t *testing.T) {
	raw := []byte(`{"date":"2024-05-01T10:30:00.000Z","total":30,"items":[{"id":"A","price":10,"quantity":3}]}`)

	var rec domain.OrderRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if rec.Items[0].ProductID != "A" || rec.Items[0].Quantity != 3 {
		t.Fatalf("unexpected items: %+v", rec.Items)
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(encoded) != string(raw) {
		t.Fatalf("round trip mismatch:\n got %s\nwant %s", encoded, raw)
	}
}

func TestOrderRecord_UnmarshalInvalidDate(t *testing.T) {
	var rec domain.OrderRecord
	err := json.Unmarshal([]byte(`{"date":"yesterday","total":1,"items":[]}`), &rec)
	if err == nil {
		t.Fatal("expected error for invalid date")
	}
}

func TestOrderRecordValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		rec  domain.OrderRecord
	}{
		{name: "no date", rec: domain.OrderRecord{Total: 1, Items: []domain.OrderLine{{ProductID: "A", Price: 1, Quantity: 1}}}},
		{name: "no items", rec: domain.OrderRecord{Date: time.Now()}},
		{name: "zero qty", rec: domain.OrderRecord{Date: time.Now(), Items: []domain.OrderLine{{ProductID: "A", Price: 1}}}},
		{name: "negative price", rec: domain.OrderRecord{Date: time.Now(), Items: []domain.OrderLine{{ProductID: "A", Price: -1, Quantity: 1}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if errs := tc.rec.Validate(); len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
		})
	}
}

func TestParseQuantity(t *testing.T) {
	cases := map[string]int{
		"3":    3,
		" 12 ": 12,
		"3.7":  3,
		"-2":   0,
		"abc":  0,
		"":     0,
		"+4":   4,
		"7kg":  7,

		"99999999999":           domain.MaxQuantity,
		"99999999999999999999":  domain.MaxQuantity,
		"-99999999999999999999": 0,
	}
	for raw, want := range cases {
		if got := domain.ParseQuantity(raw); got != want {
			t.Errorf("ParseQuantity(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestQuantityFromJSON(t *testing.T) {
	cases := map[string]int{
		`5`:    5,
		`2.9`:  2,
		`-1`:   0,
		`"6"`:  6,
		`"x"`:  0,
		`null`: 0,
		`true`: 0,

		`1e10`:          domain.MaxQuantity,
		`2147483647`:    domain.MaxQuantity,
		`"12345678901"`: domain.MaxQuantity,
	}
	for raw, want := range cases {
		if got := domain.QuantityFromJSON(json.RawMessage(raw)); got != want {
			t.Errorf("QuantityFromJSON(%s) = %d, want %d", raw, got, want)
		}
	}
}

func TestDateRange_SameDayIncludesWholeDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	r := domain.DateRange{From: day, To: day}

	inside := []time.Time{
		time.Date(2024, 5, 1, 0, 0, 0, 0, loc),
		time.Date(2024, 5, 1, 23, 59, 59, int(999*time.Millisecond), loc),
	}
	for _, ts := range inside {
		if !r.Contains(ts, loc) {
			t.Fatalf("expected %s to be inside range", ts)
		}
	}

	outside := []time.Time{
		time.Date(2024, 4, 30, 23, 59, 59, 0, loc),
		time.Date(2024, 5, 2, 0, 0, 0, 0, loc),
	}
	for _, ts := range outside {
		if r.Contains(ts, loc) {
			t.Fatalf("expected %s to be outside range", ts)
		}
	}
}

func TestDateRange_Unbounded(t *testing.T) {
	r := domain.DateRange{}
	if !r.Contains(time.Unix(0, 0), time.UTC) {
		t.Fatal("unbounded range must contain everything")
	}
}
