package system

import (
	"encoding/json"
	"testing"
	"time"
)

func TestClockNowIsUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := New().Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestClockNowConvertsAndTruncates(t *testing.T) {
	t.Parallel()

	berlin := time.FixedZone("CET", 60*60)
	local := time.Date(2026, time.March, 1, 21, 30, 15, 123456789, berlin)
	clk := &Clock{now: func() time.Time { return local }}

	got := clk.Now()
	want := time.Date(2026, time.March, 1, 20, 30, 15, 123000000, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("Now() = %v, want %v", got, want)
	}

	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"2026-03-01T20:30:15.123Z"` {
		t.Fatalf("unexpected JSON timestamp %s", raw)
	}
	var back time.Time
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(got) {
		t.Fatalf("timestamp changed across JSON: %v != %v", back, got)
	}
}

func TestZeroClockFallsBackToTimeNow(t *testing.T) {
	t.Parallel()

	var clk Clock
	if got := clk.Now(); got.IsZero() || got.Location() != time.UTC {
		t.Fatalf("unexpected zero-value clock reading %v", got)
	}
}
