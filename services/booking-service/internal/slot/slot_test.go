package slot

import (
	"testing"
	"time"
)

func TestStartOfHour_TruncatesBelowHourPrecision(t *testing.T) {
	in := time.Date(2026, 3, 10, 14, 37, 52, 918273645, time.UTC)
	got := StartOfHour(in)
	want := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want.Format(time.RFC3339Nano), got.Format(time.RFC3339Nano))
	}
}

func TestStartOfHour_AlignedInputUnchanged(t *testing.T) {
	in := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if got := StartOfHour(in); !got.Equal(in) {
		t.Fatalf("aligned instant should be unchanged, got %s", got.Format(time.RFC3339Nano))
	}
}

func TestStartOfHour_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2026, 3, 10, 17, 30, 0, 0, loc)
	got := StartOfHour(in)
	want := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("expected %s in UTC, got %s", want.Format(time.RFC3339), got.Format(time.RFC3339))
	}
}

func TestIsPast_StrictlyBefore(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	if !IsPast(now.Add(-time.Second), now) {
		t.Fatal("instant before now should be past")
	}
	if IsPast(now, now) {
		t.Fatal("instant equal to now is not strictly before it")
	}
	if IsPast(now.Add(time.Second), now) {
		t.Fatal("future instant should not be past")
	}
}
