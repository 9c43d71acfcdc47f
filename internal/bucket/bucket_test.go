package bucket_test

import (
	"OptionStats/internal/bucket"
	"testing"
)

func TestDayID_OffsetBoundary(t *testing.T) {
	// One second before the 16:00 UTC rollover stays in the previous day.
	base := int64(1_700_000_000) // 2023-11-14 22:13:20 UTC
	day := (base - bucket.OffsetSeconds) / 86400

	if got := bucket.DayID(base); got != "19675" {
		t.Errorf("DayID(%d) = %s, want 19675", base, got)
	}

	boundary := (day+1)*86400 + bucket.OffsetSeconds
	if bucket.DayID(boundary-1) == bucket.DayID(boundary) {
		t.Error("timestamps on both sides of the rollover must land in different days")
	}
}

func TestHourID_Sequential(t *testing.T) {
	ts := int64(1_700_000_000)
	if bucket.HourID(ts) == bucket.HourID(ts+3600) {
		t.Error("timestamps one hour apart must land in different hourly buckets")
	}
	if bucket.HourID(ts) != bucket.HourID(ts+59) {
		t.Error("timestamps within the same hour must share a bucket")
	}
}

func TestWeekID_AnchorShift(t *testing.T) {
	ts := int64(1_700_000_000)
	want := (ts - bucket.OffsetSeconds - 4*86400) / (7 * 86400)
	if got := bucket.WeekID(ts); got != "2810" {
		t.Errorf("WeekID(%d) = %s, want 2810 (computed %d)", ts, got, want)
	}

	// A full week later is the next bucket.
	if bucket.WeekID(ts) == bucket.WeekID(ts+7*86400) {
		t.Error("timestamps one week apart must land in different weekly buckets")
	}
}

func TestBucketIDs_Stable(t *testing.T) {
	ts := int64(1_700_000_000)
	for i := 0; i < 3; i++ {
		if bucket.DayID(ts) != "19675" || bucket.HourID(ts) != bucket.HourID(ts) {
			t.Fatal("bucket ids must be pure functions of the timestamp")
		}
	}
}
