package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestParseMonth(t *testing.T) {
	got, ok := ParseMonth("2025-03")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Year() != 2025 || got.Month() != time.March {
		t.Fatalf("unexpected month %v", got)
	}
	if _, ok := ParseMonth("03/2025"); ok {
		t.Fatalf("expected parse failure")
	}
}

func TestMonthStart(t *testing.T) {
	in := time.Date(2025, 7, 19, 13, 45, 0, 0, time.UTC)
	want := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if got := MonthStart(in); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestMonthsBetween(t *testing.T) {
	a := time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)
	b := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if got := MonthsBetween(a, b); got != 3 {
		t.Fatalf("got %d want 3", got)
	}
	if got := MonthsBetween(b, a); got != -3 {
		t.Fatalf("got %d want -3", got)
	}
	if got := MonthsBetween(b, b); got != 0 {
		t.Fatalf("got %d want 0", got)
	}
}
