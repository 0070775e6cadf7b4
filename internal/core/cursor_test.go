package core

import (
	"testing"
	"time"
)

func TestCursorPrev(t *testing.T) {
	cases := []struct{ in, want Cursor }{
		{Cursor{2025, time.June}, Cursor{2025, time.May}},
		{Cursor{2025, time.January}, Cursor{2024, time.December}},
	}
	for _, tc := range cases {
		if got := tc.in.Prev(); got != tc.want {
			t.Fatalf("%v.Prev() = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCursorNext(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in, want Cursor
		canMove  bool
	}{
		{Cursor{2025, time.May}, Cursor{2025, time.June}, true},
		{Cursor{2024, time.December}, Cursor{2025, time.January}, true},
		{Cursor{2025, time.June}, Cursor{2025, time.June}, false},
		{Cursor{2025, time.August}, Cursor{2025, time.August}, false},
	}
	for _, tc := range cases {
		if got := tc.in.CanAdvance(now); got != tc.canMove {
			t.Fatalf("%v.CanAdvance = %v", tc.in, got)
		}
		if got := tc.in.Next(now); got != tc.want {
			t.Fatalf("%v.Next() = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCursorAt(t *testing.T) {
	c := CursorAt(time.Date(2025, time.March, 31, 23, 0, 0, 0, time.UTC))
	if c != (Cursor{2025, time.March}) || !c.Valid() {
		t.Fatalf("got %v", c)
	}
	if (Cursor{2025, 13}).Valid() {
		t.Fatalf("month 13 should be invalid")
	}
}
