package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1500", 150000, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"0", 0, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"1,500", 150000, true},
		{"12,345,678", 1234567800, true},
		{"¥980", 98000, true},
		{"980円", 98000, true},
		{".5", 50, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1,50", 0, false},
		{"1,5000", 0, false},
		{"１２", 0, false}, // full-width digits
		{"", 0, false},
		{".", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseAmountLenient(t *testing.T) {
	if m, ok := ParseAmount("abc"); ok || m.Cents != 0 {
		t.Fatalf("abc: got %v ok=%v", m, ok)
	}
	if m, ok := ParseAmount(""); ok || m.Cents != 0 {
		t.Fatalf("empty: got %v ok=%v", m, ok)
	}
	if m, ok := ParseAmount("1000"); !ok || m.Cents != 100000 {
		t.Fatalf("1000: got %v ok=%v", m, ok)
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:         "0",
		100:       "1",
		150000:    "1,500",
		123456789: "1,234,567.89",
		150050:    "1,500.50",
		-250000:   "-2,500",
		99900:     "999",
		100000000: "1,000,000",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("%d: got %q want %q", cents, got, want)
		}
	}
}
