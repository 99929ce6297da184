package model

import (
	"testing"
	"time"
)

func TestQuoteSessionContains(t *testing.T) {
	sess := QuoteSession{Weekday: time.Monday, StartHour: 9, StartMin: 0, EndHour: 17, EndMin: 30}

	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"inside", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true}, // Jan 1 2024 is a Monday
		{"before open", time.Date(2024, 1, 1, 8, 59, 0, 0, time.UTC), false},
		{"at close boundary", time.Date(2024, 1, 1, 17, 30, 0, 0, time.UTC), false},
		{"wrong weekday", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := sess.Contains(c.t); got != c.want {
				t.Errorf("Contains(%v) = %v, want %v", c.t, got, c.want)
			}
		})
	}
}

func TestSymbolSpecificationInSession(t *testing.T) {
	spec := SymbolSpecification{
		Symbol: "EURUSD",
		Sessions: []QuoteSession{
			{Weekday: time.Monday, StartHour: 0, StartMin: 0, EndHour: 23, EndMin: 59},
		},
	}

	monday := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tuesday := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	if !spec.InSession(monday) {
		t.Error("expected Monday to be in session")
	}
	if spec.InSession(tuesday) {
		t.Error("expected Tuesday to not be in session")
	}
}
