package pipeline

import (
	"testing"
	"time"
)

func TestSchedule_next(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 31, 10, 17, 30, 0, time.UTC) // Friday

	cases := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2025, 1, 31, 10, 18, 0, 0, time.UTC)},
		{"0 3 * * *", time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2025, 1, 31, 10, 30, 0, 0, time.UTC)},
		{"0 9-17 * * 1-5", time.Date(2025, 1, 31, 11, 0, 0, 0, time.UTC)},
		{"30 2 1 * *", time.Date(2025, 2, 1, 2, 30, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)},
		{"5,45 10 * * *", time.Date(2025, 1, 31, 10, 45, 0, 0, time.UTC)},
		{"0 0 1 * 1", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		s, err := parseCron(tc.expr)
		if err != nil {
			t.Fatalf("parseCron(%q): %v", tc.expr, err)
		}
		got, err := s.next(base)
		if err != nil {
			t.Fatalf("next(%q): %v", tc.expr, err)
		}
		if !got.Equal(tc.want) {
			t.Errorf("%q: got %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestSchedule_next_eitherDayField(t *testing.T) {
	t.Parallel()

	s, err := parseCron("0 0 1 * 1")
	if err != nil {
		t.Fatalf("parseCron: %v", err)
	}

	after := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	want := []time.Time{
		time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),  // Monday
		time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), // Monday
		time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), // Monday
		time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC), // Monday
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),  // 1st, a Saturday
	}
	for _, w := range want {
		got, err := s.next(after)
		if err != nil {
			t.Fatalf("next(%v): %v", after, err)
		}
		if !got.Equal(w) {
			t.Fatalf("next(%v): got %v, want %v", after, got, w)
		}
		after = got
	}
}

func TestParseCron_errors(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
	} {
		if err := ValidateCron(expr); err == nil {
			t.Errorf("ValidateCron(%q): expected error", expr)
		}
	}
}

func TestSchedule_next_impossible(t *testing.T) {
	t.Parallel()

	s, err := parseCron("0 0 31 2 *")
	if err != nil {
		t.Fatalf("parseCron: %v", err)
	}
	if _, err := s.next(time.Now()); err == nil {
		t.Fatalf("expected no-match error for Feb 31")
	}
}
