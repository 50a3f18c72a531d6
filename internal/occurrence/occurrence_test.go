package occurrence

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{name: "valid one-time", spec: Spec{Hour: 7, Minute: 30}},
		{name: "valid repeating", spec: Spec{Hour: 0, Minute: 0, RepeatDays: []int{0, 6}}},
		{name: "hour too large", spec: Spec{Hour: 24, Minute: 0}, wantErr: true},
		{name: "hour negative", spec: Spec{Hour: -1, Minute: 0}, wantErr: true},
		{name: "minute too large", spec: Spec{Hour: 12, Minute: 60}, wantErr: true},
		{name: "day out of range", spec: Spec{Hour: 12, Minute: 0, RepeatDays: []int{7}}, wantErr: true},
		{name: "duplicate day", spec: Spec{Hour: 12, Minute: 0, RepeatDays: []int{2, 2}}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tc.spec)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %+v", tc.spec)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
		})
	}
}

func TestCalculator_Next_OneTime(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(time.UTC)
	// 2024-03-05 is a Tuesday.
	now := time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)

	t.Run("later today when the slot has not passed", func(t *testing.T) {
		t.Parallel()
		got := calc.Next(Spec{Hour: 9, Minute: 30}, now)
		want := time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("tomorrow when the slot has passed", func(t *testing.T) {
		t.Parallel()
		got := calc.Next(Spec{Hour: 7, Minute: 0}, now)
		want := time.Date(2024, time.March, 6, 7, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("exactly equal counts as passed", func(t *testing.T) {
		t.Parallel()
		got := calc.Next(Spec{Hour: 8, Minute: 0}, now)
		want := time.Date(2024, time.March, 6, 8, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("pure function of spec and now", func(t *testing.T) {
		t.Parallel()
		spec := Spec{Hour: 22, Minute: 15}
		first := calc.Next(spec, now)
		second := calc.Next(spec, now)
		if !first.Equal(second) {
			t.Fatalf("expected identical results, got %v and %v", first, second)
		}
	})
}

func TestCalculator_Next_Repeating(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(time.UTC)
	// 2024-03-05 08:00 Tuesday.
	now := time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)

	t.Run("skips to the nearest selected weekday", func(t *testing.T) {
		t.Parallel()
		// Mon/Wed/Fri at 07:00 evaluated Tuesday 08:00 resolves to
		// Wednesday 07:00, 23 hours later.
		got := calc.Next(Spec{Hour: 7, Minute: 0, RepeatDays: []int{1, 3, 5}}, now)
		want := time.Date(2024, time.March, 6, 7, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		if diff := got.Sub(now); diff != 23*time.Hour {
			t.Fatalf("expected 23h until trigger, got %v", diff)
		}
	})

	t.Run("today only when the slot is still ahead", func(t *testing.T) {
		t.Parallel()
		got := calc.Next(Spec{Hour: 9, Minute: 0, RepeatDays: []int{2}}, now)
		want := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("a passed slot on the only selected day moves a full week", func(t *testing.T) {
		t.Parallel()
		got := calc.Next(Spec{Hour: 7, Minute: 0, RepeatDays: []int{2}}, now)
		want := time.Date(2024, time.March, 12, 7, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("tomorrow-only set resolves to tomorrow not today", func(t *testing.T) {
		t.Parallel()
		got := calc.Next(Spec{Hour: 7, Minute: 0, RepeatDays: []int{3}}, now)
		want := time.Date(2024, time.March, 6, 7, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("result is strictly in the future for every day set", func(t *testing.T) {
		t.Parallel()
		for day := 0; day <= 6; day++ {
			for _, minute := range []int{0, 59} {
				got := calc.Next(Spec{Hour: 8, Minute: minute, RepeatDays: []int{day}}, now)
				if !got.After(now) {
					t.Fatalf("day %d minute %d produced non-future instant %v", day, minute, got)
				}
			}
		}
	})

	t.Run("offset seven scan never exceeds one week", func(t *testing.T) {
		t.Parallel()
		// Probe every weekday/now pairing: a non-empty set must always be
		// found within the 0..7 scan, so results stay within seven days.
		for dayOffset := 0; dayOffset < 7; dayOffset++ {
			reference := now.AddDate(0, 0, dayOffset)
			for day := 0; day <= 6; day++ {
				got := calc.Next(Spec{Hour: 8, Minute: 0, RepeatDays: []int{day}}, reference)
				if got.Sub(reference) > 7*24*time.Hour {
					t.Fatalf("reference %v day %d resolved beyond one week: %v", reference, day, got)
				}
			}
		}
	})
}

func TestCalculator_Next_DST(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}
	calc := NewCalculator(loc)

	// 2024-03-09 is the day before the US spring-forward transition.
	now := time.Date(2024, time.March, 9, 8, 0, 0, 0, loc)
	got := calc.Next(Spec{Hour: 7, Minute: 0}, now)

	// The wall-clock slot is preserved even though the day is 23 hours long.
	if got.Hour() != 7 || got.Minute() != 0 {
		t.Fatalf("expected 07:00 wall clock, got %v", got)
	}
	if got.Day() != 10 {
		t.Fatalf("expected March 10, got %v", got)
	}
}

func TestCalculator_NilLocationDefaultsToLocal(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(nil)
	now := time.Date(2024, time.March, 5, 8, 0, 0, 0, time.Local)
	got := calc.Next(Spec{Hour: 9, Minute: 0}, now)
	if !got.After(now) {
		t.Fatalf("expected future instant, got %v", got)
	}
}
