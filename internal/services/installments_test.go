package services

import (
	"errors"
	"testing"

	"budgetbook/internal/core"
)

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		n     int
		want  []int64
	}{
		{"hundred over three", 10000, 3, []int64{3334, 3333, 3333}},
		{"even split", 9000, 3, []int64{3000, 3000, 3000}},
		{"single", 1234, 1, []int64{1234}},
		{"remainder two", 1001, 3, []int64{334, 334, 333}},
		{"fewer cents than parts", 2, 4, []int64{1, 1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitAmount(core.Money{Cents: tt.cents}, tt.n)
			if err != nil {
				t.Fatalf("SplitAmount: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d parts, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Cents != tt.want[i] {
					t.Errorf("part %d = %d, want %d", i, got[i].Cents, tt.want[i])
				}
			}
		})
	}
}

func TestSplitAmountSumsExactly(t *testing.T) {
	for _, cents := range []int64{1, 99, 100, 10000, 12345, 999999} {
		for n := 1; n <= 48; n++ {
			parts, err := SplitAmount(core.Money{Cents: cents}, n)
			if err != nil {
				t.Fatalf("SplitAmount(%d, %d): %v", cents, n, err)
			}
			var sum int64
			for _, p := range parts {
				sum += p.Cents
			}
			if sum != cents {
				t.Errorf("SplitAmount(%d, %d) sums to %d", cents, n, sum)
			}
		}
	}
}

func TestSplitAmountRejectsBadInput(t *testing.T) {
	if _, err := SplitAmount(core.Money{Cents: 100}, 0); !errors.Is(err, core.ErrInvalidInstallments) {
		t.Errorf("n=0: got %v", err)
	}
	if _, err := SplitAmount(core.Money{Cents: 0}, 2); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero amount: got %v", err)
	}
}

func TestGenerateInstallmentsIndices(t *testing.T) {
	for n := 1; n <= 24; n++ {
		e := core.Expense{ID: 7, Amount: core.Money{Cents: 10000}, InstallmentCount: n, PurchaseDate: core.NewDate(2024, 1, 31)}
		insts, err := GenerateInstallments(e, MonthlySchedule)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(insts) != n {
			t.Fatalf("n=%d: got %d installments", n, len(insts))
		}
		seen := make(map[int]bool)
		for _, in := range insts {
			if in.Number < 1 || in.Number > n || seen[in.Number] {
				t.Fatalf("n=%d: bad or duplicate index %d", n, in.Number)
			}
			seen[in.Number] = true
			if in.ExpenseID != 7 {
				t.Errorf("installment %d has expense id %d", in.Number, in.ExpenseID)
			}
		}
	}
}

func TestGenerateInstallmentsUsesSchedule(t *testing.T) {
	fixed := func(_ core.Date, count int) ([]core.Date, error) {
		out := make([]core.Date, count)
		for i := range out {
			out[i] = core.NewDate(2030, 1, i+1)
		}
		return out, nil
	}
	e := core.Expense{Amount: core.Money{Cents: 300}, InstallmentCount: 3, PurchaseDate: core.NewDate(2024, 1, 1)}
	insts, err := GenerateInstallments(e, fixed)
	if err != nil {
		t.Fatalf("GenerateInstallments: %v", err)
	}
	for i, in := range insts {
		if want := core.NewDate(2030, 1, i+1); !in.DueDate.Equal(want.Time) {
			t.Errorf("installment %d due %s, want %s", in.Number, in.DueDate, want)
		}
	}

	short := func(core.Date, int) ([]core.Date, error) { return nil, nil }
	if _, err := GenerateInstallments(e, short); err == nil {
		t.Error("expected error when schedule returns too few dates")
	}
}

func TestMonthlySchedule(t *testing.T) {
	dates, _ := MonthlySchedule(core.NewDate(2024, 1, 31), 3)
	want := []string{"2024-02-29", "2024-03-31", "2024-04-30"}
	for i, d := range dates {
		if d.String() != want[i] {
			t.Errorf("date %d = %s, want %s", i, d, want[i])
		}
	}
}

func TestRRuleSchedule(t *testing.T) {
	s, err := RRuleSchedule("RRULE:FREQ=MONTHLY;BYMONTHDAY=10")
	if err != nil {
		t.Fatalf("RRuleSchedule: %v", err)
	}
	dates, err := s(core.NewDate(2024, 6, 5), 3)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	want := []string{"2024-06-10", "2024-07-10", "2024-08-10"}
	for i, d := range dates {
		if d.String() != want[i] {
			t.Errorf("date %d = %s, want %s", i, d, want[i])
		}
	}

	// The purchase date itself is never a due date.
	dates, _ = s(core.NewDate(2024, 6, 10), 1)
	if dates[0].String() != "2024-07-10" {
		t.Errorf("first due date = %s, want 2024-07-10", dates[0])
	}

	limited, _ := RRuleSchedule("FREQ=MONTHLY;COUNT=2")
	if _, err := limited(core.NewDate(2024, 1, 1), 3); !errors.Is(err, ErrScheduleExhausted) {
		t.Errorf("got %v, want ErrScheduleExhausted", err)
	}

	if _, err := RRuleSchedule("not a rule"); err == nil {
		t.Error("expected parse error")
	}
}

func TestGetSchedule(t *testing.T) {
	if _, err := GetSchedule(""); err != nil {
		t.Errorf("default schedule: %v", err)
	}
	if _, err := GetSchedule("Monthly"); err != nil {
		t.Errorf("monthly: %v", err)
	}
	if _, err := GetSchedule("FREQ=WEEKLY"); err != nil {
		t.Errorf("rrule: %v", err)
	}
	if _, err := GetSchedule("fortnightly"); err == nil {
		t.Error("expected error for unknown schedule")
	}

	RegisterSchedule("same-day", func(p core.Date, n int) ([]core.Date, error) {
		out := make([]core.Date, n)
		for i := range out {
			out[i] = p
		}
		return out, nil
	})
	s, err := GetSchedule("same-day")
	if err != nil {
		t.Fatalf("registered schedule: %v", err)
	}
	dates, _ := s(core.NewDate(2024, 1, 1), 2)
	if len(dates) != 2 || dates[1].String() != "2024-01-01" {
		t.Errorf("unexpected dates %v", dates)
	}
}

func TestDueDate(t *testing.T) {
	purchase := core.NewDate(2024, 6, 5)
	if got := DueDate(purchase, core.CutoffConfig{}); !got.IsZero() {
		t.Errorf("no cutoff: got %s, want unset", got)
	}
	cfg := core.CutoffConfig{ID: 1, CutoffDate: core.NewDate(2024, 6, 10)}
	if got := DueDate(purchase, cfg); got.String() != "2024-06-10" {
		t.Errorf("got %s, want 2024-06-10", got)
	}
	// The cutoff date is copied even when it precedes the purchase.
	if got := DueDate(core.NewDate(2024, 7, 1), cfg); got.String() != "2024-06-10" {
		t.Errorf("got %s, want 2024-06-10", got)
	}
}
