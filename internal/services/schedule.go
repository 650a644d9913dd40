// Package services provides business logic and orchestration services.
//
// This file implements the strategies that assign due dates to the installments of
// a multi-installment expense. The default strategy is monthly; any RFC 5545
// recurrence rule can be used instead.
package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"budgetbook/internal/core"

	"github.com/teambition/rrule-go"
)

// Schedule returns the due dates of count installments for an expense purchased on
// purchase. The i-th date belongs to installment i+1.
type Schedule func(purchase core.Date, count int) ([]core.Date, error)

// ErrScheduleExhausted is returned when a recurrence rule yields fewer dates than
// installments.
var ErrScheduleExhausted = errors.New("schedule ended before the last installment")

// MonthlySchedule puts installment i exactly i months after the purchase, with the
// day clamped to the end of shorter months.
func MonthlySchedule(purchase core.Date, count int) ([]core.Date, error) {
	out := make([]core.Date, count)
	for i := range out {
		out[i] = purchase.AddMonths(i + 1)
	}
	return out, nil
}

// RRuleSchedule builds a Schedule from an RRULE string such as
// "FREQ=MONTHLY;BYMONTHDAY=10". Occurrences are anchored at the purchase date and
// only those strictly after it are used.
func RRuleSchedule(rule string) (Schedule, error) {
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RRULE: %w", err)
	}

	return func(purchase core.Date, count int) ([]core.Date, error) {
		o := *opt
		o.Dtstart = purchase.Time
		r, err := rrule.NewRRule(o)
		if err != nil {
			return nil, fmt.Errorf("build RRULE: %w", err)
		}

		out := make([]core.Date, 0, count)
		next := r.Iterator()
		for len(out) < count {
			t, ok := next()
			if !ok {
				return nil, ErrScheduleExhausted
			}
			if !t.After(purchase.Time) {
				continue
			}
			out = append(out, core.DateOf(t))
		}
		return out, nil
	}, nil
}

var (
	schedulesMu sync.RWMutex
	// schedules maps configuration names to installment schedules.
	schedules = map[string]Schedule{
		"monthly": MonthlySchedule,
	}
)

// GetSchedule resolves a configured schedule. Registered names are looked up first;
// anything else is parsed as an RRULE.
func GetSchedule(name string) (Schedule, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "monthly"
	}
	schedulesMu.RLock()
	s, ok := schedules[key]
	schedulesMu.RUnlock()
	if ok {
		return s, nil
	}
	s, err := RRuleSchedule(name)
	if err != nil {
		return nil, fmt.Errorf("unknown installment schedule %q: %w", name, err)
	}
	return s, nil
}

// RegisterSchedule adds or replaces a named schedule.
func RegisterSchedule(name string, s Schedule) {
	schedulesMu.Lock()
	defer schedulesMu.Unlock()
	schedules[strings.ToLower(name)] = s
}
