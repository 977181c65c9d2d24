package pipeline

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// schedule is a parsed 5-field cron expression ("minute hour day-of-month
// month day-of-week"). When both day fields are restricted, a day matching
// either one fires.
type schedule struct {
	sched cron.Schedule
}

func parseCron(expr string) (schedule, error) {
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return schedule{}, err
	}
	return schedule{sched: s}, nil
}

// next returns the first minute strictly after t that matches s, in t's
// location.
func (s schedule) next(after time.Time) (time.Time, error) {
	t := s.sched.Next(after)
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("no matching time")
	}
	return t, nil
}

// ValidateCron reports whether expr is a valid 5-field cron expression.
func ValidateCron(expr string) error {
	_, err := parseCron(expr)
	return err
}
