package domain

import (
	"fmt"
	"strings"
	"time"
)

// Period is the cadence at which a vault rolls rounds.
type Period uint8

const (
	PeriodDaily Period = iota
	PeriodWeekly
	PeriodMonthly
	PeriodHourly
	PeriodTenMinute
)

func (p Period) String() string {
	switch p {
	case PeriodDaily:
		return "daily"
	case PeriodWeekly:
		return "weekly"
	case PeriodMonthly:
		return "monthly"
	case PeriodHourly:
		return "hourly"
	case PeriodTenMinute:
		return "10min"
	}
	return "unknown"
}

// ParsePeriod accepts the names produced by String.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return PeriodDaily, nil
	case "weekly":
		return PeriodWeekly, nil
	case "monthly":
		return PeriodMonthly, nil
	case "hourly":
		return PeriodHourly, nil
	case "10min", "ten_minute", "10m":
		return PeriodTenMinute, nil
	}
	return 0, fmt.Errorf("%w: unknown period %q", ErrInvalidConfig, s)
}

// Next returns the expiration one period after t. Monthly periods follow the
// calendar in UTC.
func (p Period) Next(t time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return t.Add(24 * time.Hour)
	case PeriodWeekly:
		return t.Add(7 * 24 * time.Hour)
	case PeriodMonthly:
		return t.UTC().AddDate(0, 1, 0)
	case PeriodHourly:
		return t.Add(time.Hour)
	case PeriodTenMinute:
		return t.Add(10 * time.Minute)
	}
	return t
}

// PeriodsPerYear is the incentive divisor: deposit incentive bp are annual.
func (p Period) PeriodsPerYear() uint64 {
	switch p {
	case PeriodDaily:
		return 365
	case PeriodWeekly:
		return 52
	case PeriodMonthly:
		return 12
	case PeriodHourly:
		return 365 * 24
	case PeriodTenMinute:
		return 365 * 24 * 6
	}
	return 1
}
