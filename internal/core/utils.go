package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	mdRegex  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	relRegex = regexp.MustCompile(`^([dwmy])-(\d+)$`)
)

// DayKey returns the UTC calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyFmt)
}

// ParseDayKey parses a YYYY-MM-DD day key into midnight UTC.
func ParseDayKey(s string) (time.Time, error) {
	t, err := time.Parse(DayKeyFmt, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key '%s' (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

// Yesterday returns the day key preceding dayKey.
func Yesterday(dayKey string) (string, error) {
	t, err := ParseDayKey(dayKey)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -1).Format(DayKeyFmt), nil
}

// StatsDate converts a day key into the dd-MM-yyyy form used by the statistics backend.
func StatsDate(dayKey string) (string, error) {
	t, err := ParseDayKey(dayKey)
	if err != nil {
		return "", err
	}
	return t.Format(StatsDateFmt), nil
}

// DaysEndingAt returns n consecutive day keys ending at (and including) end,
// oldest first.
func DaysEndingAt(end string, n int) ([]string, error) {
	t, err := ParseDayKey(end)
	if err != nil {
		return nil, err
	}
	days := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		days = append(days, t.AddDate(0, 0, -i).Format(DayKeyFmt))
	}
	return days, nil
}

// DateOnly returns a time.Time with only the date portion (midnight UTC).
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDateSpec returns a concrete UTC day for flexible spec strings, relative to now.
// Supports:
// 1. Exact YYYY-MM-DD
// 2. M/D or MM/DD (most recent past occurrence)
// 3. Relative forms like d-7 (days), w-2 (weeks), m-3 (months), y-1 (years)
func ParseDateSpec(spec string, now time.Time) (time.Time, error) {
	today := DateOnly(now)

	if t, err := time.Parse(DayKeyFmt, spec); err == nil {
		return t, nil
	}

	if matches := mdRegex.FindStringSubmatch(spec); matches != nil {
		month, _ := strconv.Atoi(matches[1])
		day, _ := strconv.Atoi(matches[2])
		target := time.Date(today.Year(), time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if target.After(today) {
			target = time.Date(today.Year()-1, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		}
		return target, nil
	}

	if matches := relRegex.FindStringSubmatch(strings.ToLower(spec)); matches != nil {
		num, _ := strconv.Atoi(matches[2])
		switch matches[1] {
		case "d":
			return today.AddDate(0, 0, -num), nil
		case "w":
			return today.AddDate(0, 0, -num*7), nil
		case "m":
			return today.AddDate(0, -num, 0), nil
		case "y":
			return today.AddDate(-num, 0, 0), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date specification: '%s'", spec)
}
