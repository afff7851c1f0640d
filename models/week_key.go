// models/week_key.go
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidWeekKey is returned for keys not shaped like 2024-W07.
var ErrInvalidWeekKey = errors.New("invalid ISO week key")

var weekKeyPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// WeekKeyFor returns the ISO week key (YYYY-Www) of t in loc.
func WeekKeyFor(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	year, week := t.In(loc).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ParseWeekKey splits a week key into ISO year and week number.
func ParseWeekKey(key string) (year, week int, err error) {
	m := weekKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidWeekKey, key)
	}
	year, _ = strconv.Atoi(m[1])
	week, _ = strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidWeekKey, key)
	}
	// week 53 only exists in long ISO years
	if _, w := weekMonday(year, week).AddDate(0, 0, 3).ISOWeek(); w != week {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidWeekKey, key)
	}
	return year, week, nil
}

// WeekStart returns Monday 00:00 of the ISO week in loc.
func WeekStart(key string, loc *time.Location) (time.Time, error) {
	year, week, err := ParseWeekKey(key)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	m := weekMonday(year, week)
	return time.Date(m.Year(), m.Month(), m.Day(), 0, 0, 0, 0, loc), nil
}

// WeekBounds returns the half-open instant range [start, end) of the week.
func WeekBounds(key string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := WeekStart(key, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 0, 7), nil
}

// WeekDates returns the inclusive Monday and Sunday dates of the week as
// YYYY-MM-DD.
func WeekDates(key string) (string, string, error) {
	start, err := WeekStart(key, time.UTC)
	if err != nil {
		return "", "", err
	}
	return start.Format(DATE_LAYOUT), start.AddDate(0, 0, 6).Format(DATE_LAYOUT), nil
}

// WeekKeysBetween lists every week key touching [from, to], in order.
func WeekKeysBetween(from, to time.Time, loc *time.Location) []string {
	if to.Before(from) {
		return nil
	}
	first := WeekKeyFor(from, loc)
	last := WeekKeyFor(to, loc)
	start, _ := WeekStart(first, loc)
	var keys []string
	for {
		key := WeekKeyFor(start, loc)
		keys = append(keys, key)
		if key == last {
			return keys
		}
		start = start.AddDate(0, 0, 7)
	}
}

// ShiftWeekKey moves a week key by n weeks (negative moves back).
func ShiftWeekKey(key string, n int) (string, error) {
	start, err := WeekStart(key, time.UTC)
	if err != nil {
		return "", err
	}
	return WeekKeyFor(start.AddDate(0, 0, 7*n), time.UTC), nil
}

func weekMonday(year, week int) time.Time {
	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(week-1)*7)
}
