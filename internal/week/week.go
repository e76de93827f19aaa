// Package week holds the calendar arithmetic shared by the auction and
// streak engines, so every caller agrees on week and day boundaries.
package week

import "time"

// Start returns UTC midnight of the first day of the week containing date.
// weekStartsOn follows time.Weekday numbering (0 = Sunday).
func Start(date time.Time, weekStartsOn int) time.Time {
	d := Truncate(date)
	offset := (int(d.Weekday()) - weekStartsOn + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// Truncate drops the time-of-day portion, keeping the calendar date at UTC
// midnight.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LocalDate formats the instant into the given IANA timezone and truncates
// to that zone's calendar day, returned as UTC midnight. Streak day
// boundaries are always compared through this function; doing the
// arithmetic in UTC would shift "midnight" by hours for non-UTC families.
func LocalDate(t time.Time, tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}

// Days enumerates the seven dates of the week beginning at weekStart.
func Days(weekStart time.Time) []time.Time {
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = weekStart.AddDate(0, 0, i)
	}
	return days
}
