package week

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStartMondayWeeks(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{date(2026, time.March, 2), date(2026, time.March, 2)}, // Monday maps to itself
		{date(2026, time.March, 4), date(2026, time.March, 2)}, // Wednesday
		{date(2026, time.March, 8), date(2026, time.March, 2)}, // Sunday belongs to the prior Monday
		{date(2026, time.March, 9), date(2026, time.March, 9)}, // next Monday
		{time.Date(2026, time.March, 4, 23, 59, 0, 0, time.UTC), date(2026, time.March, 2)},
	}
	for _, tt := range tests {
		got := Start(tt.in, 1)
		if !got.Equal(tt.want) {
			t.Errorf("Start(%v, 1) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStartSundayWeeks(t *testing.T) {
	// 2026-03-01 is a Sunday
	got := Start(date(2026, time.March, 4), 0)
	if !got.Equal(date(2026, time.March, 1)) {
		t.Errorf("Start = %v, want 2026-03-01", got)
	}
	got = Start(date(2026, time.March, 1), 0)
	if !got.Equal(date(2026, time.March, 1)) {
		t.Errorf("Start on a Sunday = %v, want itself", got)
	}
}

func TestLocalDateShiftsAcrossZones(t *testing.T) {
	// 2026-03-05 03:00 UTC is still 2026-03-04 in Los Angeles
	instant := time.Date(2026, time.March, 5, 3, 0, 0, 0, time.UTC)

	if got := LocalDate(instant, "UTC"); !got.Equal(date(2026, time.March, 5)) {
		t.Errorf("LocalDate UTC = %v, want 2026-03-05", got)
	}
	if got := LocalDate(instant, "America/Los_Angeles"); !got.Equal(date(2026, time.March, 4)) {
		t.Errorf("LocalDate LA = %v, want 2026-03-04", got)
	}
	// Tokyo is already on the next day at 16:00 UTC
	evening := time.Date(2026, time.March, 5, 16, 0, 0, 0, time.UTC)
	if got := LocalDate(evening, "Asia/Tokyo"); !got.Equal(date(2026, time.March, 6)) {
		t.Errorf("LocalDate Tokyo = %v, want 2026-03-06", got)
	}
}

func TestLocalDateBadZoneFallsBackToUTC(t *testing.T) {
	instant := time.Date(2026, time.March, 5, 3, 0, 0, 0, time.UTC)
	if got := LocalDate(instant, "Not/AZone"); !got.Equal(date(2026, time.March, 5)) {
		t.Errorf("LocalDate bad zone = %v, want UTC date", got)
	}
}

func TestDays(t *testing.T) {
	days := Days(date(2026, time.March, 2))
	if len(days) != 7 {
		t.Fatalf("len = %d, want 7", len(days))
	}
	if !days[0].Equal(date(2026, time.March, 2)) {
		t.Errorf("days[0] = %v", days[0])
	}
	if !days[6].Equal(date(2026, time.March, 8)) {
		t.Errorf("days[6] = %v", days[6])
	}
}
