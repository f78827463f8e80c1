package calendar

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/fincast/fincast/internal/domain"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-15")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d != date(2024, time.January, 15) {
		t.Errorf("ParseDate = %v, want 2024-01-15", d)
	}

	for _, bad := range []string{"", "not-a-date", "2024-13-01", "15/01/2024"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ParseDate(%q) error = %v, want ErrInvalidDate", bad, err)
		}
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	in := time.Date(2024, time.March, 15, 23, 45, 12, 999, loc)
	got := StartOfDay(in)

	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("StartOfDay = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("StartOfDay changed location to %v", got.Location())
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.January, 31},
		{2024, time.February, 29}, // leap year
		{2023, time.February, 28},
		{2100, time.February, 28}, // century non-leap
		{2000, time.February, 29}, // 400-year leap
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tt := range tests {
		if got := DaysInMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysInMonth(%d, %v) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestAdjustForWeekends(t *testing.T) {
	saturday := date(2024, time.June, 15)
	sunday := date(2024, time.June, 16)
	friday := date(2024, time.June, 14)
	monday := date(2024, time.June, 17)

	tests := []struct {
		name          string
		in            civil.Date
		payOnWeekends bool
		want          civil.Date
	}{
		{"saturday shifts to friday", saturday, false, friday},
		{"sunday shifts to friday", sunday, false, friday},
		{"weekday unchanged", monday, false, monday},
		{"saturday kept when paying on weekends", saturday, true, saturday},
		{"sunday kept when paying on weekends", sunday, true, sunday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdjustForWeekends(tt.in, tt.payOnWeekends); got != tt.want {
				t.Errorf("AdjustForWeekends(%v, %v) = %v, want %v", tt.in, tt.payOnWeekends, got, tt.want)
			}
		})
	}
}

func TestAddFrequency_FixedIntervals(t *testing.T) {
	base := date(2024, time.January, 15)

	tests := []struct {
		freq domain.Frequency
		want civil.Date
	}{
		{domain.FrequencyDaily, date(2024, time.January, 16)},
		{domain.FrequencyWeekly, date(2024, time.January, 22)},
		{domain.FrequencyBiweekly, date(2024, time.January, 29)},
	}
	for _, tt := range tests {
		if got := AddFrequency(base, tt.freq, base.Day); got != tt.want {
			t.Errorf("AddFrequency(%v, %s) = %v, want %v", base, tt.freq, got, tt.want)
		}
	}
}

// The anchor day is re-applied at every monthly step: a rule started on
// Jan 31 clamps to Feb 29 but springs back to Mar 31 rather than drifting
// from the clamped value.
func TestAddFrequency_MonthlyAnchorDay(t *testing.T) {
	cur := date(2024, time.January, 31)
	anchor := cur.Day

	want := []civil.Date{
		date(2024, time.February, 29), // leap year
		date(2024, time.March, 31),
		date(2024, time.April, 30),
		date(2024, time.May, 31),
		date(2024, time.June, 30),
	}
	for i, w := range want {
		cur = AddFrequency(cur, domain.FrequencyMonthly, anchor)
		if cur != w {
			t.Fatalf("step %d = %v, want %v", i+1, cur, w)
		}
	}
}

func TestAddFrequency_MonthlyAnchorDayNonLeap(t *testing.T) {
	cur := date(2023, time.January, 31)
	cur = AddFrequency(cur, domain.FrequencyMonthly, 31)
	if want := date(2023, time.February, 28); cur != want {
		t.Fatalf("Feb step = %v, want %v", cur, want)
	}
	cur = AddFrequency(cur, domain.FrequencyMonthly, 31)
	if want := date(2023, time.March, 31); cur != want {
		t.Fatalf("Mar step = %v, want %v", cur, want)
	}
}

func TestAddFrequency_Quarterly(t *testing.T) {
	cur := date(2024, time.November, 30)
	// Nov 30 -> Feb: anchor 30 clamps to Feb 29 (2025 is not leap: 28).
	got := AddFrequency(cur, domain.FrequencyQuarterly, 30)
	if want := date(2025, time.February, 28); got != want {
		t.Errorf("quarterly step = %v, want %v", got, want)
	}
	got = AddFrequency(got, domain.FrequencyQuarterly, 30)
	if want := date(2025, time.May, 30); got != want {
		t.Errorf("quarterly spring-back = %v, want %v", got, want)
	}
}

func TestAddFrequency_YearlyLeapAnchor(t *testing.T) {
	cur := date(2024, time.February, 29)
	got := AddFrequency(cur, domain.FrequencyYearly, 29)
	if want := date(2025, time.February, 28); got != want {
		t.Errorf("yearly step = %v, want %v", got, want)
	}
	for i := 0; i < 3; i++ {
		got = AddFrequency(got, domain.FrequencyYearly, 29)
	}
	if want := date(2028, time.February, 29); got != want {
		t.Errorf("yearly anchor not restored on leap year: got %v, want %v", got, want)
	}
}

func TestAddFrequency_DecemberRollover(t *testing.T) {
	got := AddFrequency(date(2024, time.December, 15), domain.FrequencyMonthly, 15)
	if want := date(2025, time.January, 15); got != want {
		t.Errorf("December rollover = %v, want %v", got, want)
	}
}
