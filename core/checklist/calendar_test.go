package checklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youknow/checklist/core"
)

func TestCalendar_DayRange(t *testing.T) {
	kinshasa := time.FixedZone("WAT", 1*60*60)

	tests := []struct {
		name      string
		cal       Calendar
		t         time.Time
		wantStart time.Time
	}{
		{
			name:      "utc",
			cal:       NewCalendar(nil),
			t:         time.Date(2024, 3, 4, 23, 59, 59, 0, time.UTC),
			wantStart: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "utc midnight belongs to the new day",
			cal:       NewCalendar(time.UTC),
			t:         time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			wantStart: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "instant converted to the calendar location",
			cal:       NewCalendar(kinshasa),
			t:         time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC),
			wantStart: time.Date(2024, 3, 5, 0, 0, 0, 0, kinshasa),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.cal.DayRange(tt.t)
			assert.True(t, start.Equal(tt.wantStart), "start = %v; want %v", start, tt.wantStart)
			assert.True(t, end.Equal(tt.wantStart.AddDate(0, 0, 1)), "end = %v", end)
			assert.False(t, tt.t.Before(start))
			assert.True(t, tt.t.Before(end))
		})
	}
}

func TestCalendar_ParseDate(t *testing.T) {
	cal := NewCalendar(nil)

	day, err := cal.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), day)

	for _, bad := range []string{"", "2024-2-29", "29/02/2024", "2023-02-29", "2024-02-29T10:00:00Z", "today"} {
		_, err = cal.ParseDate(bad)
		assert.Error(t, err, bad)
		assert.True(t, core.IsValidation(err), bad)
	}
}

func TestCalendar_ParseDay(t *testing.T) {
	cal := NewCalendar(nil)

	day, err := cal.ParseDay("2024-03-04T17:45:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), day)

	day, err = cal.ParseDay(" 2024-03-04 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), day)

	_, err = cal.ParseDay("04-03-2024")
	assert.True(t, core.IsValidation(err))
}

func TestCalendar_Windows(t *testing.T) {
	cal := NewCalendar(nil)
	wed := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC) // Wednesday

	assert.Equal(t, time.Date(2024, 4, 28, 0, 0, 0, 0, time.UTC), cal.WeekStart(wed))
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), cal.MonthStart(wed))
	assert.Equal(t, time.Wednesday, cal.Weekday(wed))
	assert.Equal(t, 1, cal.DayOfMonth(wed))

	sunday := time.Date(2024, 4, 28, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 4, 28, 0, 0, 0, 0, time.UTC), cal.WeekStart(sunday))

	days := cal.Days(cal.WeekStart(wed), wed)
	require.Len(t, days, 4)
	assert.Equal(t, "2024-04-28", cal.Format(days[0]))
	assert.Equal(t, "2024-05-01", cal.Format(days[3]))

	assert.Empty(t, cal.Days(wed, wed.AddDate(0, 0, -1)))
}

func TestCalendar_At(t *testing.T) {
	cal := NewCalendar(nil)
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	at, err := cal.At(day, "09:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 5, 0, 0, time.UTC), at)

	for _, bad := range []string{"9:05", "24:00", "09:60", "0905", "ab:cd"} {
		_, err = cal.At(day, bad)
		assert.Error(t, err, bad)
	}
}
