package checklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateProgress(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{0, 5, 0},
		{5, 5, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13}, // 12.5 rounds half up
		{1, 200, 1},
		{1, 201, 0},
		{199, 200, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateProgress(tt.completed, tt.total), "CalculateProgress(%d, %d)", tt.completed, tt.total)
	}
}

func Test_computeStats(t *testing.T) {
	cal := NewCalendar(nil)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) // Wednesday, first of the month
	weekStart, monthStart := cal.WeekStart(day), cal.MonthStart(day)
	lookbackStart := day.AddDate(0, 0, -29)

	tasks := []AssignedTask{
		assigned("daily", TaskTemplate{Title: "daily", Frequency: FrequencyDaily}),
		assigned("monday", TaskTemplate{Title: "monday", Frequency: FrequencyWeekly, ScheduledDay: intPtr(1)}),
	}
	completion := func(id string, d time.Time, onTime bool) TaskCompletion {
		return TaskCompletion{AssignmentID: id, ScheduledDate: d, Status: StatusCompleted, CompletedAt: d.Add(time.Hour), CompletedOnTime: onTime}
	}
	sunday, monday, tuesday := weekStart, weekStart.AddDate(0, 0, 1), weekStart.AddDate(0, 0, 2)
	completions := []TaskCompletion{
		completion("daily", sunday, true),
		completion("daily", monday, true),
		completion("monday", monday, false),
		completion("monday", tuesday, true), // not due on tuesday
		completion("daily", day, true),
		completion("daily", day.AddDate(0, 0, -40), true), // outside every window
	}

	got := computeStats(cal, "emp", day, weekStart, monthStart, lookbackStart, tasks, completions)

	assert.Equal(t, "emp", got.EmployeeID)
	assert.Equal(t, "2024-05-01", got.Date)
	assert.Equal(t, DailyStats{Total: 1, Completed: 1, Pending: 0, Compliance: 100}, got.Daily)

	// sun..wed: 4 daily + 1 monday expected; 3 daily + 1 monday completed on due days
	assert.Equal(t, PeriodStats{From: "2024-04-28", To: "2024-05-01", TotalCompleted: 4, Expected: 5, Compliance: 80}, got.Weekly)
	assert.Equal(t, PeriodStats{From: "2024-05-01", To: "2024-05-01", TotalCompleted: 1, Expected: 1, Compliance: 100}, got.Monthly)

	// 5 completions in the lookback window, 4 on time
	assert.Equal(t, 80, got.OnTimeRate)
}

func Test_computeStats_noTasks(t *testing.T) {
	cal := NewCalendar(nil)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	got := computeStats(cal, "emp", day, cal.WeekStart(day), cal.MonthStart(day), day.AddDate(0, 0, -29), nil, nil)
	assert.Equal(t, DailyStats{}, got.Daily)
	assert.Equal(t, 0, got.Weekly.Compliance)
	assert.Equal(t, 0, got.Weekly.Expected)
	assert.Equal(t, 0, got.Monthly.Compliance)
	assert.Equal(t, 0, got.OnTimeRate)
}

func Test_CompletedOnTime(t *testing.T) {
	cal := NewCalendar(nil)
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	timed := TaskTemplate{ScheduledTime: "09:00"}

	tests := []struct {
		name string
		tmpl TaskTemplate
		at   time.Time
		want bool
	}{
		{"untimed is always on time", TaskTemplate{}, day.Add(23 * time.Hour), true},
		{"before schedule", timed, day.Add(8 * time.Hour), true},
		{"within grace", timed, day.Add(9*time.Hour + 20*time.Minute), true},
		{"grace boundary", timed, day.Add(9*time.Hour + 30*time.Minute), true},
		{"after grace", timed, day.Add(9*time.Hour + 35*time.Minute), false},
		{"next day", timed, day.AddDate(0, 0, 1).Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompletedOnTime(cal, tt.tmpl, day, tt.at))
		})
	}
}
