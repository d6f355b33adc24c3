package checklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assigned(id string, tmpl TaskTemplate) AssignedTask {
	tmpl.IsActive = true
	if tmpl.ID == "" {
		tmpl.ID = "tmpl-" + id
	}
	return AssignedTask{
		Assignment: TaskAssignment{ID: id, TaskTemplateID: tmpl.ID, EmployeeID: "emp", IsActive: true},
		Template:   tmpl,
	}
}

func titles(tasks []DailyTask) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Title
	}
	return out
}

func Test_buildDailyTasks_scheduledFirst(t *testing.T) {
	cal := NewCalendar(nil)
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	tasks := []AssignedTask{
		assigned("a1", TaskTemplate{Title: "Sweep floor", Frequency: FrequencyDaily, Priority: PriorityMedium}),
		assigned("a2", TaskTemplate{Title: "Open register", Frequency: FrequencyWeekly, ScheduledDay: intPtr(1), ScheduledTime: "08:00", Priority: PriorityHigh}),
	}

	got := buildDailyTasks(cal, monday, tasks, nil)
	assert.Equal(t, "2024-03-04", got.Date)
	assert.Equal(t, []string{"Open register", "Sweep floor"}, titles(got.Tasks))
	assert.Equal(t, Summary{Total: 2, Completed: 0, Pending: 2}, got.Summary)
}

func Test_buildDailyTasks_ordering(t *testing.T) {
	cal := NewCalendar(nil)
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	tasks := []AssignedTask{
		assigned("a1", TaskTemplate{Title: "untimed low", Frequency: FrequencyDaily, Priority: PriorityLow}),
		assigned("a2", TaskTemplate{Title: "untimed high", Frequency: FrequencyDaily, Priority: PriorityHigh}),
		assigned("a3", TaskTemplate{Title: "10:00 medium", Frequency: FrequencyDaily, ScheduledTime: "10:00", Priority: PriorityMedium}),
		assigned("a4", TaskTemplate{Title: "09:00 low", Frequency: FrequencyDaily, ScheduledTime: "09:00", Priority: PriorityLow}),
		assigned("a5", TaskTemplate{Title: "10:00 high", Frequency: FrequencyDaily, ScheduledTime: "10:00", Priority: PriorityHigh}),
		assigned("a6", TaskTemplate{Title: "untimed medium", Frequency: FrequencyDaily, Priority: PriorityMedium}),
		assigned("a7", TaskTemplate{Title: "not due", Frequency: FrequencyWeekly, ScheduledDay: intPtr(2)}),
	}

	want := []string{"09:00 low", "10:00 high", "10:00 medium", "untimed high", "untimed medium", "untimed low"}
	assert.Equal(t, want, titles(buildDailyTasks(cal, day, tasks, nil).Tasks))

	// input order does not matter
	reversed := make([]AssignedTask, len(tasks))
	for i, at := range tasks {
		reversed[len(tasks)-1-i] = at
	}
	assert.Equal(t, want, titles(buildDailyTasks(cal, day, reversed, nil).Tasks))
}

func Test_buildDailyTasks_completions(t *testing.T) {
	cal := NewCalendar(nil)
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	doneAt := day.Add(9 * time.Hour)

	tasks := []AssignedTask{
		assigned("a1", TaskTemplate{Title: "done", Frequency: FrequencyDaily}),
		assigned("a2", TaskTemplate{Title: "done yesterday", Frequency: FrequencyDaily}),
		assigned("a3", TaskTemplate{Title: "inactive", Frequency: FrequencyDaily}),
	}
	tasks[2].Assignment.IsActive = false

	completions := []TaskCompletion{
		{ID: "c1", AssignmentID: "a1", ScheduledDate: day, Status: StatusCompleted, CompletedAt: doneAt, CompletedOnTime: true, PhotoURL: "https://img/1.jpg", Notes: "ok"},
		{ID: "c2", AssignmentID: "a2", ScheduledDate: day.AddDate(0, 0, -1), Status: StatusCompleted, CompletedAt: doneAt},
	}

	got := buildDailyTasks(cal, day, tasks, completions)
	require.Len(t, got.Tasks, 2)
	assert.Equal(t, Summary{Total: 2, Completed: 1, Pending: 1}, got.Summary)

	done := got.Tasks[0]
	assert.Equal(t, "done", done.Title)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, "c1", done.CompletionID)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, doneAt, *done.CompletedAt)
	require.NotNil(t, done.CompletedOnTime)
	assert.True(t, *done.CompletedOnTime)
	assert.Equal(t, "https://img/1.jpg", done.PhotoURL)
	assert.Equal(t, "ok", done.Notes)

	pending := got.Tasks[1]
	assert.Equal(t, StatusPending, pending.Status)
	assert.Empty(t, pending.CompletionID)
	assert.Nil(t, pending.CompletedAt)
}
