package checklist

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Aggregator builds an employee's task list for one day.
type Aggregator struct {
	repo Repository
	cal  Calendar
}

func NewAggregator(repo Repository, cal Calendar) *Aggregator {
	return &Aggregator{repo: repo, cal: cal}
}

// TasksForDate lists the tasks due for employeeID on day's calendar day, with their completion state.
func (a *Aggregator) TasksForDate(ctx context.Context, employeeID string, day time.Time) (DailyTasks, error) {
	day = a.cal.DayStart(day)
	assigned, err := a.repo.ActiveAssignedTasks(ctx, employeeID)
	if err != nil {
		return DailyTasks{}, errors.Wrap(err, "fetching assigned tasks")
	}

	due := dueTasks(a.cal, assigned, day)
	var completions []TaskCompletion
	if len(due) > 0 {
		from, to := a.cal.DayRange(day)
		completions, err = a.repo.QueryCompletions(ctx, CompletionFilter{
			AssignmentIDs: assignmentIDs(due),
			From:          from,
			To:            to,
		})
		if err != nil {
			return DailyTasks{}, errors.Wrap(err, "fetching completions")
		}
	}
	return buildDailyTasks(a.cal, day, due, completions), nil
}

// buildDailyTasks projects the tasks of assigned due on day, joined with the completions of that day.
// completions may span more days than day; the others are ignored.
func buildDailyTasks(cal Calendar, day time.Time, assigned []AssignedTask, completions []TaskCompletion) DailyTasks {
	day = cal.DayStart(day)
	byAssignment := make(map[string]TaskCompletion)
	for _, c := range completions {
		if cal.DayStart(c.ScheduledDate).Equal(day) {
			byAssignment[c.AssignmentID] = c
		}
	}

	due := dueTasks(cal, assigned, day)
	tasks := make([]DailyTask, 0, len(due))
	var summary Summary
	for _, at := range due {
		task := DailyTask{
			AssignmentID:   at.Assignment.ID,
			TaskTemplateID: at.Template.ID,
			Title:          at.Template.Title,
			Description:    at.Template.Description,
			Frequency:      at.Template.Frequency,
			ScheduledDay:   at.Template.ScheduledDay,
			ScheduledTime:  at.Template.ScheduledTime,
			RequiresPhoto:  at.Template.RequiresPhoto,
			Category:       at.Template.Category,
			Priority:       at.Template.Priority,
			Status:         StatusPending,
		}
		if c, ok := byAssignment[at.Assignment.ID]; ok && c.Status == StatusCompleted {
			completedAt, onTime := c.CompletedAt, c.CompletedOnTime
			task.Status = StatusCompleted
			task.CompletionID = c.ID
			task.CompletedAt = &completedAt
			task.CompletedOnTime = &onTime
			task.PhotoURL = c.PhotoURL
			task.Notes = c.Notes
			summary.Completed++
		}
		tasks = append(tasks, task)
	}
	sortDailyTasks(tasks)

	summary.Total = len(tasks)
	summary.Pending = summary.Total - summary.Completed
	return DailyTasks{Date: cal.Format(day), Tasks: tasks, Summary: summary}
}

// sortDailyTasks orders timed tasks first by time, then by priority (high first), title & assignment id.
func sortDailyTasks(tasks []DailyTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ti, tj := tasks[i], tasks[j]
		if (ti.ScheduledTime != "") != (tj.ScheduledTime != "") {
			return ti.ScheduledTime != ""
		}
		if ti.ScheduledTime != tj.ScheduledTime {
			return ti.ScheduledTime < tj.ScheduledTime
		}
		if ri, rj := ti.Priority.rank(), tj.Priority.rank(); ri != rj {
			return ri < rj
		}
		if ti.Title != tj.Title {
			return ti.Title < tj.Title
		}
		return ti.AssignmentID < tj.AssignmentID
	})
}

func assignmentIDs(assigned []AssignedTask) []string {
	ids := make([]string, len(assigned))
	for i, at := range assigned {
		ids[i] = at.Assignment.ID
	}
	return ids
}
