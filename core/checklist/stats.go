package checklist

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const DefaultStatsLookbackDays = 30

// CalculateProgress returns completed/total as a percentage rounded half up, 0 when total is 0.
func CalculateProgress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}

// StatsCalculator rolls completions up into compliance percentages.
type StatsCalculator struct {
	repo         Repository
	cal          Calendar
	lookbackDays int
}

func NewStatsCalculator(repo Repository, cal Calendar, lookbackDays int) *StatsCalculator {
	if lookbackDays <= 0 {
		lookbackDays = DefaultStatsLookbackDays
	}
	return &StatsCalculator{repo: repo, cal: cal, lookbackDays: lookbackDays}
}

// Stats computes the compliance of employeeID on day, over the week and month to date,
// and the on-time rate over the lookback window ending on day.
func (s *StatsCalculator) Stats(ctx context.Context, employeeID string, day time.Time) (ComplianceStats, error) {
	day = s.cal.DayStart(day)
	weekStart, monthStart := s.cal.WeekStart(day), s.cal.MonthStart(day)
	lookbackStart := day.AddDate(0, 0, -(s.lookbackDays - 1))

	from := weekStart
	for _, t := range []time.Time{monthStart, lookbackStart} {
		if t.Before(from) {
			from = t
		}
	}

	assigned, err := s.repo.ActiveAssignedTasks(ctx, employeeID)
	if err != nil {
		return ComplianceStats{}, errors.Wrap(err, "fetching assigned tasks")
	}
	var completions []TaskCompletion
	if len(assigned) > 0 {
		completions, err = s.repo.QueryCompletions(ctx, CompletionFilter{
			AssignmentIDs: assignmentIDs(assigned),
			From:          from,
			To:            day.AddDate(0, 0, 1),
		})
		if err != nil {
			return ComplianceStats{}, errors.Wrap(err, "fetching completions")
		}
	}
	return computeStats(s.cal, employeeID, day, weekStart, monthStart, lookbackStart, assigned, completions), nil
}

func computeStats(cal Calendar, employeeID string, day, weekStart, monthStart, lookbackStart time.Time,
	assigned []AssignedTask, completions []TaskCompletion) ComplianceStats {
	summary := buildDailyTasks(cal, day, assigned, completions).Summary

	var onTime, inLookback int
	for _, c := range completions {
		d := cal.DayStart(c.ScheduledDate)
		if c.Status != StatusCompleted || d.Before(lookbackStart) || d.After(day) {
			continue
		}
		inLookback++
		if c.CompletedOnTime {
			onTime++
		}
	}

	return ComplianceStats{
		EmployeeID: employeeID,
		Date:       cal.Format(day),
		Daily: DailyStats{
			Total:      summary.Total,
			Completed:  summary.Completed,
			Pending:    summary.Pending,
			Compliance: CalculateProgress(summary.Completed, summary.Total),
		},
		Weekly:     periodStats(cal, weekStart, day, assigned, completions),
		Monthly:    periodStats(cal, monthStart, day, assigned, completions),
		OnTimeRate: CalculateProgress(onTime, inLookback),
	}
}

// periodStats compares completions against the tasks due each day of [from, to].
// Completions made on a day their task was not due do not count.
func periodStats(cal Calendar, from, to time.Time, assigned []AssignedTask, completions []TaskCompletion) PeriodStats {
	var expected int
	for _, day := range cal.Days(from, to) {
		expected += len(dueTasks(cal, assigned, day))
	}

	byID := make(map[string]AssignedTask, len(assigned))
	for _, at := range assigned {
		byID[at.Assignment.ID] = at
	}
	first, last := cal.DayStart(from), cal.DayStart(to)
	counted := make(map[string]bool)
	var completed int
	for _, c := range completions {
		d := cal.DayStart(c.ScheduledDate)
		if c.Status != StatusCompleted || d.Before(first) || d.After(last) {
			continue
		}
		at, ok := byID[c.AssignmentID]
		if !ok || !at.Assignment.IsActive || !at.Template.IsActive || !IsDue(cal, at.Template, d) {
			continue
		}
		key := c.AssignmentID + "|" + cal.Format(d)
		if counted[key] {
			continue
		}
		counted[key] = true
		completed++
	}

	return PeriodStats{
		From:           cal.Format(first),
		To:             cal.Format(last),
		TotalCompleted: completed,
		Expected:       expected,
		Compliance:     CalculateProgress(completed, expected),
	}
}
