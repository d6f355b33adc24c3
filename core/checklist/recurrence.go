package checklist

import "time"

// IsDue reports whether tmpl must be done on date's calendar day.
// A monthly template pinned to a day the month lacks (e.g. 31 in April) does not fire that month.
// Unknown frequencies are never due.
func IsDue(cal Calendar, tmpl TaskTemplate, date time.Time) bool {
	switch tmpl.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekly:
		return tmpl.ScheduledDay == nil || *tmpl.ScheduledDay == int(cal.Weekday(date))
	case FrequencyMonthly:
		return tmpl.ScheduledDay == nil || *tmpl.ScheduledDay == cal.DayOfMonth(date)
	default:
		return false
	}
}

// dueTasks keeps the active tasks of assigned that are due on day.
func dueTasks(cal Calendar, assigned []AssignedTask, day time.Time) []AssignedTask {
	due := make([]AssignedTask, 0, len(assigned))
	for _, at := range assigned {
		if !at.Assignment.IsActive || !at.Template.IsActive {
			continue
		}
		if IsDue(cal, at.Template, day) {
			due = append(due, at)
		}
	}
	return due
}
