package checklist

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/youknow/checklist/core"
)

// GracePeriod is how late after its scheduled time a task still counts as done on time.
const GracePeriod = 30 * time.Minute

var (
	errTaskInactive  = errors.New("task is not active")
	errPhotoRequired = errors.New("a photo is required to complete this task")
)

// CompletedOnTime judges a completion made at `at` for day against the template schedule.
// Templates without a scheduled time are always on time.
func CompletedOnTime(cal Calendar, tmpl TaskTemplate, day, at time.Time) bool {
	if tmpl.ScheduledTime == "" {
		return true
	}
	scheduled, err := cal.At(day, tmpl.ScheduledTime)
	if err != nil {
		return true
	}
	return !at.After(scheduled.Add(GracePeriod))
}

// Ledger keeps at most one completion per assignment and calendar day.
type Ledger struct {
	repo    Repository
	cal     Calendar
	nowFunc func() time.Time
}

func NewLedger(repo Repository, cal Calendar, nowFunc func() time.Time) *Ledger {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Ledger{repo: repo, cal: cal, nowFunc: nowFunc}
}

// RecordCompletion marks the assignment as completed for req.ScheduledDate (today by default).
// Recording again for the same day merges into the existing completion.
func (l *Ledger) RecordCompletion(ctx context.Context, actor Actor, req CompletionRequest) (TaskCompletion, error) {
	now := l.nowFunc()
	day := l.cal.Today(now)
	if req.ScheduledDate != "" {
		var err error
		if day, err = l.cal.ParseDay(req.ScheduledDate); err != nil {
			return TaskCompletion{}, core.NewValidationError(errInvalidDate,
				core.FieldError{Field: "scheduled_date", Error: errInvalidDate.Error()})
		}
	}

	at, err := l.repo.GetAssignedTask(ctx, req.AssignmentID)
	if err != nil {
		return TaskCompletion{}, err
	}
	if err = Authorize(ActionCompleteTask, Resource{OwnerID: at.Assignment.EmployeeID}, actor); err != nil {
		return TaskCompletion{}, err
	}
	if !at.Assignment.IsActive || !at.Template.IsActive {
		return TaskCompletion{}, core.NewValidationError(errTaskInactive,
			core.FieldError{Field: "assignment_id", Error: errTaskInactive.Error()})
	}

	if at.Template.RequiresPhoto && req.PhotoURL == "" {
		from, to := l.cal.DayRange(day)
		existing, err := l.repo.FindCompletion(ctx, at.Assignment.ID, from, to)
		switch {
		case err == nil && existing.PhotoURL != "":
			// the photo sent earlier that day still stands
		case err == nil || core.IsNotFound(err):
			return TaskCompletion{}, core.NewValidationError(errPhotoRequired,
				core.FieldError{Field: "photo_url", Error: errPhotoRequired.Error()})
		default:
			return TaskCompletion{}, errors.Wrap(err, "looking up completion")
		}
	}

	c := TaskCompletion{
		AssignmentID:    at.Assignment.ID,
		ScheduledDate:   day,
		Status:          StatusCompleted,
		PhotoURL:        req.PhotoURL,
		PhotoPublicID:   req.PhotoPublicID,
		Notes:           req.Notes,
		CompletedAt:     now.UTC(),
		CompletedOnTime: CompletedOnTime(l.cal, at.Template, day, now),
	}
	c, err = l.repo.UpsertCompletion(ctx, c)
	if err != nil {
		return TaskCompletion{}, errors.Wrap(err, "saving completion")
	}
	return c, nil
}

// PatchCompletion updates the photo and notes of a completion.
// It returns the completion along with the employee it belongs to.
func (l *Ledger) PatchCompletion(ctx context.Context, actor Actor, patch CompletionPatch) (TaskCompletion, string, error) {
	c, err := l.repo.GetCompletion(ctx, patch.CompletionID)
	if err != nil {
		return TaskCompletion{}, "", err
	}
	at, err := l.repo.GetAssignedTask(ctx, c.AssignmentID)
	if err != nil {
		return TaskCompletion{}, "", err
	}
	if err = Authorize(ActionPatchCompletion, Resource{OwnerID: at.Assignment.EmployeeID}, actor); err != nil {
		return TaskCompletion{}, "", err
	}

	if patch.PhotoURL != nil {
		c.PhotoURL = core.CleanString(*patch.PhotoURL)
	}
	if patch.PhotoPublicID != nil {
		c.PhotoPublicID = core.CleanString(*patch.PhotoPublicID)
	}
	if patch.Notes != nil {
		c.Notes = core.CleanString(*patch.Notes)
	}
	if at.Template.RequiresPhoto && c.PhotoURL == "" {
		return TaskCompletion{}, "", core.NewValidationError(errPhotoRequired,
			core.FieldError{Field: "photo_url", Error: errPhotoRequired.Error()})
	}

	c, err = l.repo.UpdateCompletion(ctx, c)
	if err != nil {
		return TaskCompletion{}, "", errors.Wrap(err, "updating completion")
	}
	return c, at.Assignment.EmployeeID, nil
}
