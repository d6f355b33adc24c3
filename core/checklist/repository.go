package checklist

import (
	"context"
	"time"

	"github.com/youknow/checklist/core"
)

var (
	ErrTemplateNotFound   = core.NewNotFoundError("task template not found")
	ErrAssignmentNotFound = core.NewNotFoundError("task assignment not found")
	ErrCompletionNotFound = core.NewNotFoundError("task completion not found")
)

// Repository persists templates, assignments & completions.
type Repository interface {
	CreateTemplate(ctx context.Context, tmpl TaskTemplate) (TaskTemplate, error)
	GetTemplate(ctx context.Context, id string) (TaskTemplate, error)
	// QueryTemplates applies AND operation on available TemplateFilter fields.
	// TemplateFilter.Search does a case-insensitive match on title, description or category.
	QueryTemplates(ctx context.Context, filter *TemplateFilter, ordering []core.DBOrdering) ([]TaskTemplate, error)
	UpdateTemplate(ctx context.Context, tmpl TaskTemplate) (TaskTemplate, error)
	// DeleteTemplate removes the template along with its assignments & their completions.
	DeleteTemplate(ctx context.Context, id string) error

	// CreateAssignments stores the given assignments, skipping (template, employee) pairs that already exist.
	// It returns the newly created assignments only.
	CreateAssignments(ctx context.Context, assignments []TaskAssignment) ([]TaskAssignment, error)
	GetAssignedTask(ctx context.Context, assignmentID string) (AssignedTask, error)
	QueryAssignments(ctx context.Context, filter *AssignmentFilter) ([]AssignedTask, error)
	// ActiveAssignedTasks lists the active assignments of employeeID whose template is active.
	ActiveAssignedTasks(ctx context.Context, employeeID string) ([]AssignedTask, error)
	UpdateAssignment(ctx context.Context, assignment TaskAssignment) (TaskAssignment, error)
	DeleteAssignments(ctx context.Context, ids []string) (int, error)

	GetCompletion(ctx context.Context, id string) (TaskCompletion, error)
	// FindCompletion returns the completion of assignmentID whose scheduled date falls in [from, to).
	FindCompletion(ctx context.Context, assignmentID string, from, to time.Time) (TaskCompletion, error)
	QueryCompletions(ctx context.Context, filter CompletionFilter) ([]TaskCompletion, error)
	// UpsertCompletion atomically inserts c or merges it into the completion already stored
	// for (c.AssignmentID, c.ScheduledDate): status and completed_at are overwritten,
	// photo & notes only when non-empty, completed_on_time is kept.
	UpsertCompletion(ctx context.Context, c TaskCompletion) (TaskCompletion, error)
	// UpdateCompletion saves the photo & notes of c.
	UpdateCompletion(ctx context.Context, c TaskCompletion) (TaskCompletion, error)
}
