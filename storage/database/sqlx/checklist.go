package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/checklist"
)

const (
	templateColumns = `id, title, description, frequency, scheduled_day, scheduled_time, requires_photo, category,
		priority, is_active, created_by, created_at, updated_at`
	completionColumns = `id, assignment_id, scheduled_date, status, photo_url, photo_public_id, notes, completed_at,
		completed_on_time`
	assignedColumns = `a.id AS a_id, a.task_template_id AS a_task_template_id, a.employee_id AS a_employee_id,
		a.is_active AS a_is_active, a.assigned_at AS a_assigned_at,
		t.id, t.title, t.description, t.frequency, t.scheduled_day, t.scheduled_time, t.requires_photo, t.category,
		t.priority, t.is_active, t.created_by, t.created_at, t.updated_at`
)

var templateOrderings = map[string]string{
	"title":      "title",
	"category":   "category",
	"frequency":  "frequency",
	"priority":   "priority",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type templateRow struct {
	ID            string      `db:"id"`
	Title         string      `db:"title"`
	Description   null.String `db:"description"`
	Frequency     string      `db:"frequency"`
	ScheduledDay  null.Int    `db:"scheduled_day"`
	ScheduledTime null.String `db:"scheduled_time"`
	RequiresPhoto bool        `db:"requires_photo"`
	Category      null.String `db:"category"`
	Priority      string      `db:"priority"`
	IsActive      bool        `db:"is_active"`
	CreatedBy     null.String `db:"created_by"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func toTemplateRow(tmpl checklist.TaskTemplate) templateRow {
	return templateRow{
		ID:            tmpl.ID,
		Title:         tmpl.Title,
		Description:   null.NewString(tmpl.Description, tmpl.Description != ""),
		Frequency:     string(tmpl.Frequency),
		ScheduledDay:  null.IntFromPtr(tmpl.ScheduledDay),
		ScheduledTime: null.NewString(tmpl.ScheduledTime, tmpl.ScheduledTime != ""),
		RequiresPhoto: tmpl.RequiresPhoto,
		Category:      null.NewString(tmpl.Category, tmpl.Category != ""),
		Priority:      string(tmpl.Priority),
		IsActive:      tmpl.IsActive,
		CreatedBy:     null.NewString(tmpl.CreatedBy, tmpl.CreatedBy != ""),
		CreatedAt:     tmpl.CreatedAt.UTC(),
		UpdatedAt:     tmpl.UpdatedAt.UTC(),
	}
}

func (r templateRow) template() checklist.TaskTemplate {
	return checklist.TaskTemplate{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description.String,
		Frequency:     checklist.Frequency(r.Frequency),
		ScheduledDay:  r.ScheduledDay.Ptr(),
		ScheduledTime: strings.TrimSpace(r.ScheduledTime.String),
		RequiresPhoto: r.RequiresPhoto,
		Category:      r.Category.String,
		Priority:      checklist.Priority(r.Priority),
		IsActive:      r.IsActive,
		CreatedBy:     r.CreatedBy.String,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type assignmentRow struct {
	ID             string    `db:"a_id"`
	TaskTemplateID string    `db:"a_task_template_id"`
	EmployeeID     string    `db:"a_employee_id"`
	IsActive       bool      `db:"a_is_active"`
	AssignedAt     time.Time `db:"a_assigned_at"`
}

func (r assignmentRow) assignment() checklist.TaskAssignment {
	return checklist.TaskAssignment{
		ID:             r.ID,
		TaskTemplateID: r.TaskTemplateID,
		EmployeeID:     r.EmployeeID,
		IsActive:       r.IsActive,
		AssignedAt:     r.AssignedAt,
	}
}

type assignedRow struct {
	assignmentRow
	templateRow
}

func (r assignedRow) assignedTask() checklist.AssignedTask {
	return checklist.AssignedTask{Assignment: r.assignment(), Template: r.template()}
}

type completionRow struct {
	ID              string      `db:"id"`
	AssignmentID    string      `db:"assignment_id"`
	ScheduledDate   time.Time   `db:"scheduled_date"`
	Status          string      `db:"status"`
	PhotoURL        null.String `db:"photo_url"`
	PhotoPublicID   null.String `db:"photo_public_id"`
	Notes           null.String `db:"notes"`
	CompletedAt     time.Time   `db:"completed_at"`
	CompletedOnTime bool        `db:"completed_on_time"`
}

func toCompletionRow(c checklist.TaskCompletion) completionRow {
	return completionRow{
		ID:              c.ID,
		AssignmentID:    c.AssignmentID,
		ScheduledDate:   c.ScheduledDate,
		Status:          string(c.Status),
		PhotoURL:        null.NewString(c.PhotoURL, c.PhotoURL != ""),
		PhotoPublicID:   null.NewString(c.PhotoPublicID, c.PhotoPublicID != ""),
		Notes:           null.NewString(c.Notes, c.Notes != ""),
		CompletedAt:     c.CompletedAt.UTC(),
		CompletedOnTime: c.CompletedOnTime,
	}
}

func (r completionRow) completion() checklist.TaskCompletion {
	return checklist.TaskCompletion{
		ID:              r.ID,
		AssignmentID:    r.AssignmentID,
		ScheduledDate:   r.ScheduledDate,
		Status:          checklist.Status(r.Status),
		PhotoURL:        r.PhotoURL.String,
		PhotoPublicID:   r.PhotoPublicID.String,
		Notes:           r.Notes.String,
		CompletedAt:     r.CompletedAt,
		CompletedOnTime: r.CompletedOnTime,
	}
}

type checklistRepository struct {
	exec core.DBExecutor
}

var _ checklist.Repository = (*checklistRepository)(nil) // interface compliance check

func NewChecklistRepository(exec core.DBExecutor) *checklistRepository {
	return &checklistRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Templates

func (repo checklistRepository) CreateTemplate(ctx context.Context, tmpl checklist.TaskTemplate) (checklist.TaskTemplate, error) {
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}
	row := toTemplateRow(tmpl)
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO task_template (`+templateColumns+`)
		VALUES (:id, :title, :description, :frequency, :scheduled_day, :scheduled_time, :requires_photo, :category,
			:priority, :is_active, :created_by, :created_at, :updated_at)`, row)
	if err != nil {
		return checklist.TaskTemplate{}, errors.Wrap(err, "inserting task template")
	}
	return row.template(), nil
}

func (repo checklistRepository) GetTemplate(ctx context.Context, id string) (checklist.TaskTemplate, error) {
	if !validID(id) {
		return checklist.TaskTemplate{}, checklist.ErrTemplateNotFound
	}
	var row templateRow
	if err := repo.exec.GetContext(ctx, &row, `SELECT `+templateColumns+` FROM task_template WHERE id = $1`, id); err != nil {
		return checklist.TaskTemplate{}, trapNoRowsErr(err, checklist.ErrTemplateNotFound, "finding task template")
	}
	return row.template(), nil
}

func (repo checklistRepository) QueryTemplates(ctx context.Context, filter *checklist.TemplateFilter, ordering []core.DBOrdering) ([]checklist.TaskTemplate, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			where = append(where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s OR category ILIKE %s)", p, p, p))
		}
		if filter.Frequency != "" {
			where = append(where, "frequency = "+arg(string(filter.Frequency)))
		}
		if filter.Category != "" {
			where = append(where, "category ILIKE "+arg(filter.Category))
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = "+arg(*filter.IsActive))
		}
	}

	q := `SELECT ` + templateColumns + ` FROM task_template`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, templateOrderings, "created_at ASC")

	var rows []templateRow
	if err := repo.exec.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying task templates")
	}
	templates := make([]checklist.TaskTemplate, 0, len(rows))
	for _, r := range rows {
		templates = append(templates, r.template())
	}
	return templates, nil
}

func (repo checklistRepository) UpdateTemplate(ctx context.Context, tmpl checklist.TaskTemplate) (checklist.TaskTemplate, error) {
	row := toTemplateRow(tmpl)
	res, err := repo.exec.NamedExecContext(ctx, `
		UPDATE task_template SET
			title = :title, description = :description, frequency = :frequency, scheduled_day = :scheduled_day,
			scheduled_time = :scheduled_time, requires_photo = :requires_photo, category = :category,
			priority = :priority, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return checklist.TaskTemplate{}, errors.Wrap(err, "updating task template")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return checklist.TaskTemplate{}, checklist.ErrTemplateNotFound
	}
	return row.template(), nil
}

// DeleteTemplate relies on ON DELETE CASCADE for assignments & completions.
func (repo checklistRepository) DeleteTemplate(ctx context.Context, id string) error {
	if !validID(id) {
		return checklist.ErrTemplateNotFound
	}
	res, err := repo.exec.ExecContext(ctx, `DELETE FROM task_template WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting task template")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return checklist.ErrTemplateNotFound
	}
	return nil
}

// Assignments

func (repo checklistRepository) CreateAssignments(ctx context.Context, assignments []checklist.TaskAssignment) ([]checklist.TaskAssignment, error) {
	created := make([]checklist.TaskAssignment, 0, len(assignments))
	for _, a := range assignments {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		var row assignmentRow
		err := repo.exec.GetContext(ctx, &row, `
			INSERT INTO task_assignment (id, task_template_id, employee_id, is_active, assigned_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (task_template_id, employee_id) DO NOTHING
			RETURNING id AS a_id, task_template_id AS a_task_template_id, employee_id AS a_employee_id,
				is_active AS a_is_active, assigned_at AS a_assigned_at`,
			a.ID, a.TaskTemplateID, a.EmployeeID, a.IsActive, a.AssignedAt.UTC())
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue // already assigned
		case isForeignKeyViolation(err):
			return nil, checklist.ErrTemplateNotFound
		case err != nil:
			return nil, errors.Wrap(err, "inserting task assignment")
		}
		created = append(created, row.assignment())
	}
	return created, nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func (repo checklistRepository) GetAssignedTask(ctx context.Context, assignmentID string) (checklist.AssignedTask, error) {
	if !validID(assignmentID) {
		return checklist.AssignedTask{}, checklist.ErrAssignmentNotFound
	}
	var row assignedRow
	err := repo.exec.GetContext(ctx, &row, `
		SELECT `+assignedColumns+`
		FROM task_assignment a JOIN task_template t ON t.id = a.task_template_id
		WHERE a.id = $1`, assignmentID)
	if err != nil {
		return checklist.AssignedTask{}, trapNoRowsErr(err, checklist.ErrAssignmentNotFound, "finding task assignment")
	}
	return row.assignedTask(), nil
}

func (repo checklistRepository) queryAssigned(ctx context.Context, where []string, args []interface{}) ([]checklist.AssignedTask, error) {
	q := `SELECT ` + assignedColumns + ` FROM task_assignment a JOIN task_template t ON t.id = a.task_template_id`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY a.assigned_at ASC, a.id ASC"

	var rows []assignedRow
	if err := repo.exec.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying task assignments")
	}
	tasks := make([]checklist.AssignedTask, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.assignedTask())
	}
	return tasks, nil
}

func (repo checklistRepository) QueryAssignments(ctx context.Context, filter *checklist.AssignmentFilter) ([]checklist.AssignedTask, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.EmployeeID != "" {
			if !validID(filter.EmployeeID) {
				return []checklist.AssignedTask{}, nil
			}
			where = append(where, "a.employee_id = "+arg(filter.EmployeeID))
		}
		if filter.TaskTemplateID != "" {
			if !validID(filter.TaskTemplateID) {
				return []checklist.AssignedTask{}, nil
			}
			where = append(where, "a.task_template_id = "+arg(filter.TaskTemplateID))
		}
		if filter.IsActive != nil {
			where = append(where, "a.is_active = "+arg(*filter.IsActive))
		}
	}
	return repo.queryAssigned(ctx, where, args)
}

func (repo checklistRepository) ActiveAssignedTasks(ctx context.Context, employeeID string) ([]checklist.AssignedTask, error) {
	if !validID(employeeID) {
		return []checklist.AssignedTask{}, nil
	}
	return repo.queryAssigned(ctx,
		[]string{"a.employee_id = $1", "a.is_active", "t.is_active"},
		[]interface{}{employeeID})
}

func (repo checklistRepository) UpdateAssignment(ctx context.Context, assignment checklist.TaskAssignment) (checklist.TaskAssignment, error) {
	if !validID(assignment.ID) {
		return checklist.TaskAssignment{}, checklist.ErrAssignmentNotFound
	}
	var row assignmentRow
	err := repo.exec.GetContext(ctx, &row, `
		UPDATE task_assignment SET is_active = $2 WHERE id = $1
		RETURNING id AS a_id, task_template_id AS a_task_template_id, employee_id AS a_employee_id,
			is_active AS a_is_active, assigned_at AS a_assigned_at`,
		assignment.ID, assignment.IsActive)
	if err != nil {
		return checklist.TaskAssignment{}, trapNoRowsErr(err, checklist.ErrAssignmentNotFound, "updating task assignment")
	}
	return row.assignment(), nil
}

// DeleteAssignments relies on ON DELETE CASCADE for completions.
func (repo checklistRepository) DeleteAssignments(ctx context.Context, ids []string) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}
	res, err := repo.exec.ExecContext(ctx, `DELETE FROM task_assignment WHERE id = ANY($1::uuid[])`, pq.Array(valid))
	if err != nil {
		return 0, errors.Wrap(err, "deleting task assignments")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "deleting task assignments")
}

// Completions

func (repo checklistRepository) GetCompletion(ctx context.Context, id string) (checklist.TaskCompletion, error) {
	if !validID(id) {
		return checklist.TaskCompletion{}, checklist.ErrCompletionNotFound
	}
	var row completionRow
	if err := repo.exec.GetContext(ctx, &row, `SELECT `+completionColumns+` FROM task_completion WHERE id = $1`, id); err != nil {
		return checklist.TaskCompletion{}, trapNoRowsErr(err, checklist.ErrCompletionNotFound, "finding task completion")
	}
	return row.completion(), nil
}

func (repo checklistRepository) FindCompletion(ctx context.Context, assignmentID string, from, to time.Time) (checklist.TaskCompletion, error) {
	if !validID(assignmentID) {
		return checklist.TaskCompletion{}, checklist.ErrCompletionNotFound
	}
	var row completionRow
	err := repo.exec.GetContext(ctx, &row, `
		SELECT `+completionColumns+` FROM task_completion
		WHERE assignment_id = $1 AND scheduled_date >= $2 AND scheduled_date < $3
		ORDER BY scheduled_date ASC LIMIT 1`,
		assignmentID, from.UTC(), to.UTC())
	if err != nil {
		return checklist.TaskCompletion{}, trapNoRowsErr(err, checklist.ErrCompletionNotFound, "finding task completion")
	}
	return row.completion(), nil
}

func (repo checklistRepository) QueryCompletions(ctx context.Context, filter checklist.CompletionFilter) ([]checklist.TaskCompletion, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.AssignmentIDs) > 0 {
		ids := make([]string, 0, len(filter.AssignmentIDs))
		for _, id := range filter.AssignmentIDs {
			if validID(id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return []checklist.TaskCompletion{}, nil
		}
		where = append(where, fmt.Sprintf("assignment_id = ANY(%s::uuid[])", arg(pq.Array(ids))))
	}
	if !filter.From.IsZero() {
		where = append(where, "scheduled_date >= "+arg(filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		where = append(where, "scheduled_date < "+arg(filter.To.UTC()))
	}

	q := `SELECT ` + completionColumns + ` FROM task_completion`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY scheduled_date ASC, assignment_id ASC"

	var rows []completionRow
	if err := repo.exec.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying task completions")
	}
	completions := make([]checklist.TaskCompletion, 0, len(rows))
	for _, r := range rows {
		completions = append(completions, r.completion())
	}
	return completions, nil
}

// UpsertCompletion inserts or merges the completion of (assignment, day) in a single statement:
// empty photo & notes never overwrite stored ones and completed_on_time keeps its first value.
func (repo checklistRepository) UpsertCompletion(ctx context.Context, c checklist.TaskCompletion) (checklist.TaskCompletion, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := toCompletionRow(c)
	rows, err := sqlx.NamedQueryContext(ctx, repo.exec, `
		INSERT INTO task_completion (`+completionColumns+`)
		VALUES (:id, :assignment_id, :scheduled_date, :status, :photo_url, :photo_public_id, :notes, :completed_at,
			:completed_on_time)
		ON CONFLICT (assignment_id, scheduled_date) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			photo_url = COALESCE(EXCLUDED.photo_url, task_completion.photo_url),
			photo_public_id = COALESCE(EXCLUDED.photo_public_id, task_completion.photo_public_id),
			notes = COALESCE(EXCLUDED.notes, task_completion.notes)
		RETURNING `+completionColumns, row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return checklist.TaskCompletion{}, checklist.ErrAssignmentNotFound
		}
		return checklist.TaskCompletion{}, errors.Wrap(err, "upserting task completion")
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return checklist.TaskCompletion{}, errors.Wrap(rows.Err(), "upserting task completion")
	}
	var saved completionRow
	if err = rows.StructScan(&saved); err != nil {
		return checklist.TaskCompletion{}, errors.Wrap(err, "scanning task completion")
	}
	return saved.completion(), nil
}

func (repo checklistRepository) UpdateCompletion(ctx context.Context, c checklist.TaskCompletion) (checklist.TaskCompletion, error) {
	if !validID(c.ID) {
		return checklist.TaskCompletion{}, checklist.ErrCompletionNotFound
	}
	var row completionRow
	err := repo.exec.GetContext(ctx, &row, `
		UPDATE task_completion SET photo_url = $2, photo_public_id = $3, notes = $4
		WHERE id = $1
		RETURNING `+completionColumns,
		c.ID, null.NewString(c.PhotoURL, c.PhotoURL != ""), null.NewString(c.PhotoPublicID, c.PhotoPublicID != ""),
		null.NewString(c.Notes, c.Notes != ""))
	if err != nil {
		return checklist.TaskCompletion{}, trapNoRowsErr(err, checklist.ErrCompletionNotFound, "updating task completion")
	}
	return row.completion(), nil
}
