package checklist

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/youknow/checklist/core"
)

var errInvalidPhotoURL = errors.New("photo_url must be a valid URL")

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank orders priorities high < medium < low; unknown values sort last.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
)

// TaskTemplate is the reusable definition of a recurring task.
type TaskTemplate struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Frequency   Frequency `json:"frequency"`
	// ScheduledDay pins weekly templates to a weekday (0=Sunday..6) and monthly ones to a day of month (1..31).
	// nil means every day of the period.
	ScheduledDay  *int      `json:"scheduled_day"`
	ScheduledTime string    `json:"scheduled_time"` // "HH:MM" or empty
	RequiresPhoto bool      `json:"requires_photo"`
	Category      string    `json:"category"`
	Priority      Priority  `json:"priority"`
	IsActive      bool      `json:"is_active"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TaskAssignment binds a TaskTemplate to an employee.
type TaskAssignment struct {
	ID             string    `json:"id"`
	TaskTemplateID string    `json:"task_template_id"`
	EmployeeID     string    `json:"employee_id"`
	IsActive       bool      `json:"is_active"`
	AssignedAt     time.Time `json:"assigned_at"`
}

// AssignedTask is an assignment along with its template.
type AssignedTask struct {
	Assignment TaskAssignment `json:"assignment"`
	Template   TaskTemplate   `json:"task_template"`
}

// TaskCompletion records that an assignment was fulfilled on one calendar day.
type TaskCompletion struct {
	ID              string    `json:"id"`
	AssignmentID    string    `json:"assignment_id"`
	ScheduledDate   time.Time `json:"scheduled_date"` // start of the calendar day
	Status          Status    `json:"status"`
	PhotoURL        string    `json:"photo_url"`
	PhotoPublicID   string    `json:"photo_public_id"`
	Notes           string    `json:"notes"`
	CompletedAt     time.Time `json:"completed_at"`
	CompletedOnTime bool      `json:"completed_on_time"`
}

// Templates

type NewTaskTemplate struct {
	Title         string    `json:"title" validate:"required,max=200"`
	Description   string    `json:"description" validate:"max=2000"`
	Frequency     Frequency `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	ScheduledDay  *int      `json:"scheduled_day"`
	ScheduledTime string    `json:"scheduled_time" validate:"omitempty,hhmm"`
	RequiresPhoto bool      `json:"requires_photo"`
	Category      string    `json:"category" validate:"max=100"`
	Priority      Priority  `json:"priority" validate:"omitempty,oneof=high medium low"`
	IsActive      *bool     `json:"is_active"`
}

func (nt *NewTaskTemplate) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Category = core.CleanString(nt.Category)
	nt.ScheduledTime = core.CleanString(nt.ScheduledTime)
	nt.Frequency = Frequency(core.CleanString(string(nt.Frequency), true /* lower */))
	nt.Priority = Priority(core.CleanString(string(nt.Priority), true /* lower */))
	if nt.Priority == "" {
		nt.Priority = PriorityMedium
	}
	if err := validate.Struct(nt); err != nil {
		return err
	}
	if nt.Frequency == FrequencyDaily {
		nt.ScheduledDay = nil // irrelevant for daily tasks
	}
	return nil
}

// OptionalInt is a JSON field that tells "absent" apart from "null".
type OptionalInt struct {
	Set   bool
	Value *int
}

func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// UpdateTaskTemplate defines what may be changed on an existing TaskTemplate; nil fields are left untouched.
type UpdateTaskTemplate struct {
	Title         *string     `json:"title"`
	Description   *string     `json:"description"`
	Frequency     *Frequency  `json:"frequency"`
	ScheduledDay  OptionalInt `json:"scheduled_day"`
	ScheduledTime *string     `json:"scheduled_time"`
	RequiresPhoto *bool       `json:"requires_photo"`
	Category      *string     `json:"category"`
	Priority      *Priority   `json:"priority"`
	IsActive      *bool       `json:"is_active"`

	merged NewTaskTemplate
}

// Validate merges the update into the original template and validates the result as a whole,
// so that e.g. a new frequency is checked against the existing scheduled day.
func (ut *UpdateTaskTemplate) Validate(orig TaskTemplate, validate *validator.Validate) error {
	isActive := orig.IsActive
	m := NewTaskTemplate{
		Title:         orig.Title,
		Description:   orig.Description,
		Frequency:     orig.Frequency,
		ScheduledDay:  orig.ScheduledDay,
		ScheduledTime: orig.ScheduledTime,
		RequiresPhoto: orig.RequiresPhoto,
		Category:      orig.Category,
		Priority:      orig.Priority,
		IsActive:      &isActive,
	}
	if ut.Title != nil {
		m.Title = *ut.Title
	}
	if ut.Description != nil {
		m.Description = *ut.Description
	}
	if ut.Frequency != nil {
		m.Frequency = *ut.Frequency
	}
	if ut.ScheduledDay.Set {
		m.ScheduledDay = ut.ScheduledDay.Value
	}
	if ut.ScheduledTime != nil {
		m.ScheduledTime = *ut.ScheduledTime
	}
	if ut.RequiresPhoto != nil {
		m.RequiresPhoto = *ut.RequiresPhoto
	}
	if ut.Category != nil {
		m.Category = *ut.Category
	}
	if ut.Priority != nil {
		m.Priority = *ut.Priority
	}
	if ut.IsActive != nil {
		m.IsActive = ut.IsActive
	}
	if err := m.Validate(validate); err != nil {
		return err
	}
	ut.merged = m
	return nil
}

// apply returns orig with the validated update applied.
func (ut *UpdateTaskTemplate) apply(orig TaskTemplate) TaskTemplate {
	m := ut.merged
	orig.Title = m.Title
	orig.Description = m.Description
	orig.Frequency = m.Frequency
	orig.ScheduledDay = m.ScheduledDay
	orig.ScheduledTime = m.ScheduledTime
	orig.RequiresPhoto = m.RequiresPhoto
	orig.Category = m.Category
	orig.Priority = m.Priority
	if m.IsActive != nil {
		orig.IsActive = *m.IsActive
	}
	return orig
}

type TemplateFilter struct {
	Search    string    `query:"search"`
	Frequency Frequency `query:"frequency"`
	Category  string    `query:"category"`
	IsActive  *bool     `query:"is_active"`
}

func (tf *TemplateFilter) Clean() {
	tf.Search = core.CleanString(tf.Search)
	tf.Category = core.CleanString(tf.Category)
	tf.Frequency = Frequency(core.CleanString(string(tf.Frequency), true /* lower */))
}

// Assignments

// NewAssignments assigns every listed template to every listed employee.
type NewAssignments struct {
	TaskTemplateIDs []string `json:"task_template_ids" validate:"required,min=1,dive,required"`
	EmployeeIDs     []string `json:"employee_ids" validate:"required,min=1,dive,required"`
}

// NewAssignment assigns one template to one employee.
type NewAssignment struct {
	TaskTemplateID string `json:"task_template_id" validate:"required"`
	EmployeeID     string `json:"employee_id" validate:"required"`
}

func (na NewAssignment) Bulk() NewAssignments {
	return NewAssignments{TaskTemplateIDs: []string{na.TaskTemplateID}, EmployeeIDs: []string{na.EmployeeID}}
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.TaskTemplateID = core.CleanString(na.TaskTemplateID)
	na.EmployeeID = core.CleanString(na.EmployeeID)
	return validate.Struct(na)
}

func (na *NewAssignments) Validate(validate *validator.Validate) error {
	na.TaskTemplateIDs = cleanIDs(na.TaskTemplateIDs)
	na.EmployeeIDs = cleanIDs(na.EmployeeIDs)
	return validate.Struct(na)
}

type UpdateAssignment struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type AssignmentFilter struct {
	EmployeeID     string `query:"employee_id"`
	TaskTemplateID string `query:"task_template_id"`
	IsActive       *bool  `query:"is_active"`
}

// Completions

// CompletionRequest marks an assignment as completed for a day (today when ScheduledDate is empty).
type CompletionRequest struct {
	AssignmentID  string `json:"assignment_id" validate:"required"`
	PhotoURL      string `json:"photo_url" validate:"omitempty,url"`
	PhotoPublicID string `json:"photo_public_id" validate:"max=255"`
	Notes         string `json:"notes" validate:"max=2000"`
	ScheduledDate string `json:"scheduled_date"` // YYYY-MM-DD or RFC 3339
}

func (cr *CompletionRequest) Validate(validate *validator.Validate) error {
	cr.AssignmentID = core.CleanString(cr.AssignmentID)
	cr.PhotoURL = core.CleanString(cr.PhotoURL)
	cr.PhotoPublicID = core.CleanString(cr.PhotoPublicID)
	cr.Notes = core.CleanString(cr.Notes)
	cr.ScheduledDate = core.CleanString(cr.ScheduledDate)
	return validate.Struct(cr)
}

// CompletionPatch updates the evidence of an existing completion; nil fields are left untouched.
// An empty PhotoURL removes the photo.
type CompletionPatch struct {
	CompletionID  string  `json:"completion_id" validate:"required"`
	PhotoURL      *string `json:"photo_url"`
	PhotoPublicID *string `json:"photo_public_id" validate:"omitempty,max=255"`
	Notes         *string `json:"notes" validate:"omitempty,max=2000"`
}

func (cp *CompletionPatch) Validate(validate *validator.Validate) error {
	cp.CompletionID = core.CleanString(cp.CompletionID)
	if err := validate.Struct(cp); err != nil {
		return err
	}
	if cp.PhotoURL != nil {
		photoURL := core.CleanString(*cp.PhotoURL)
		cp.PhotoURL = &photoURL
		if err := validate.Var(photoURL, "omitempty,url"); err != nil {
			return core.NewValidationError(errInvalidPhotoURL,
				core.FieldError{Field: "photo_url", Error: errInvalidPhotoURL.Error()})
		}
	}
	return nil
}

type CompletionFilter struct {
	AssignmentIDs []string
	From          time.Time // inclusive
	To            time.Time // exclusive
}

// Projections

// DailyTask is an assignment due on a given day along with its completion state.
type DailyTask struct {
	AssignmentID    string     `json:"assignment_id"`
	TaskTemplateID  string     `json:"task_template_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Frequency       Frequency  `json:"frequency"`
	ScheduledDay    *int       `json:"scheduled_day"`
	ScheduledTime   string     `json:"scheduled_time"`
	RequiresPhoto   bool       `json:"requires_photo"`
	Category        string     `json:"category"`
	Priority        Priority   `json:"priority"`
	Status          Status     `json:"status"`
	CompletionID    string     `json:"completion_id"`
	CompletedAt     *time.Time `json:"completed_at"`
	CompletedOnTime *bool      `json:"completed_on_time"`
	PhotoURL        string     `json:"photo_url"`
	Notes           string     `json:"notes"`
}

type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

type DailyTasks struct {
	Date    string      `json:"date"`
	Tasks   []DailyTask `json:"tasks"`
	Summary Summary     `json:"summary"`
}

type DailyStats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Pending    int `json:"pending"`
	Compliance int `json:"compliance"`
}

type PeriodStats struct {
	From           string `json:"from"`
	To             string `json:"to"`
	TotalCompleted int    `json:"total_completed"`
	Expected       int    `json:"expected"`
	Compliance     int    `json:"compliance"`
}

type ComplianceStats struct {
	EmployeeID string      `json:"employee_id"`
	Date       string      `json:"date"`
	Daily      DailyStats  `json:"daily"`
	Weekly     PeriodStats `json:"weekly"`
	Monthly    PeriodStats `json:"monthly"`
	OnTimeRate int         `json:"on_time_rate"`
}

// describeSchedule renders a template's recurrence for humans, e.g. "every Monday at 09:00".
func describeSchedule(tmpl TaskTemplate) string {
	var s string
	switch tmpl.Frequency {
	case FrequencyDaily:
		s = "every day"
	case FrequencyWeekly:
		if tmpl.ScheduledDay != nil && *tmpl.ScheduledDay >= 0 && *tmpl.ScheduledDay <= 6 {
			s = "every " + time.Weekday(*tmpl.ScheduledDay).String()
		} else {
			s = "every day of the week"
		}
	case FrequencyMonthly:
		if tmpl.ScheduledDay != nil {
			s = fmt.Sprintf("monthly on day %d", *tmpl.ScheduledDay)
		} else {
			s = "every day of the month"
		}
	default:
		s = string(tmpl.Frequency)
	}
	if tmpl.ScheduledTime != "" {
		s += " at " + tmpl.ScheduledTime
	}
	return s
}

func cleanIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		cleaned = append(cleaned, id)
	}
	return cleaned
}
