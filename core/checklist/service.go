package checklist

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/user"
)

const (
	statsCachePrefix      = "checklist:stats:"
	taskAssignedTemplate  = "task_assigned"
	taskAssignedSubject   = "New checklist tasks"
	errNotAnEmployeeMsg   = "user is not an employee"
	errEmptyEmployeeIDMsg = "employee_id is required"
)

type (
	// Directory resolves users; implemented by user.Service.
	Directory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	ServiceInterface interface {
		CreateTemplate(ctx context.Context, actor Actor, nt NewTaskTemplate) (TaskTemplate, error)
		GetTemplate(ctx context.Context, actor Actor, id string) (TaskTemplate, error)
		QueryTemplates(ctx context.Context, actor Actor, filter *TemplateFilter, ordering []core.DBOrdering) ([]TaskTemplate, error)
		UpdateTemplate(ctx context.Context, actor Actor, id string, ut UpdateTaskTemplate) (TaskTemplate, error)
		DeleteTemplate(ctx context.Context, actor Actor, id string) error

		Assign(ctx context.Context, actor Actor, na NewAssignments) ([]TaskAssignment, error)
		QueryAssignments(ctx context.Context, actor Actor, filter *AssignmentFilter) ([]AssignedTask, error)
		UpdateAssignment(ctx context.Context, actor Actor, id string, ua UpdateAssignment) (TaskAssignment, error)
		DeleteAssignments(ctx context.Context, actor Actor, ids ...string) (int, error)

		TasksForDate(ctx context.Context, actor Actor, employeeID, date string) (DailyTasks, error)
		Stats(ctx context.Context, actor Actor, employeeID, date string) (ComplianceStats, error)
		RecordCompletion(ctx context.Context, actor Actor, req CompletionRequest) (TaskCompletion, error)
		PatchCompletion(ctx context.Context, actor Actor, patch CompletionPatch) (TaskCompletion, error)
	}

	Service struct {
		repo     Repository
		users    Directory
		mailer   core.EmailService
		cache    core.Cache
		logger   core.Logger
		validate *validator.Validate
		conf     *core.Config
		cal      Calendar
		nowFunc  func() time.Time

		ledger     *Ledger
		aggregator *Aggregator
		stats      *StatsCalculator
	}

	Option func(svc *Service)
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.nowFunc = now }
}

// WithCache enables caching of compliance stats.
func WithCache(cache core.Cache) Option {
	return func(svc *Service) { svc.cache = cache }
}

func NewService(
	repo Repository,
	users Directory,
	mailer core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
	conf *core.Config,
	opts ...Option,
) *Service {
	svc := &Service{
		repo:     repo,
		users:    users,
		mailer:   mailer,
		logger:   logger,
		validate: validate,
		conf:     conf,
		cal:      NewCalendar(conf.Checklist.Location()),
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.ledger = NewLedger(repo, svc.cal, svc.nowFunc)
	svc.aggregator = NewAggregator(repo, svc.cal)
	svc.stats = NewStatsCalculator(repo, svc.cal, conf.Checklist.StatsLookbackDays)
	return svc
}

func (svc *Service) Calendar() Calendar { return svc.cal }

// Templates

func (svc *Service) CreateTemplate(ctx context.Context, actor Actor, nt NewTaskTemplate) (TaskTemplate, error) {
	if err := Authorize(ActionManageTemplates, Resource{}, actor); err != nil {
		return TaskTemplate{}, err
	}
	if err := nt.Validate(svc.validate); err != nil {
		return TaskTemplate{}, err
	}
	now := svc.nowFunc().UTC()
	isActive := true
	if nt.IsActive != nil {
		isActive = *nt.IsActive
	}
	return svc.repo.CreateTemplate(ctx, TaskTemplate{
		ID:            uuid.NewString(),
		Title:         nt.Title,
		Description:   nt.Description,
		Frequency:     nt.Frequency,
		ScheduledDay:  nt.ScheduledDay,
		ScheduledTime: nt.ScheduledTime,
		RequiresPhoto: nt.RequiresPhoto,
		Category:      nt.Category,
		Priority:      nt.Priority,
		IsActive:      isActive,
		CreatedBy:     actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *Service) GetTemplate(ctx context.Context, actor Actor, id string) (TaskTemplate, error) {
	if err := Authorize(ActionManageTemplates, Resource{}, actor); err != nil {
		return TaskTemplate{}, err
	}
	return svc.repo.GetTemplate(ctx, id)
}

func (svc *Service) QueryTemplates(ctx context.Context, actor Actor, filter *TemplateFilter, ordering []core.DBOrdering) ([]TaskTemplate, error) {
	if err := Authorize(ActionManageTemplates, Resource{}, actor); err != nil {
		return nil, err
	}
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryTemplates(ctx, filter, ordering)
}

func (svc *Service) UpdateTemplate(ctx context.Context, actor Actor, id string, ut UpdateTaskTemplate) (TaskTemplate, error) {
	if err := Authorize(ActionManageTemplates, Resource{}, actor); err != nil {
		return TaskTemplate{}, err
	}
	orig, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		return TaskTemplate{}, err
	}
	if err = ut.Validate(orig, svc.validate); err != nil {
		return TaskTemplate{}, err
	}
	tmpl := ut.apply(orig)
	tmpl.UpdatedAt = svc.nowFunc().UTC()
	if tmpl, err = svc.repo.UpdateTemplate(ctx, tmpl); err != nil {
		return TaskTemplate{}, err
	}
	svc.invalidateStats(ctx, "")
	return tmpl, nil
}

func (svc *Service) DeleteTemplate(ctx context.Context, actor Actor, id string) error {
	if err := Authorize(ActionManageTemplates, Resource{}, actor); err != nil {
		return err
	}
	if err := svc.repo.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	svc.invalidateStats(ctx, "")
	return nil
}

// Assignments

// Assign assigns every template of na to every employee of na. Existing pairs are skipped.
// Employees are notified by email of their new tasks.
func (svc *Service) Assign(ctx context.Context, actor Actor, na NewAssignments) ([]TaskAssignment, error) {
	if err := Authorize(ActionManageAssignments, Resource{}, actor); err != nil {
		return nil, err
	}
	if err := na.Validate(svc.validate); err != nil {
		return nil, err
	}

	templates := make(map[string]TaskTemplate, len(na.TaskTemplateIDs))
	for _, id := range na.TaskTemplateIDs {
		tmpl, err := svc.repo.GetTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		templates[id] = tmpl
	}
	employees := make(map[string]user.User, len(na.EmployeeIDs))
	for _, id := range na.EmployeeIDs {
		usr, err := svc.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !usr.IsEmployee() {
			err = errors.New(errNotAnEmployeeMsg)
			return nil, core.NewValidationError(err, core.FieldError{Field: "employee_ids", Error: err.Error()})
		}
		employees[id] = usr
	}

	now := svc.nowFunc().UTC()
	assignments := make([]TaskAssignment, 0, len(na.TaskTemplateIDs)*len(na.EmployeeIDs))
	for _, empID := range na.EmployeeIDs {
		for _, tmplID := range na.TaskTemplateIDs {
			assignments = append(assignments, TaskAssignment{
				ID:             uuid.NewString(),
				TaskTemplateID: tmplID,
				EmployeeID:     empID,
				IsActive:       true,
				AssignedAt:     now,
			})
		}
	}
	created, err := svc.repo.CreateAssignments(ctx, assignments)
	if err != nil {
		return nil, errors.Wrap(err, "creating assignments")
	}

	for _, empID := range na.EmployeeIDs {
		svc.invalidateStats(ctx, empID)
	}
	svc.notifyAssigned(created, templates, employees)
	return created, nil
}

func (svc *Service) QueryAssignments(ctx context.Context, actor Actor, filter *AssignmentFilter) ([]AssignedTask, error) {
	if err := Authorize(ActionManageAssignments, Resource{}, actor); err != nil {
		return nil, err
	}
	return svc.repo.QueryAssignments(ctx, filter)
}

func (svc *Service) UpdateAssignment(ctx context.Context, actor Actor, id string, ua UpdateAssignment) (TaskAssignment, error) {
	if err := Authorize(ActionManageAssignments, Resource{}, actor); err != nil {
		return TaskAssignment{}, err
	}
	if err := svc.validate.Struct(ua); err != nil {
		return TaskAssignment{}, err
	}
	at, err := svc.repo.GetAssignedTask(ctx, id)
	if err != nil {
		return TaskAssignment{}, err
	}
	at.Assignment.IsActive = *ua.IsActive
	assignment, err := svc.repo.UpdateAssignment(ctx, at.Assignment)
	if err != nil {
		return TaskAssignment{}, err
	}
	svc.invalidateStats(ctx, assignment.EmployeeID)
	return assignment, nil
}

func (svc *Service) DeleteAssignments(ctx context.Context, actor Actor, ids ...string) (int, error) {
	if err := Authorize(ActionManageAssignments, Resource{}, actor); err != nil {
		return 0, err
	}
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := svc.repo.DeleteAssignments(ctx, ids)
	if err != nil {
		return 0, err
	}
	svc.invalidateStats(ctx, "")
	return n, nil
}

// Daily tasks, stats & completions

// TasksForDate lists the tasks of employeeID (the actor when empty) due on date (today when empty).
func (svc *Service) TasksForDate(ctx context.Context, actor Actor, employeeID, date string) (DailyTasks, error) {
	employeeID, day, err := svc.resolveTarget(ActionViewTasks, actor, employeeID, date)
	if err != nil {
		return DailyTasks{}, err
	}
	return svc.aggregator.TasksForDate(ctx, employeeID, day)
}

// Stats computes the compliance stats of employeeID (the actor when empty) on date (today when empty).
func (svc *Service) Stats(ctx context.Context, actor Actor, employeeID, date string) (ComplianceStats, error) {
	employeeID, day, err := svc.resolveTarget(ActionViewStats, actor, employeeID, date)
	if err != nil {
		return ComplianceStats{}, err
	}

	key := statsCacheKey(employeeID, svc.cal.Format(day))
	if svc.cache != nil {
		var cached ComplianceStats
		if ok, err := svc.cache.Get(ctx, key, &cached); err != nil {
			svc.logger.Warn(fmt.Sprintf("checklist.Service.Stats: reading cache: %v", err), err)
		} else if ok {
			return cached, nil
		}
	}

	stats, err := svc.stats.Stats(ctx, employeeID, day)
	if err != nil {
		return ComplianceStats{}, err
	}
	if svc.cache != nil {
		if err := svc.cache.Set(ctx, key, stats); err != nil {
			svc.logger.Warn(fmt.Sprintf("checklist.Service.Stats: writing cache: %v", err), err)
		}
	}
	return stats, nil
}

func (svc *Service) RecordCompletion(ctx context.Context, actor Actor, req CompletionRequest) (TaskCompletion, error) {
	if err := req.Validate(svc.validate); err != nil {
		return TaskCompletion{}, err
	}
	c, err := svc.ledger.RecordCompletion(ctx, actor, req)
	if err != nil {
		return TaskCompletion{}, err
	}
	svc.invalidateStats(ctx, actor.ID)
	return c, nil
}

func (svc *Service) PatchCompletion(ctx context.Context, actor Actor, patch CompletionPatch) (TaskCompletion, error) {
	if err := patch.Validate(svc.validate); err != nil {
		return TaskCompletion{}, err
	}
	c, employeeID, err := svc.ledger.PatchCompletion(ctx, actor, patch)
	if err != nil {
		return TaskCompletion{}, err
	}
	svc.invalidateStats(ctx, employeeID)
	return c, nil
}

// resolveTarget defaults the employee to the actor & the day to today, then applies the policy.
func (svc *Service) resolveTarget(action Action, actor Actor, employeeID, date string) (string, time.Time, error) {
	employeeID = core.CleanString(employeeID)
	if employeeID == "" {
		employeeID = actor.ID
	}
	if employeeID == "" {
		err := errors.New(errEmptyEmployeeIDMsg)
		return "", time.Time{}, core.NewValidationError(err, core.FieldError{Field: "employee_id", Error: err.Error()})
	}

	day := svc.cal.Today(svc.nowFunc())
	if date = core.CleanString(date); date != "" {
		var err error
		if day, err = svc.cal.ParseDate(date); err != nil {
			return "", time.Time{}, err
		}
	}
	if err := Authorize(action, Resource{OwnerID: employeeID}, actor); err != nil {
		return "", time.Time{}, err
	}
	return employeeID, day, nil
}

// invalidateStats evicts the cached stats of employeeID, or of everyone when employeeID is empty.
func (svc *Service) invalidateStats(ctx context.Context, employeeID string) {
	if svc.cache == nil {
		return
	}
	prefix := statsCachePrefix
	if employeeID != "" {
		prefix += employeeID + ":"
	}
	if err := svc.cache.DeletePrefix(ctx, prefix); err != nil {
		svc.logger.Warn(fmt.Sprintf("checklist.Service.invalidateStats: %v", err), err)
	}
}

func statsCacheKey(employeeID, date string) string {
	return statsCachePrefix + employeeID + ":" + date
}

type (
	assignedTaskData struct {
		Title         string
		Schedule      string
		RequiresPhoto bool
	}

	taskAssignedData struct {
		EmployeeName string
		Tasks        []assignedTaskData
	}
)

func (svc *Service) notifyAssigned(created []TaskAssignment, templates map[string]TaskTemplate, employees map[string]user.User) {
	if svc.mailer == nil || len(created) == 0 {
		return
	}
	tasksByEmployee := make(map[string][]assignedTaskData)
	var order []string
	for _, a := range created {
		tmpl, ok := templates[a.TaskTemplateID]
		if !ok {
			continue
		}
		if _, seen := tasksByEmployee[a.EmployeeID]; !seen {
			order = append(order, a.EmployeeID)
		}
		tasksByEmployee[a.EmployeeID] = append(tasksByEmployee[a.EmployeeID], assignedTaskData{
			Title:         tmpl.Title,
			Schedule:      describeSchedule(tmpl),
			RequiresPhoto: tmpl.RequiresPhoto,
		})
	}

	messages := make([]*core.EmailMessage, 0, len(order))
	for _, empID := range order {
		usr := employees[empID]
		if usr.Email == "" {
			continue
		}
		data := taskAssignedData{EmployeeName: usr.Name, Tasks: tasksByEmployee[empID]}
		to := mail.Address{Name: usr.Name, Address: usr.Email}
		messages = append(messages, core.NewEmailMessage(svc.conf, taskAssignedTemplate, taskAssignedSubject, data, to))
	}
	if len(messages) > 0 {
		svc.mailer.SendMessages(messages...)
	}
}
