package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/checklist"
)

type checklistRepository struct {
	db *checklistTables
}

var _ checklist.Repository = (*checklistRepository)(nil) // interface compliance check

func NewChecklistRepository(db *DB) *checklistRepository {
	return &checklistRepository{db: db.checklist}
}

// Templates

func (repo *checklistRepository) CreateTemplate(_ context.Context, tmpl checklist.TaskTemplate) (checklist.TaskTemplate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}
	repo.db.templates[tmpl.ID] = &tmpl
	return tmpl, nil
}

func (repo *checklistRepository) GetTemplate(_ context.Context, id string) (checklist.TaskTemplate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tmpl, ok := repo.db.templates[id]; ok {
		return *tmpl, nil
	}
	return checklist.TaskTemplate{}, checklist.ErrTemplateNotFound
}

func (repo *checklistRepository) QueryTemplates(_ context.Context, filter *checklist.TemplateFilter, ordering []core.DBOrdering) ([]checklist.TaskTemplate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	templates := make([]checklist.TaskTemplate, 0, len(repo.db.templates))
	for _, tmpl := range repo.db.templates {
		if filter == nil || matchTemplate(*tmpl, filter) {
			templates = append(templates, *tmpl)
		}
	}
	sortTemplates(templates, ordering)
	return templates, nil
}

func matchTemplate(tmpl checklist.TaskTemplate, filter *checklist.TemplateFilter) bool {
	if s := strings.ToLower(filter.Search); s != "" &&
		!strings.Contains(strings.ToLower(tmpl.Title), s) &&
		!strings.Contains(strings.ToLower(tmpl.Description), s) &&
		!strings.Contains(strings.ToLower(tmpl.Category), s) {
		return false
	}
	if filter.Frequency != "" && tmpl.Frequency != filter.Frequency {
		return false
	}
	if filter.Category != "" && !strings.EqualFold(tmpl.Category, filter.Category) {
		return false
	}
	if filter.IsActive != nil && tmpl.IsActive != *filter.IsActive {
		return false
	}
	return true
}

func sortTemplates(templates []checklist.TaskTemplate, ordering []core.DBOrdering) {
	ord := core.DBOrdering{Field: "created_at", Ascending: true}
	if len(ordering) > 0 {
		ord = ordering[0]
	}
	less := func(i, j int) bool { return templates[i].CreatedAt.Before(templates[j].CreatedAt) }
	switch ord.Field {
	case "title":
		less = func(i, j int) bool { return templates[i].Title < templates[j].Title }
	case "category":
		less = func(i, j int) bool { return templates[i].Category < templates[j].Category }
	case "frequency":
		less = func(i, j int) bool { return templates[i].Frequency < templates[j].Frequency }
	case "priority":
		less = func(i, j int) bool { return templates[i].Priority < templates[j].Priority }
	case "updated_at":
		less = func(i, j int) bool { return templates[i].UpdatedAt.Before(templates[j].UpdatedAt) }
	}
	sort.SliceStable(templates, func(i, j int) bool {
		if ord.Ascending {
			return less(i, j)
		}
		return less(j, i)
	})
}

func (repo *checklistRepository) UpdateTemplate(_ context.Context, tmpl checklist.TaskTemplate) (checklist.TaskTemplate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.templates[tmpl.ID]; !ok {
		return checklist.TaskTemplate{}, checklist.ErrTemplateNotFound
	}
	repo.db.templates[tmpl.ID] = &tmpl
	return tmpl, nil
}

func (repo *checklistRepository) DeleteTemplate(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.templates[id]; !ok {
		return checklist.ErrTemplateNotFound
	}
	delete(repo.db.templates, id)
	for aID, a := range repo.db.assignments {
		if a.TaskTemplateID == id {
			repo.deleteAssignment(aID)
		}
	}
	return nil
}

// Assignments

func (repo *checklistRepository) CreateAssignments(_ context.Context, assignments []checklist.TaskAssignment) ([]checklist.TaskAssignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	existing := make(map[[2]string]bool, len(repo.db.assignments))
	for _, a := range repo.db.assignments {
		existing[[2]string{a.TaskTemplateID, a.EmployeeID}] = true
	}

	created := make([]checklist.TaskAssignment, 0, len(assignments))
	for _, a := range assignments {
		key := [2]string{a.TaskTemplateID, a.EmployeeID}
		if existing[key] {
			continue
		}
		if _, ok := repo.db.templates[a.TaskTemplateID]; !ok {
			return nil, checklist.ErrTemplateNotFound
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a := a
		repo.db.assignments[a.ID] = &a
		existing[key] = true
		created = append(created, a)
	}
	return created, nil
}

func (repo *checklistRepository) assignedTask(a *checklist.TaskAssignment) (checklist.AssignedTask, bool) {
	tmpl, ok := repo.db.templates[a.TaskTemplateID]
	if !ok {
		return checklist.AssignedTask{}, false
	}
	return checklist.AssignedTask{Assignment: *a, Template: *tmpl}, true
}

func (repo *checklistRepository) GetAssignedTask(_ context.Context, assignmentID string) (checklist.AssignedTask, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assignments[assignmentID]; ok {
		if at, ok := repo.assignedTask(a); ok {
			return at, nil
		}
	}
	return checklist.AssignedTask{}, checklist.ErrAssignmentNotFound
}

func (repo *checklistRepository) queryAssigned(keep func(checklist.AssignedTask) bool) []checklist.AssignedTask {
	tasks := make([]checklist.AssignedTask, 0)
	for _, a := range repo.db.assignments {
		if at, ok := repo.assignedTask(a); ok && keep(at) {
			tasks = append(tasks, at)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		ai, aj := tasks[i].Assignment, tasks[j].Assignment
		if !ai.AssignedAt.Equal(aj.AssignedAt) {
			return ai.AssignedAt.Before(aj.AssignedAt)
		}
		return ai.ID < aj.ID
	})
	return tasks
}

func (repo *checklistRepository) QueryAssignments(_ context.Context, filter *checklist.AssignmentFilter) ([]checklist.AssignedTask, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.queryAssigned(func(at checklist.AssignedTask) bool {
		if filter == nil {
			return true
		}
		if filter.EmployeeID != "" && at.Assignment.EmployeeID != filter.EmployeeID {
			return false
		}
		if filter.TaskTemplateID != "" && at.Assignment.TaskTemplateID != filter.TaskTemplateID {
			return false
		}
		if filter.IsActive != nil && at.Assignment.IsActive != *filter.IsActive {
			return false
		}
		return true
	}), nil
}

func (repo *checklistRepository) ActiveAssignedTasks(_ context.Context, employeeID string) ([]checklist.AssignedTask, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.queryAssigned(func(at checklist.AssignedTask) bool {
		return at.Assignment.EmployeeID == employeeID && at.Assignment.IsActive && at.Template.IsActive
	}), nil
}

func (repo *checklistRepository) UpdateAssignment(_ context.Context, assignment checklist.TaskAssignment) (checklist.TaskAssignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.assignments[assignment.ID]
	if !ok {
		return checklist.TaskAssignment{}, checklist.ErrAssignmentNotFound
	}
	a.IsActive = assignment.IsActive
	return *a, nil
}

func (repo *checklistRepository) DeleteAssignments(_ context.Context, ids []string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.assignments[id]; ok {
			repo.deleteAssignment(id)
			deleted++
		}
	}
	return deleted, nil
}

// deleteAssignment removes an assignment & its completions. The caller holds the write lock.
func (repo *checklistRepository) deleteAssignment(id string) {
	delete(repo.db.assignments, id)
	for cID, c := range repo.db.completions {
		if c.AssignmentID == id {
			delete(repo.db.completions, cID)
		}
	}
}

// Completions

func (repo *checklistRepository) GetCompletion(_ context.Context, id string) (checklist.TaskCompletion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.completions[id]; ok {
		return *c, nil
	}
	return checklist.TaskCompletion{}, checklist.ErrCompletionNotFound
}

func (repo *checklistRepository) findCompletion(assignmentID string, from, to time.Time) *checklist.TaskCompletion {
	for _, c := range repo.db.completions {
		if c.AssignmentID == assignmentID && !c.ScheduledDate.Before(from) && c.ScheduledDate.Before(to) {
			return c
		}
	}
	return nil
}

func (repo *checklistRepository) FindCompletion(_ context.Context, assignmentID string, from, to time.Time) (checklist.TaskCompletion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c := repo.findCompletion(assignmentID, from, to); c != nil {
		return *c, nil
	}
	return checklist.TaskCompletion{}, checklist.ErrCompletionNotFound
}

func (repo *checklistRepository) QueryCompletions(_ context.Context, filter checklist.CompletionFilter) ([]checklist.TaskCompletion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make(map[string]bool, len(filter.AssignmentIDs))
	for _, id := range filter.AssignmentIDs {
		ids[id] = true
	}
	completions := make([]checklist.TaskCompletion, 0)
	for _, c := range repo.db.completions {
		if len(ids) > 0 && !ids[c.AssignmentID] {
			continue
		}
		if !filter.From.IsZero() && c.ScheduledDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !c.ScheduledDate.Before(filter.To) {
			continue
		}
		completions = append(completions, *c)
	}
	sort.Slice(completions, func(i, j int) bool {
		ci, cj := completions[i], completions[j]
		if !ci.ScheduledDate.Equal(cj.ScheduledDate) {
			return ci.ScheduledDate.Before(cj.ScheduledDate)
		}
		return ci.AssignmentID < cj.AssignmentID
	})
	return completions, nil
}

func (repo *checklistRepository) UpsertCompletion(_ context.Context, c checklist.TaskCompletion) (checklist.TaskCompletion, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[c.AssignmentID]; !ok {
		return checklist.TaskCompletion{}, checklist.ErrAssignmentNotFound
	}
	if existing := repo.findCompletion(c.AssignmentID, c.ScheduledDate, c.ScheduledDate.Add(time.Nanosecond)); existing != nil {
		existing.Status = c.Status
		existing.CompletedAt = c.CompletedAt
		if c.PhotoURL != "" {
			existing.PhotoURL = c.PhotoURL
		}
		if c.PhotoPublicID != "" {
			existing.PhotoPublicID = c.PhotoPublicID
		}
		if c.Notes != "" {
			existing.Notes = c.Notes
		}
		return *existing, nil
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	repo.db.completions[c.ID] = &c
	return c, nil
}

func (repo *checklistRepository) UpdateCompletion(_ context.Context, c checklist.TaskCompletion) (checklist.TaskCompletion, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	existing, ok := repo.db.completions[c.ID]
	if !ok {
		return checklist.TaskCompletion{}, checklist.ErrCompletionNotFound
	}
	existing.PhotoURL = c.PhotoURL
	existing.PhotoPublicID = c.PhotoPublicID
	existing.Notes = c.Notes
	return *existing, nil
}
