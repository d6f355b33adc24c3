package checklist_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/checklist"
	"github.com/youknow/checklist/core/user"
	cachesvc "github.com/youknow/checklist/services/cache"
	emailsvc "github.com/youknow/checklist/services/email"
	logsvc "github.com/youknow/checklist/services/logger"
	inmemdb "github.com/youknow/checklist/storage/database/inmem"
	"github.com/youknow/checklist/testutil"
)

var (
	monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	ctx    = context.Background()
)

type fixture struct {
	svc     *checklist.Service
	repo    checklist.Repository
	usrRepo user.Repository
	mailer  *emailsvc.ConsoleServiceMock
	cache   *cachesvc.MemoryCache
	now     time.Time

	employee, other, leader, admin user.User
}

func (f *fixture) at(t time.Time) { f.now = t }

func actor(usr user.User) checklist.Actor { return checklist.ActorFromUser(usr) }

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := testutil.NewConfig()
	logger := logsvc.NewTestLogger(conf)
	core.ParseEmailTemplates(logger)
	validate, _ := testutil.NewValidator()

	db := inmemdb.Open()
	f := &fixture{
		repo:    inmemdb.NewChecklistRepository(db),
		usrRepo: inmemdb.NewUserRepository(db),
		mailer:  emailsvc.NewConsoleServiceMock(conf, logger),
		cache:   cachesvc.NewMemoryCache(),
		now:     monday.Add(8 * time.Hour),
	}
	usrSvc := user.NewService(f.usrRepo)
	f.svc = checklist.NewService(f.repo, usrSvc, f.mailer, logger, validate, conf,
		checklist.WithClock(func() time.Time { return f.now }),
		checklist.WithCache(f.cache),
	)

	f.employee = testutil.CreateUser(t, f.usrRepo, "Jane Doe", "jane", "jane@test.cd", "", []string{user.RoleEmployee}, true)
	f.other = testutil.CreateUser(t, f.usrRepo, "John Doe", "john", "john@test.cd", "", []string{user.RoleEmployee}, true)
	f.leader = testutil.CreateUser(t, f.usrRepo, "Lead", "lead", "lead@test.cd", "", []string{user.RoleLeader}, true)
	f.admin = testutil.CreateUser(t, f.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	return f
}

// openingTask is due on mondays at 09:00 and requires a photo.
func (f *fixture) openingTask(t *testing.T) (checklist.TaskTemplate, checklist.TaskAssignment) {
	tmpl := testutil.CreateTemplate(t, f.repo, checklist.TaskTemplate{
		Title:         "Open the store",
		Frequency:     checklist.FrequencyWeekly,
		ScheduledDay:  testutil.IntPtr(1),
		ScheduledTime: "09:00",
		RequiresPhoto: true,
		Priority:      checklist.PriorityHigh,
		IsActive:      true,
	})
	return tmpl, testutil.Assign(t, f.repo, tmpl.ID, f.employee.ID)
}

func (f *fixture) completions(t *testing.T, assignmentID string) []checklist.TaskCompletion {
	completions, err := f.repo.QueryCompletions(ctx, checklist.CompletionFilter{AssignmentIDs: []string{assignmentID}})
	require.NoError(t, err)
	return completions
}

func TestService_RecordCompletion(t *testing.T) {
	tests := []struct {
		name       string
		at         time.Time
		wantOnTime bool
	}{
		{"within grace period", monday.Add(9*time.Hour + 20*time.Minute), true},
		{"after grace period", monday.Add(9*time.Hour + 35*time.Minute), false},
		{"early", monday.Add(7 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			_, a := f.openingTask(t)
			f.at(tt.at)

			c, err := f.svc.RecordCompletion(ctx, actor(f.employee), checklist.CompletionRequest{
				AssignmentID: a.ID,
				PhotoURL:     "https://cdn.test.cd/photo.jpg",
			})
			require.NoError(t, err)
			assert.NotEmpty(t, c.ID)
			assert.Equal(t, checklist.StatusCompleted, c.Status)
			assert.Equal(t, tt.wantOnTime, c.CompletedOnTime)
			assert.Equal(t, monday, c.ScheduledDate)
			assert.Equal(t, tt.at.UTC(), c.CompletedAt)
			assert.Len(t, f.completions(t, a.ID), 1)
		})
	}
}

func TestService_RecordCompletion_photoRequired(t *testing.T) {
	f := setup(t)
	_, a := f.openingTask(t)
	f.at(monday.Add(9 * time.Hour))

	_, err := f.svc.RecordCompletion(ctx, actor(f.employee), checklist.CompletionRequest{AssignmentID: a.ID, Notes: "done"})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	vErr := err.(*core.ValidationError)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "photo_url", vErr.Fields[0].Field)
	assert.Empty(t, f.completions(t, a.ID))
}

func TestService_RecordCompletion_resubmission(t *testing.T) {
	f := setup(t)
	_, a := f.openingTask(t)
	req := checklist.CompletionRequest{AssignmentID: a.ID, PhotoURL: "https://cdn.test.cd/1.jpg", PhotoPublicID: "p1", Notes: "first"}

	f.at(monday.Add(9 * time.Hour))
	first, err := f.svc.RecordCompletion(ctx, actor(f.employee), req)
	require.NoError(t, err)
	require.True(t, first.CompletedOnTime)

	// later the same day, without photo: the first photo still stands
	second := monday.Add(11 * time.Hour)
	f.at(second)
	c, err := f.svc.RecordCompletion(ctx, actor(f.employee), checklist.CompletionRequest{AssignmentID: a.ID, Notes: "second"})
	require.NoError(t, err)

	stored := f.completions(t, a.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, first.ID, c.ID)
	assert.Equal(t, second, stored[0].CompletedAt)
	assert.Equal(t, "https://cdn.test.cd/1.jpg", stored[0].PhotoURL)
	assert.Equal(t, "p1", stored[0].PhotoPublicID)
	assert.Equal(t, "second", stored[0].Notes)
	assert.True(t, stored[0].CompletedOnTime)
}

func TestService_RecordCompletion_backfill(t *testing.T) {
	f := setup(t)
	_, a := f.openingTask(t)
	f.at(monday.AddDate(0, 0, 2).Add(8 * time.Hour))

	c, err := f.svc.RecordCompletion(ctx, actor(f.employee), checklist.CompletionRequest{
		AssignmentID:  a.ID,
		PhotoURL:      "https://cdn.test.cd/1.jpg",
		ScheduledDate: "2024-03-04",
	})
	require.NoError(t, err)
	assert.Equal(t, monday, c.ScheduledDate)
	assert.False(t, c.CompletedOnTime)
}

func TestService_RecordCompletion_errors(t *testing.T) {
	f := setup(t)
	_, a := f.openingTask(t)
	inactiveTmpl := testutil.CreateTemplate(t, f.repo, checklist.TaskTemplate{Title: "Old", IsActive: false})
	inactive := testutil.Assign(t, f.repo, inactiveTmpl.ID, f.employee.ID)
	photo := "https://cdn.test.cd/1.jpg"

	tests := []struct {
		name    string
		actor   checklist.Actor
		req     checklist.CompletionRequest
		checkFn func(error) bool
	}{
		{"missing assignment id", actor(f.employee), checklist.CompletionRequest{PhotoURL: photo}, func(err error) bool {
			_, ok := err.(validator.ValidationErrors)
			return ok
		}},
		{"unknown assignment", actor(f.employee), checklist.CompletionRequest{AssignmentID: "nope", PhotoURL: photo}, core.IsNotFound},
		{"not the owner", actor(f.other), checklist.CompletionRequest{AssignmentID: a.ID, PhotoURL: photo}, func(err error) bool {
			return err == core.ErrForbidden
		}},
		{"leader cannot complete", actor(f.leader), checklist.CompletionRequest{AssignmentID: a.ID, PhotoURL: photo}, func(err error) bool {
			return err == core.ErrForbidden
		}},
		{"inactive template", actor(f.employee), checklist.CompletionRequest{AssignmentID: inactive.ID}, core.IsValidation},
		{"malformed date", actor(f.employee), checklist.CompletionRequest{AssignmentID: a.ID, PhotoURL: photo, ScheduledDate: "03/04/2024"}, core.IsValidation},
		{"malformed photo url", actor(f.employee), checklist.CompletionRequest{AssignmentID: a.ID, PhotoURL: "not a url"}, func(err error) bool {
			_, ok := err.(validator.ValidationErrors)
			return ok
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordCompletion(ctx, tt.actor, tt.req)
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}
	assert.Empty(t, f.completions(t, a.ID))
	assert.Empty(t, f.completions(t, inactive.ID))
}

func TestService_PatchCompletion(t *testing.T) {
	f := setup(t)
	_, a := f.openingTask(t)
	f.at(monday.Add(9 * time.Hour))
	c, err := f.svc.RecordCompletion(ctx, actor(f.employee), checklist.CompletionRequest{AssignmentID: a.ID, PhotoURL: "https://cdn.test.cd/1.jpg"})
	require.NoError(t, err)

	f.at(monday.Add(15 * time.Hour))
	patched, err := f.svc.PatchCompletion(ctx, actor(f.employee), checklist.CompletionPatch{
		CompletionID: c.ID,
		PhotoURL:     testutil.StrPtr("https://cdn.test.cd/2.jpg"),
		Notes:        testutil.StrPtr("  replaced the photo "),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test.cd/2.jpg", patched.PhotoURL)
	assert.Equal(t, "replaced the photo", patched.Notes)
	assert.Equal(t, c.CompletedAt, patched.CompletedAt)
	assert.Equal(t, c.CompletedOnTime, patched.CompletedOnTime)
	assert.Equal(t, c.ScheduledDate, patched.ScheduledDate)
	assert.Equal(t, checklist.StatusCompleted, patched.Status)

	_, err = f.svc.PatchCompletion(ctx, actor(f.employee), checklist.CompletionPatch{CompletionID: c.ID, PhotoURL: testutil.StrPtr("")})
	assert.True(t, core.IsValidation(err))

	_, err = f.svc.PatchCompletion(ctx, actor(f.other), checklist.CompletionPatch{CompletionID: c.ID, Notes: testutil.StrPtr("x")})
	assert.Equal(t, core.ErrForbidden, err)

	_, err = f.svc.PatchCompletion(ctx, actor(f.employee), checklist.CompletionPatch{CompletionID: "nope", Notes: testutil.StrPtr("x")})
	assert.True(t, core.IsNotFound(err))
}

func TestService_TasksForDate(t *testing.T) {
	f := setup(t)
	daily := testutil.CreateTemplate(t, f.repo, checklist.TaskTemplate{Title: "Sweep", Frequency: checklist.FrequencyDaily, Priority: checklist.PriorityMedium, IsActive: true})
	weekly := testutil.CreateTemplate(t, f.repo, checklist.TaskTemplate{
		Title: "Count stock", Frequency: checklist.FrequencyWeekly, ScheduledDay: testutil.IntPtr(1),
		ScheduledTime: "08:00", Priority: checklist.PriorityHigh, IsActive: true,
	})
	da := testutil.Assign(t, f.repo, daily.ID, f.employee.ID)
	testutil.Assign(t, f.repo, weekly.ID, f.employee.ID)
	testutil.Assign(t, f.repo, daily.ID, f.other.ID)

	f.at(monday.Add(10 * time.Hour))
	_, err := f.svc.RecordCompletion(ctx, actor(f.employee), checklist.CompletionRequest{AssignmentID: da.ID})
	require.NoError(t, err)

	got, err := f.svc.TasksForDate(ctx, actor(f.employee), "", "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", got.Date)
	require.Len(t, got.Tasks, 2)
	assert.Equal(t, "Count stock", got.Tasks[0].Title)
	assert.Equal(t, checklist.StatusPending, got.Tasks[0].Status)
	assert.Equal(t, "Sweep", got.Tasks[1].Title)
	assert.Equal(t, checklist.StatusCompleted, got.Tasks[1].Status)
	assert.Equal(t, checklist.Summary{Total: 2, Completed: 1, Pending: 1}, got.Summary)

	// tuesday: only the daily task, not completed yet
	got, err = f.svc.TasksForDate(ctx, actor(f.employee), "", "2024-03-05")
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, checklist.Summary{Total: 1, Completed: 0, Pending: 1}, got.Summary)

	// leaders may look at anyone's list
	got, err = f.svc.TasksForDate(ctx, actor(f.leader), f.employee.ID, "2024-03-04")
	require.NoError(t, err)
	assert.Len(t, got.Tasks, 2)

	_, err = f.svc.TasksForDate(ctx, actor(f.other), f.employee.ID, "")
	assert.Equal(t, core.ErrForbidden, err)

	_, err = f.svc.TasksForDate(ctx, actor(f.employee), "", "2024-13-01")
	assert.True(t, core.IsValidation(err))
}

func TestService_Stats(t *testing.T) {
	f := setup(t)
	daily := testutil.CreateTemplate(t, f.repo, checklist.TaskTemplate{Title: "Sweep", Frequency: checklist.FrequencyDaily, ScheduledTime: "09:00", IsActive: true})
	da := testutil.Assign(t, f.repo, daily.ID, f.employee.ID)

	// sunday on time, monday late
	f.at(monday.AddDate(0, 0, -1).Add(9 * time.Hour))
	_, err := f.svc.RecordCompletion(ctx, actor(f.employee), checklist.CompletionRequest{AssignmentID: da.ID})
	require.NoError(t, err)
	f.at(monday.Add(12 * time.Hour))
	_, err = f.svc.RecordCompletion(ctx, actor(f.employee), checklist.CompletionRequest{AssignmentID: da.ID})
	require.NoError(t, err)

	f.at(monday.AddDate(0, 0, 1).Add(8 * time.Hour)) // tuesday, not done yet
	stats, err := f.svc.Stats(ctx, actor(f.employee), "", "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", stats.Date)
	assert.Equal(t, checklist.DailyStats{Total: 1, Completed: 0, Pending: 1, Compliance: 0}, stats.Daily)
	assert.Equal(t, 3, stats.Weekly.Expected)
	assert.Equal(t, 2, stats.Weekly.TotalCompleted)
	assert.Equal(t, 67, stats.Weekly.Compliance)
	assert.Equal(t, 5, stats.Monthly.Expected)
	assert.Equal(t, 2, stats.Monthly.TotalCompleted)
	assert.Equal(t, 40, stats.Monthly.Compliance)
	assert.Equal(t, 50, stats.OnTimeRate)
	assert.Equal(t, 1, f.cache.Len())

	// cached until the next completion
	cached, err := f.svc.Stats(ctx, actor(f.employee), "", "")
	require.NoError(t, err)
	assert.Equal(t, stats, cached)

	_, err = f.svc.RecordCompletion(ctx, actor(f.employee), checklist.CompletionRequest{AssignmentID: da.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, f.cache.Len())

	stats, err = f.svc.Stats(ctx, actor(f.employee), "", "")
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Daily.Compliance)

	_, err = f.svc.Stats(ctx, actor(f.other), f.employee.ID, "")
	assert.Equal(t, core.ErrForbidden, err)

	_, err = f.svc.Stats(ctx, actor(f.admin), f.employee.ID, "")
	assert.NoError(t, err)
}

func TestService_templates(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateTemplate(ctx, actor(f.employee), checklist.NewTaskTemplate{Title: "x", Frequency: checklist.FrequencyDaily})
	assert.Equal(t, core.ErrForbidden, err)

	invalid := []checklist.NewTaskTemplate{
		{Frequency: checklist.FrequencyDaily},
		{Title: "x", Frequency: "yearly"},
		{Title: "x", Frequency: checklist.FrequencyWeekly, ScheduledDay: testutil.IntPtr(7)},
		{Title: "x", Frequency: checklist.FrequencyMonthly, ScheduledDay: testutil.IntPtr(0)},
		{Title: "x", Frequency: checklist.FrequencyDaily, ScheduledTime: "9h00"},
		{Title: "x", Frequency: checklist.FrequencyDaily, Priority: "urgent"},
	}
	for _, nt := range invalid {
		_, err = f.svc.CreateTemplate(ctx, actor(f.leader), nt)
		assert.IsType(t, validator.ValidationErrors{}, err, "%+v", nt)
	}

	tmpl, err := f.svc.CreateTemplate(ctx, actor(f.leader), checklist.NewTaskTemplate{
		Title:        "  Clean  ",
		Frequency:    "DAILY",
		ScheduledDay: testutil.IntPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "Clean", tmpl.Title)
	assert.Equal(t, checklist.FrequencyDaily, tmpl.Frequency)
	assert.Nil(t, tmpl.ScheduledDay)
	assert.Equal(t, checklist.PriorityMedium, tmpl.Priority)
	assert.True(t, tmpl.IsActive)
	assert.Equal(t, f.leader.ID, tmpl.CreatedBy)

	weekly := checklist.FrequencyWeekly
	var ut checklist.UpdateTaskTemplate
	require.NoError(t, json.Unmarshal([]byte(`{"frequency": "weekly", "scheduled_day": 9}`), &ut))
	_, err = f.svc.UpdateTemplate(ctx, actor(f.admin), tmpl.ID, ut)
	assert.IsType(t, validator.ValidationErrors{}, err)

	updated, err := f.svc.UpdateTemplate(ctx, actor(f.admin), tmpl.ID, checklist.UpdateTaskTemplate{
		Frequency:    &weekly,
		ScheduledDay: checklist.OptionalInt{Set: true, Value: testutil.IntPtr(5)},
		IsActive:     testutil.BoolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Clean", updated.Title)
	assert.Equal(t, checklist.FrequencyWeekly, updated.Frequency)
	require.NotNil(t, updated.ScheduledDay)
	assert.Equal(t, 5, *updated.ScheduledDay)
	assert.False(t, updated.IsActive)

	ut = checklist.UpdateTaskTemplate{}
	require.NoError(t, json.Unmarshal([]byte(`{"scheduled_day": null}`), &ut))
	updated, err = f.svc.UpdateTemplate(ctx, actor(f.admin), tmpl.ID, ut)
	require.NoError(t, err)
	assert.Nil(t, updated.ScheduledDay)

	templates, err := f.svc.QueryTemplates(ctx, actor(f.leader), &checklist.TemplateFilter{IsActive: testutil.BoolPtr(false)}, nil)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	_, err = f.svc.UpdateTemplate(ctx, actor(f.admin), "nope", ut)
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, f.svc.DeleteTemplate(ctx, actor(f.admin), tmpl.ID))
	_, err = f.svc.GetTemplate(ctx, actor(f.admin), tmpl.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Assign(t *testing.T) {
	f := setup(t)
	t1 := testutil.CreateTemplate(t, f.repo, checklist.TaskTemplate{Title: "Open", Frequency: checklist.FrequencyWeekly, ScheduledDay: testutil.IntPtr(1), ScheduledTime: "09:00", RequiresPhoto: true, IsActive: true})
	t2 := testutil.CreateTemplate(t, f.repo, checklist.TaskTemplate{Title: "Close", IsActive: true})
	testutil.Assign(t, f.repo, t1.ID, f.employee.ID)

	_, err := f.svc.Assign(ctx, actor(f.employee), checklist.NewAssignments{TaskTemplateIDs: []string{t1.ID}, EmployeeIDs: []string{f.employee.ID}})
	assert.Equal(t, core.ErrForbidden, err)

	created, err := f.svc.Assign(ctx, actor(f.leader), checklist.NewAssignments{
		TaskTemplateIDs: []string{t1.ID, t2.ID, t2.ID},
		EmployeeIDs:     []string{f.employee.ID, f.other.ID},
	})
	require.NoError(t, err)
	assert.Len(t, created, 3) // (t1, employee) already existed

	assigned, err := f.svc.QueryAssignments(ctx, actor(f.leader), &checklist.AssignmentFilter{EmployeeID: f.employee.ID})
	require.NoError(t, err)
	assert.Len(t, assigned, 2)

	sent := f.mailer.SentMessages()
	require.Len(t, sent, 2)
	for _, msg := range sent {
		require.Len(t, msg.To, 1)
		switch msg.To[0].Address {
		case f.employee.Email:
			assert.Contains(t, msg.TextContent, "Close (every day)")
			assert.NotContains(t, msg.TextContent, "Open (")
		case f.other.Email:
			assert.Contains(t, msg.TextContent, "Open (every Monday at 09:00) - photo required")
			assert.Contains(t, msg.TextContent, "Close (every day)")
		default:
			t.Errorf("unexpected recipient %v", msg.To[0])
		}
	}

	_, err = f.svc.Assign(ctx, actor(f.admin), checklist.NewAssignments{TaskTemplateIDs: []string{t1.ID}, EmployeeIDs: []string{f.leader.ID}})
	assert.True(t, core.IsValidation(err))

	_, err = f.svc.Assign(ctx, actor(f.admin), checklist.NewAssignments{TaskTemplateIDs: []string{"nope"}, EmployeeIDs: []string{f.employee.ID}})
	assert.True(t, core.IsNotFound(err))

	_, err = f.svc.Assign(ctx, actor(f.admin), checklist.NewAssignments{EmployeeIDs: []string{f.employee.ID}})
	assert.IsType(t, validator.ValidationErrors{}, err)

	updated, err := f.svc.UpdateAssignment(ctx, actor(f.admin), assigned[0].Assignment.ID, checklist.UpdateAssignment{IsActive: testutil.BoolPtr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	n, err := f.svc.DeleteAssignments(ctx, actor(f.admin), assigned[0].Assignment.ID, assigned[1].Assignment.ID, "nope")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
