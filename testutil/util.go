// Package testutil gathers helpers shared by the test suites.
package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/checklist"
	"github.com/youknow/checklist/core/user"
)

// NewConfig returns the configuration used by tests.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "Checklist",
		Build:            "test",
		Env:              "TEST",
		Debug:            false,
		TestMode:         true,
		SecretKey:        "test-secret-key",
		DefaultFromEmail: mail.Address{Name: "Checklist", Address: "noreply@test.cd"},
		FrontendBaseURL:  "http://localhost:3000",
		Server: core.ServerConfig{
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        15 * time.Minute,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			DisableReqLogs:            true,
		},
		Database:  core.DatabaseConfig{InMemory: true},
		Checklist: core.ChecklistConfig{Timezone: "UTC", StatsLookbackDays: checklist.DefaultStatsLookbackDays},
	}
}

// NewValidator returns a validator with every app validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	checklist.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateTemplate stores tmpl, defaulting the fields tests rarely care about.
func CreateTemplate(t *testing.T, repo checklist.Repository, tmpl checklist.TaskTemplate) checklist.TaskTemplate {
	t.Helper()
	if tmpl.Title == "" {
		tmpl.Title = "Task"
	}
	if tmpl.Frequency == "" {
		tmpl.Frequency = checklist.FrequencyDaily
	}
	if tmpl.Priority == "" {
		tmpl.Priority = checklist.PriorityMedium
	}
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = time.Now().UTC()
		tmpl.UpdatedAt = tmpl.CreatedAt
	}
	tmpl, err := repo.CreateTemplate(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	return tmpl
}

// Assign assigns the template to the employee.
func Assign(t *testing.T, repo checklist.Repository, templateID, employeeID string, assignedAt ...time.Time) checklist.TaskAssignment {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(assignedAt) > 0 {
		tstamp = assignedAt[0].UTC()
	}
	created, err := repo.CreateAssignments(context.Background(), []checklist.TaskAssignment{{
		TaskTemplateID: templateID,
		EmployeeID:     employeeID,
		IsActive:       true,
		AssignedAt:     tstamp,
	}})
	if err != nil || len(created) != 1 {
		t.Fatalf("Assign() failed: %v (created %d)", err, len(created))
	}
	return created[0]
}

func IntPtr(i int) *int       { return &i }
func BoolPtr(b bool) *bool    { return &b }
func StrPtr(s string) *string { return &s }
