package checklist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/user"
)

func TestAllow(t *testing.T) {
	employee := Actor{ID: "emp", Roles: []string{user.RoleEmployee}}
	other := Actor{ID: "other", Roles: []string{user.RoleEmployee}}
	leader := Actor{ID: "lead", Roles: []string{user.RoleLeader}}
	admin := Actor{ID: "admin", Roles: []string{user.RoleAdminOwner}}
	noRole := Actor{ID: "emp"}
	anonymous := Actor{Roles: []string{user.RoleAdmin}}
	owned := Resource{OwnerID: "emp"}

	tests := []struct {
		name   string
		action Action
		res    Resource
		actor  Actor
		want   bool
	}{
		{"owner views tasks", ActionViewTasks, owned, employee, true},
		{"other employee cannot view tasks", ActionViewTasks, owned, other, false},
		{"leader views tasks", ActionViewTasks, owned, leader, true},
		{"admin views stats", ActionViewStats, owned, admin, true},
		{"other employee cannot view stats", ActionViewStats, owned, other, false},
		{"employee completes own task", ActionCompleteTask, owned, employee, true},
		{"owner without employee role cannot complete", ActionCompleteTask, owned, noRole, false},
		{"admin cannot complete for someone", ActionCompleteTask, owned, admin, false},
		{"owner patches completion", ActionPatchCompletion, owned, employee, true},
		{"leader cannot patch completion", ActionPatchCompletion, owned, leader, false},
		{"leader manages templates", ActionManageTemplates, Resource{}, leader, true},
		{"employee cannot manage templates", ActionManageTemplates, Resource{}, employee, false},
		{"admin manages assignments", ActionManageAssignments, Resource{}, admin, true},
		{"employee cannot manage assignments", ActionManageAssignments, Resource{}, employee, false},
		{"anonymous is denied", ActionManageTemplates, Resource{}, anonymous, false},
		{"empty owner matches nobody", ActionPatchCompletion, Resource{}, Actor{ID: "x"}, false},
		{"unknown action", Action("tasks:delete"), owned, admin, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allow(tt.action, tt.res, tt.actor))
			err := Authorize(tt.action, tt.res, tt.actor)
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, core.ErrForbidden, err)
			}
		})
	}
}
