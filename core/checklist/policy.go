package checklist

import (
	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/user"
)

type Action string

const (
	ActionViewTasks         Action = "tasks:view"
	ActionCompleteTask      Action = "tasks:complete"
	ActionPatchCompletion   Action = "completions:patch"
	ActionViewStats         Action = "stats:view"
	ActionManageTemplates   Action = "templates:manage"
	ActionManageAssignments Action = "assignments:manage"
)

// Actor is the authenticated caller.
type Actor struct {
	ID    string
	Roles []string
}

func ActorFromUser(usr user.User) Actor {
	return Actor{ID: usr.ID, Roles: usr.Roles}
}

func (a Actor) IsAdmin() bool    { return user.IsAdmin(a.Roles) }
func (a Actor) IsLeader() bool   { return user.IsLeader(a.Roles) }
func (a Actor) IsEmployee() bool { return user.IsEmployee(a.Roles) }

// Resource is what an action applies to. OwnerID is the employee the resource belongs to, if any.
type Resource struct {
	OwnerID string
}

// Allow is the checklist authorization policy.
func Allow(action Action, res Resource, actor Actor) bool {
	if actor.ID == "" {
		return false
	}
	isOwner := res.OwnerID != "" && res.OwnerID == actor.ID
	switch action {
	case ActionViewTasks, ActionViewStats:
		return isOwner || actor.IsAdmin() || actor.IsLeader()
	case ActionCompleteTask:
		return isOwner && actor.IsEmployee()
	case ActionPatchCompletion:
		return isOwner
	case ActionManageTemplates, ActionManageAssignments:
		return actor.IsAdmin() || actor.IsLeader()
	default:
		return false
	}
}

// Authorize returns core.ErrForbidden unless Allow permits the action.
func Authorize(action Action, res Resource, actor Actor) error {
	if !Allow(action, res, actor) {
		return core.ErrForbidden
	}
	return nil
}
