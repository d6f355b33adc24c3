package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/youknow/checklist/core/checklist"
)

type checklistApi struct {
	svc checklist.ServiceInterface
}

func registerChecklistAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc checklist.ServiceInterface) {
	api := checklistApi{svc: svc}

	cg := g.Group("/checklist", jwt)

	// employee checklist
	cg.GET("/my-tasks", api.myTasks)
	cg.GET("/stats", api.stats)
	cg.POST("/complete", api.complete)
	cg.PATCH("/complete", api.patchCompletion)

	// templates
	cg.GET("/tasks", api.queryTemplates)
	cg.POST("/tasks", api.createTemplate)
	cg.GET("/tasks/:id", api.retrieveTemplate)
	cg.PATCH("/tasks/:id", api.updateTemplate)
	cg.DELETE("/tasks/:id", api.destroyTemplate)

	// assignments
	cg.GET("/assignments", api.queryAssignments)
	cg.POST("/assignments", api.assign)
	cg.POST("/assignments/bulk", api.bulkAssign)
	cg.DELETE("/assignments", api.destroyAssignments)
	cg.PATCH("/assignments/:id", api.updateAssignment)
}

// DayQuery selects an employee's day; both fields default to the caller & today.
type DayQuery struct {
	Date       string `query:"date"`
	EmployeeID string `query:"employee_id"`
}

// Employee checklist

func (api *checklistApi) myTasks(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var q DayQuery
	if err = ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to DayQuery")
	}

	tasks, err := api.svc.TasksForDate(ctx.Request().Context(), actor, q.EmployeeID, q.Date)
	if err != nil {
		return errors.Wrap(err, "listing daily tasks")
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *checklistApi) stats(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var q DayQuery
	if err = ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to DayQuery")
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), actor, q.EmployeeID, q.Date)
	if err != nil {
		return errors.Wrap(err, "computing compliance stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *checklistApi) complete(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data checklist.CompletionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompletionRequest")
	}

	completion, err := api.svc.RecordCompletion(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "recording completion")
	}
	return ctx.JSON(http.StatusOK, completion)
}

func (api *checklistApi) patchCompletion(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data checklist.CompletionPatch
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompletionPatch")
	}

	completion, err := api.svc.PatchCompletion(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "patching completion")
	}
	return ctx.JSON(http.StatusOK, completion)
}

// Templates

func (api *checklistApi) queryTemplates(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	filter := new(checklist.TemplateFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []checklist.TaskTemplate{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	templates, err := api.svc.QueryTemplates(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying task templates")
	}
	if templates == nil {
		templates = []checklist.TaskTemplate{}
	}
	return ctx.JSON(http.StatusOK, templates)
}

func (api *checklistApi) createTemplate(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data checklist.NewTaskTemplate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTaskTemplate")
	}

	tmpl, err := api.svc.CreateTemplate(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating task template")
	}
	return ctx.JSON(http.StatusCreated, tmpl)
}

func (api *checklistApi) retrieveTemplate(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	tmpl, err := api.svc.GetTemplate(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding task template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *checklistApi) updateTemplate(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data checklist.UpdateTaskTemplate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTaskTemplate")
	}

	tmpl, err := api.svc.UpdateTemplate(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *checklistApi) destroyTemplate(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTemplate(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Assignments

func (api *checklistApi) queryAssignments(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	filter := new(checklist.AssignmentFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []checklist.AssignedTask{})
	}

	assigned, err := api.svc.QueryAssignments(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying task assignments")
	}
	if assigned == nil {
		assigned = []checklist.AssignedTask{}
	}
	return ctx.JSON(http.StatusOK, assigned)
}

func (api *checklistApi) assign(ctx echo.Context) error {
	var data checklist.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	return api.createAssignments(ctx, data.Bulk())
}

func (api *checklistApi) bulkAssign(ctx echo.Context) error {
	var data checklist.NewAssignments
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignments")
	}
	return api.createAssignments(ctx, data)
}

func (api *checklistApi) createAssignments(ctx echo.Context, data checklist.NewAssignments) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	created, err := api.svc.Assign(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "assigning tasks")
	}
	return ctx.JSON(http.StatusCreated, AssignResponse{Created: created, Count: len(created)})
}

func (api *checklistApi) updateAssignment(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data checklist.UpdateAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}

	assignment, err := api.svc.UpdateAssignment(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task assignment")
	}
	return ctx.JSON(http.StatusOK, assignment)
}

func (api *checklistApi) destroyAssignments(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var query DestroyMultipleRequest
	if err = ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}

	deleted, err := api.svc.DeleteAssignments(ctx.Request().Context(), actor, query.IDs...)
	if err != nil {
		return errors.Wrap(err, "deleting task assignments")
	}
	return ctx.JSON(http.StatusOK, DeleteResponse{Deleted: deleted})
}

type (
	AssignResponse struct {
		Created []checklist.TaskAssignment `json:"created"`
		Count   int                        `json:"count"`
	}

	DeleteResponse struct {
		Deleted int `json:"deleted"`
	}
)
