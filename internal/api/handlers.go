package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"taskdesk/internal/auth"
	"taskdesk/internal/store"
	"taskdesk/internal/task"
	"taskdesk/internal/upload"
	"taskdesk/internal/user"
)

const dateLayout = "2006-01-02"

// TaskAPI exposes the task lifecycle over HTTP. Create and improve requests
// run the ingestion pipeline before the lifecycle transition; a transition
// failure discards the files the pipeline just committed.
type TaskAPI struct {
	svc      *task.Service
	pipeline *upload.Pipeline
	users    store.UserStore
	now      func() time.Time
}

func NewTaskAPI(svc *task.Service, pipeline *upload.Pipeline, users store.UserStore) *TaskAPI {
	return &TaskAPI{svc: svc, pipeline: pipeline, users: users, now: time.Now}
}

// RegisterRoutes mounts the task routes behind the authentication middleware.
func (a *TaskAPI) RegisterRoutes(router *gin.Engine, authenticate gin.HandlerFunc) {
	assigners := auth.RequireRole(user.RoleManager, user.RoleAManager, user.RoleLeader)

	tasks := router.Group("/api/tasks")
	tasks.Use(authenticate)
	{
		tasks.POST("", assigners, a.CreateTask)
		tasks.GET("", a.ListTasks)
		tasks.GET("/stats", a.GetStats)
		tasks.GET("/:id", a.GetTask)
		tasks.PUT("/:id/improve", a.ImproveTask)
		tasks.PUT("/:id/review", assigners, a.ReviewTask)
	}
}

// CreateTask opens a new task from a multipart request carrying the task
// fields plus optional beforeImage and attachedFile uploads.
func (a *TaskAPI) CreateTask(c *gin.Context) {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	in := task.CreateInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Department:  c.PostForm("department"),
		Position:    c.PostForm("position"),
		Assignee:    c.PostForm("assignee"),
	}
	var err error
	if in.StartDate, err = parseDate(c.PostForm("startDate")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date"})
		return
	}
	if in.DueDate, err = parseDate(c.PostForm("dueDate")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due date"})
		return
	}

	res, err := a.pipeline.Process(c.Request.Context(), formFiles(c))
	if err != nil {
		a.fail(c, actor, err)
		return
	}
	in.BeforeImage = res.BeforeImage
	in.AttachedFiles = res.AttachedFiles

	created, err := a.svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		res.Discard()
		a.fail(c, actor, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": a.view(c, created)})
}

func (a *TaskAPI) ListTasks(c *gin.Context) {
	tasks, err := a.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	refs := a.userIndex(c)
	now := a.now()
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, newTaskView(t, now, refs[t.AssignedBy], refs[t.Assignee]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": views})
}

func (a *TaskAPI) GetTask(c *gin.Context) {
	t, err := a.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		actor, _ := auth.CurrentUser(c)
		a.fail(c, actor, err)
		return
	}
	c.JSON(http.StatusOK, a.view(c, t))
}

// ImproveTask submits completion evidence. The deadline and assignee gates
// run before the ingestion pipeline so a doomed request processes no files.
func (a *TaskAPI) ImproveTask(c *gin.Context) {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id := c.Param("id")

	if _, err := a.svc.Improvable(c.Request.Context(), id, actor); err != nil {
		a.fail(c, actor, err)
		return
	}

	res, err := a.pipeline.Process(c.Request.Context(), formFiles(c))
	if err != nil {
		a.fail(c, actor, err)
		return
	}

	updated, err := a.svc.Improve(c.Request.Context(), id, actor, task.ImproveInput{
		Note:           c.PostForm("improveNote"),
		AfterImage:     res.AfterImage,
		CompletedFiles: res.CompletedFiles,
	})
	if err != nil {
		res.Discard()
		a.fail(c, actor, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": a.view(c, updated)})
}

type reviewRequest struct {
	Status     string `json:"status"`
	ReviewNote string `json:"review_note"`
}

func (a *TaskAPI) ReviewTask(c *gin.Context) {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	updated, err := a.svc.Review(c.Request.Context(), c.Param("id"), actor, task.ReviewInput{
		Status: task.Status(req.Status),
		Note:   req.ReviewNote,
	})
	if err != nil {
		a.fail(c, actor, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": a.view(c, updated)})
}

func (a *TaskAPI) GetStats(c *gin.Context) {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	report, err := a.svc.Stats(c.Request.Context(), actor, task.StatsQuery{
		Period: c.Query("period"),
		Group:  c.Query("group"),
		UserID: c.Query("userId"),
	})
	if err != nil {
		a.fail(c, actor, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

// userRef is the public shape of a task participant.
type userRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}

// taskView decorates a task with the derived overdue flag and resolved
// participant names. The outer fields override the embedded id strings.
type taskView struct {
	*task.Task
	IsOverdue  bool    `json:"is_overdue"`
	AssignedBy userRef `json:"assigned_by"`
	Assignee   userRef `json:"assignee"`
}

func newTaskView(t *task.Task, now time.Time, assignedBy, assignee userRef) taskView {
	return taskView{
		Task:       t,
		IsOverdue:  t.IsOverdue(now),
		AssignedBy: assignedBy,
		Assignee:   assignee,
	}
}

func (a *TaskAPI) view(c *gin.Context, t *task.Task) taskView {
	return newTaskView(t, a.now(), a.userRef(c, t.AssignedBy), a.userRef(c, t.Assignee))
}

func (a *TaskAPI) userRef(c *gin.Context, id string) userRef {
	u, err := a.users.UserByID(c.Request.Context(), id)
	if err != nil {
		return userRef{ID: id}
	}
	return userRef{ID: u.ID, Name: u.Name, Group: u.Group}
}

func (a *TaskAPI) userIndex(c *gin.Context) map[string]userRef {
	refs := make(map[string]userRef)
	users, err := a.users.ListUsers(c.Request.Context())
	if err != nil {
		return refs
	}
	for _, u := range users {
		refs[u.ID] = userRef{ID: u.ID, Name: u.Name, Group: u.Group}
	}
	return refs
}

// formFiles extracts the multipart file map; a non-multipart request simply
// has no files.
func formFiles(c *gin.Context) map[string][]*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// fail maps domain and pipeline errors onto HTTP statuses. Storage failures
// are logged with caller context for operators.
func (a *TaskAPI) fail(c *gin.Context, actor user.User, err error) {
	var storageErr *upload.StorageError
	switch {
	case errors.Is(err, task.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrPastDue):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrNotAssignee),
		errors.Is(err, task.ErrNotEligible),
		errors.Is(err, task.ErrNotAssigner),
		errors.Is(err, task.ErrGroupForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, upload.ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, upload.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, upload.ErrCorruptImage),
		errors.Is(err, upload.ErrTooManyFiles),
		errors.Is(err, upload.ErrUnknownField),
		errors.Is(err, task.ErrNoteRequired),
		errors.Is(err, task.ErrInvalidStatus),
		errors.Is(err, task.ErrAssigneeRequired),
		errors.Is(err, task.ErrAssigneeUnknown),
		errors.Is(err, task.ErrDueBeforeStart),
		errors.Is(err, task.ErrNotInReview),
		errors.Is(err, task.ErrNotImprovable),
		errors.Is(err, task.ErrLeaderNoGroup):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &storageErr):
		log.Error().
			Str("actor", actor.ID).
			Str("op", storageErr.Op).
			Str("path", storageErr.Path).
			Err(storageErr.Err).
			Msg("upload storage failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "file processing failed"})
	default:
		log.Error().Str("actor", actor.ID).Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
