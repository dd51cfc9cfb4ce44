package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/repositories"
)

type TaskHandler struct {
	tasks repositories.TaskRepository
	log   logger.Logger
}

type CreateTaskRequest struct {
	Title       string              `json:"title" binding:"required,max=200" example:"Write release notes"`
	Description string              `json:"description" example:"Cover the API changes"`
	Status      models.TaskStatus   `json:"status" example:"pending"`
	Priority    models.TaskPriority `json:"priority" example:"medium"`
}

type TaskListResponse struct {
	Tasks  []models.Task `json:"tasks"`
	Count  int           `json:"count"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func NewTaskHandler(tasks repositories.TaskRepository, log logger.Logger) *TaskHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &TaskHandler{tasks: tasks, log: log}
}

// parsePage reads limit and offset; limit is capped at models.MaxPageLimit.
func parsePage(c *gin.Context) (models.Page, bool) {
	page := models.Page{Limit: models.DefaultPageLimit}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			badRequest(c, "limit must be a positive integer")
			return page, false
		}
		page.Limit = min(limit, models.MaxPageLimit)
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			badRequest(c, "offset must be a non-negative integer")
			return page, false
		}
		page.Offset = offset
	}

	return page.Normalize(), true
}

func parseTaskFilter(c *gin.Context) (models.TaskFilter, bool) {
	var filter models.TaskFilter

	if raw := c.Query("status"); raw != "" {
		filter.Status = models.TaskStatus(raw)
		if !filter.Status.Valid() {
			badRequest(c, "invalid status filter")
			return filter, false
		}
	}
	if raw := c.Query("priority"); raw != "" {
		filter.Priority = models.TaskPriority(raw)
		if !filter.Priority.Valid() {
			badRequest(c, "invalid priority filter")
			return filter, false
		}
	}

	page, ok := parsePage(c)
	if !ok {
		return filter, false
	}
	filter.Page = page
	return filter, true
}

func taskList(tasks []models.Task, page models.Page) TaskListResponse {
	if tasks == nil {
		tasks = []models.Task{}
	}
	return TaskListResponse{Tasks: tasks, Count: len(tasks), Limit: page.Limit, Offset: page.Offset}
}

// GetTasks godoc
// @Summary      List the caller's tasks
// @Description  Newest first. Filters combine with AND.
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        status    query     string  false  "pending, in_progress or completed"
// @Param        priority  query     string  false  "low, medium or high"
// @Param        limit     query     int     false  "Page size (default 50, max 100)"
// @Param        offset    query     int     false  "Rows to skip"
// @Success      200       {object}  TaskListResponse
// @Failure      400       {object}  ErrorResponse
// @Router       /tasks [get]
func (h *TaskHandler) GetTasks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	filter, ok := parseTaskFilter(c)
	if !ok {
		return
	}

	tasks, err := h.tasks.FindByUserID(c.Request.Context(), userID, filter)
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.JSON(http.StatusOK, taskList(tasks, filter.Page))
}

// CreateTask godoc
// @Summary      Create a task owned by the caller
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateTaskRequest  true  "Task"
// @Success      201      {object}  models.Task
// @Failure      400      {object}  ErrorResponse
// @Router       /tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), models.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		UserID:      userID,
	})
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetTaskStats godoc
// @Summary      Counts of the caller's tasks by status and priority
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.TaskStats
// @Router       /tasks/stats [get]
func (h *TaskHandler) GetTaskStats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.tasks.GetTaskStats(c.Request.Context(), userID)
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// SearchTasks godoc
// @Summary      Case-insensitive substring search over title and description
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        q       query     string  true   "Search term"
// @Param        limit   query     int     false  "Page size (default 50, max 100)"
// @Param        offset  query     int     false  "Rows to skip"
// @Success      200     {object}  TaskListResponse
// @Failure      400     {object}  ErrorResponse
// @Router       /tasks/search [get]
func (h *TaskHandler) SearchTasks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	term, page, ok := parseSearch(c)
	if !ok {
		return
	}

	tasks, err := h.tasks.SearchTasks(c.Request.Context(), userID, term, page)
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.JSON(http.StatusOK, taskList(tasks, page))
}

func parseSearch(c *gin.Context) (string, models.Page, bool) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		badRequest(c, "search term q is required")
		return "", models.Page{}, false
	}
	page, ok := parsePage(c)
	return term, page, ok
}

// GetTaskByID godoc
// @Summary      Fetch one of the caller's tasks
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  models.Task
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	task, err := h.tasks.FindByID(c.Request.Context(), id)
	if err == nil && task.UserID != userID {
		err = repositories.ErrNotFoundOrForbidden
	}
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// UpdateTask godoc
// @Summary      Update title, description, status or priority
// @Description  Unknown fields are ignored; ownership cannot change.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                     true  "Task ID"
// @Param        request  body      map[string]interface{}  true  "Fields to change"
// @Success      200      {object}  models.Task
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err.Error())
		return
	}

	task, err := h.tasks.UpdateByID(c.Request.Context(), id, userID, fields)
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary      Delete one of the caller's tasks
// @Tags         tasks
// @Security     BearerAuth
// @Param        id   path  int  true  "Task ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	removed, err := h.tasks.DeleteByID(c.Request.Context(), id, userID)
	if err == nil && !removed {
		err = repositories.ErrNotFoundOrForbidden
	}
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.Status(http.StatusNoContent)
}
