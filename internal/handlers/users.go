package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/repositories"
)

// AdminHandler serves the /admin routes. Every task operation here is unscoped.
type AdminHandler struct {
	users repositories.UserRepository
	tasks repositories.TaskRepository
	log   logger.Logger
}

type UserListResponse struct {
	Users []models.User `json:"users"`
	Count int           `json:"count"`
}

func NewAdminHandler(users repositories.UserRepository, tasks repositories.TaskRepository, log logger.Logger) *AdminHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AdminHandler{users: users, tasks: tasks, log: log}
}

// GetUsers godoc
// @Summary      List all accounts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  UserListResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /admin/users [get]
func (h *AdminHandler) GetUsers(c *gin.Context) {
	users, err := h.users.FindAll(c.Request.Context())
	if err != nil {
		handleStoreError(c, h.log, "user", err)
		return
	}
	if users == nil {
		users = []models.User{}
	}

	c.JSON(http.StatusOK, UserListResponse{Users: users, Count: len(users)})
}

// GetUserStats godoc
// @Summary      Account counts by role
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.UserStats
// @Router       /admin/users/stats [get]
func (h *AdminHandler) GetUserStats(c *gin.Context) {
	stats, err := h.users.GetStats(c.Request.Context())
	if err != nil {
		handleStoreError(c, h.log, "user", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetUser godoc
// @Summary      Fetch an account
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  models.User
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/users/{id} [get]
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		handleStoreError(c, h.log, "user", err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateUser godoc
// @Summary      Update username, email or role
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                     true  "User ID"
// @Param        request  body      map[string]interface{}  true  "Fields to change"
// @Success      200      {object}  models.User
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Router       /admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.users.UpdateByID(c.Request.Context(), id, fields)
	if err != nil {
		handleStoreError(c, h.log, "user", err)
		return
	}

	h.log.Info("user updated by admin", map[string]interface{}{"user_id": id})
	c.JSON(http.StatusOK, user)
}

// DeleteUser godoc
// @Summary      Delete an account and all of its tasks
// @Tags         admin
// @Security     BearerAuth
// @Param        id   path  int  true  "User ID"
// @Success      204
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if id == callerID {
		badRequest(c, "admins cannot delete their own account")
		return
	}

	removed, err := h.users.DeleteByID(c.Request.Context(), id)
	if err == nil && !removed {
		err = repositories.ErrUserNotFound
	}
	if err != nil {
		handleStoreError(c, h.log, "user", err)
		return
	}

	h.log.Info("user deleted by admin", map[string]interface{}{"user_id": id, "admin_id": callerID})
	c.Status(http.StatusNoContent)
}

// GetAllTasks godoc
// @Summary      List every task
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        user_id   query     int     false  "Only tasks of this owner"
// @Param        status    query     string  false  "pending, in_progress or completed"
// @Param        priority  query     string  false  "low, medium or high"
// @Param        limit     query     int     false  "Page size (default 50, max 100)"
// @Param        offset    query     int     false  "Rows to skip"
// @Success      200       {object}  TaskListResponse
// @Failure      400       {object}  ErrorResponse
// @Router       /admin/tasks [get]
func (h *AdminHandler) GetAllTasks(c *gin.Context) {
	filter, ok := parseTaskFilter(c)
	if !ok {
		return
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			badRequest(c, "invalid user_id filter")
			return
		}
		filter.UserID = &userID
	}

	tasks, err := h.tasks.FindAll(c.Request.Context(), filter)
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.JSON(http.StatusOK, taskList(tasks, filter.Page))
}

// GetAllTaskStats godoc
// @Summary      Counts of all tasks by status and priority
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.TaskStats
// @Router       /admin/tasks/stats [get]
func (h *AdminHandler) GetAllTaskStats(c *gin.Context) {
	stats, err := h.tasks.AdminGetTaskStats(c.Request.Context())
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// SearchAllTasks godoc
// @Summary      Search every task
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        q       query     string  true   "Search term"
// @Param        limit   query     int     false  "Page size (default 50, max 100)"
// @Param        offset  query     int     false  "Rows to skip"
// @Success      200     {object}  TaskListResponse
// @Failure      400     {object}  ErrorResponse
// @Router       /admin/tasks/search [get]
func (h *AdminHandler) SearchAllTasks(c *gin.Context) {
	term, page, ok := parseSearch(c)
	if !ok {
		return
	}

	tasks, err := h.tasks.AdminSearchTasks(c.Request.Context(), term, page)
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.JSON(http.StatusOK, taskList(tasks, page))
}

// UpdateAnyTask godoc
// @Summary      Update any task
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                     true  "Task ID"
// @Param        request  body      map[string]interface{}  true  "Fields to change"
// @Success      200      {object}  models.Task
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /admin/tasks/{id} [put]
func (h *AdminHandler) UpdateAnyTask(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err.Error())
		return
	}

	task, err := h.tasks.AdminUpdateByID(c.Request.Context(), id, fields)
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// DeleteAnyTask godoc
// @Summary      Delete any task
// @Tags         admin
// @Security     BearerAuth
// @Param        id   path  int  true  "Task ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/tasks/{id} [delete]
func (h *AdminHandler) DeleteAnyTask(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	removed, err := h.tasks.AdminDeleteByID(c.Request.Context(), id)
	if err == nil && !removed {
		err = repositories.ErrTaskNotFound
	}
	if err != nil {
		handleStoreError(c, h.log, "task", err)
		return
	}

	c.Status(http.StatusNoContent)
}
