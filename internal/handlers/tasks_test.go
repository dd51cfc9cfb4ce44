package handlers_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/backend/internal/handlers"
	"taskdesk/backend/internal/models"
)

func taskRoutes(router *gin.Engine, handler *handlers.TaskHandler) *gin.Engine {
	router.GET("/tasks", handler.GetTasks)
	router.POST("/tasks", handler.CreateTask)
	router.GET("/tasks/stats", handler.GetTaskStats)
	router.GET("/tasks/search", handler.SearchTasks)
	router.GET("/tasks/:id", handler.GetTaskByID)
	router.PUT("/tasks/:id", handler.UpdateTask)
	router.DELETE("/tasks/:id", handler.DeleteTask)
	return router
}

func setupTaskHandler(t *testing.T) (*testEnv, *models.User, *models.User) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", models.RoleUser)
	bob := env.createUser(t, "bob", models.RoleUser)
	return env, alice, bob
}

func TestCreateTask(t *testing.T) {
	env, alice, _ := setupTaskHandler(t)
	router := taskRoutes(routerAs(alice), handlers.NewTaskHandler(env.tasks, nil))

	w := doJSON(router, http.MethodPost, "/tasks", map[string]interface{}{
		"title":       "Test Task",
		"description": "Test Description",
		"user_id":     999,
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	task := decode[models.Task](t, w)
	assert.Equal(t, "Test Task", task.Title)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, alice.ID, task.UserID, "owner always comes from the token")
	assert.Equal(t, "alice", task.Username)
}

func TestCreateTask_OwnerDeleted(t *testing.T) {
	env, alice, _ := setupTaskHandler(t)
	router := taskRoutes(routerAs(alice), handlers.NewTaskHandler(env.tasks, nil))

	removed, err := env.users.DeleteByID(context.Background(), alice.ID)
	require.NoError(t, err)
	require.True(t, removed)

	w := doJSON(router, http.MethodPost, "/tasks", map[string]interface{}{"title": "orphan"})

	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "conflict", decode[handlers.ErrorResponse](t, w).Error)
}

func TestCreateTaskInvalidJSON(t *testing.T) {
	env, alice, _ := setupTaskHandler(t)
	router := taskRoutes(routerAs(alice), handlers.NewTaskHandler(env.tasks, nil))

	w := doJSON(router, http.MethodPost, "/tasks", "invalid json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreateTaskInvalidEnum(t *testing.T) {
	env, alice, _ := setupTaskHandler(t)
	router := taskRoutes(routerAs(alice), handlers.NewTaskHandler(env.tasks, nil))

	w := doJSON(router, http.MethodPost, "/tasks", map[string]interface{}{"title": "x", "status": "done"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[handlers.ErrorResponse](t, w)
	assert.Equal(t, "validation_failed", body.Error)
	assert.Contains(t, body.Message, "invalid status")
}

func TestGetTaskByID(t *testing.T) {
	env, alice, bob := setupTaskHandler(t)
	task := env.createTask(t, alice, "Test Task", models.StatusPending)
	handler := handlers.NewTaskHandler(env.tasks, nil)

	w := doJSON(taskRoutes(routerAs(alice), handler), http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Test Task", decode[models.Task](t, w).Title)

	w = doJSON(taskRoutes(routerAs(bob), handler), http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "another owner's task looks missing")
}

func TestGetTaskByIDNotFound(t *testing.T) {
	env, alice, _ := setupTaskHandler(t)
	router := taskRoutes(routerAs(alice), handlers.NewTaskHandler(env.tasks, nil))

	w := doJSON(router, http.MethodGet, "/tasks/424242", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	w = doJSON(router, http.MethodGet, "/tasks/not-a-number", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestGetTasks_FiltersAndPaging(t *testing.T) {
	env, alice, bob := setupTaskHandler(t)
	env.createTask(t, alice, "one", models.StatusPending)
	env.createTask(t, alice, "two", models.StatusCompleted)
	env.createTask(t, alice, "three", models.StatusPending)
	env.createTask(t, bob, "bob's", models.StatusPending)
	router := taskRoutes(routerAs(alice), handlers.NewTaskHandler(env.tasks, nil))

	w := doJSON(router, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[handlers.TaskListResponse](t, w)
	assert.Equal(t, 3, list.Count)
	assert.Equal(t, models.DefaultPageLimit, list.Limit)
	assert.Equal(t, "three", list.Tasks[0].Title, "newest first")

	w = doJSON(router, http.MethodGet, "/tasks?status=pending&limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = decode[handlers.TaskListResponse](t, w)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "one", list.Tasks[0].Title)

	w = doJSON(router, http.MethodGet, "/tasks?limit=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MaxPageLimit, decode[handlers.TaskListResponse](t, w).Limit)

	for _, query := range []string{"status=done", "priority=urgent", "limit=0", "limit=abc", "offset=-1"} {
		w = doJSON(router, http.MethodGet, "/tasks?"+query, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestGetTasks_EmptyListIsArray(t *testing.T) {
	env, alice, _ := setupTaskHandler(t)
	router := taskRoutes(routerAs(alice), handlers.NewTaskHandler(env.tasks, nil))

	w := doJSON(router, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tasks":[]`)
}

func TestUpdateTask(t *testing.T) {
	env, alice, bob := setupTaskHandler(t)
	task := env.createTask(t, alice, "draft", models.StatusPending)
	handler := handlers.NewTaskHandler(env.tasks, nil)
	path := fmt.Sprintf("/tasks/%d", task.ID)

	w := doJSON(taskRoutes(routerAs(alice), handler), http.MethodPut, path, map[string]interface{}{
		"status":  "completed",
		"user_id": bob.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Task](t, w)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, alice.ID, updated.UserID)

	w = doJSON(taskRoutes(routerAs(bob), handler), http.MethodPut, path, map[string]interface{}{"title": "hijacked"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(taskRoutes(routerAs(alice), handler), http.MethodPut, path, map[string]interface{}{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stored, err := env.tasks.FindByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", stored.Title)
}

func TestDeleteTask(t *testing.T) {
	env, alice, bob := setupTaskHandler(t)
	task := env.createTask(t, alice, "temp", models.StatusPending)
	handler := handlers.NewTaskHandler(env.tasks, nil)
	path := fmt.Sprintf("/tasks/%d", task.ID)

	w := doJSON(taskRoutes(routerAs(bob), handler), http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(taskRoutes(routerAs(alice), handler), http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(taskRoutes(routerAs(alice), handler), http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchTasks(t *testing.T) {
	env, alice, bob := setupTaskHandler(t)
	env.createTask(t, alice, "Raise budget 50%", models.StatusPending)
	env.createTask(t, alice, "Raise budget 500", models.StatusPending)
	env.createTask(t, bob, "Budget 50% for bob", models.StatusPending)
	router := taskRoutes(routerAs(alice), handlers.NewTaskHandler(env.tasks, nil))

	w := doJSON(router, http.MethodGet, "/tasks/search?q=50%25", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[handlers.TaskListResponse](t, w)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "Raise budget 50%", list.Tasks[0].Title)

	w = doJSON(router, http.MethodGet, "/tasks/search?q=BUDGET", nil)
	assert.Equal(t, 2, decode[handlers.TaskListResponse](t, w).Count)

	w = doJSON(router, http.MethodGet, "/tasks/search?q=%20", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTaskStats(t *testing.T) {
	env, alice, bob := setupTaskHandler(t)
	env.createTask(t, alice, "a", models.StatusPending)
	env.createTask(t, alice, "b", models.StatusCompleted)
	env.createTask(t, bob, "c", models.StatusCompleted)
	router := taskRoutes(routerAs(alice), handlers.NewTaskHandler(env.tasks, nil))

	w := doJSON(router, http.MethodGet, "/tasks/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.TaskStats](t, w)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[models.StatusCompleted])
	assert.Equal(t, int64(0), stats.ByStatus[models.StatusInProgress])
	assert.Equal(t, int64(2), stats.ByPriority[models.PriorityMedium])
}

func TestTaskHandler_RequiresUser(t *testing.T) {
	env := newTestEnv(t)
	router := taskRoutes(gin.New(), handlers.NewTaskHandler(env.tasks, nil))

	w := doJSON(router, http.MethodGet, "/tasks", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
