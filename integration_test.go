package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/backend/internal/app"
	"taskdesk/backend/internal/config"
	"taskdesk/backend/internal/handlers"
	"taskdesk/backend/internal/models"
)

func loadTestConfig(t *testing.T, accountStore, dbPath string) *config.Config {
	t.Helper()

	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("ACCOUNT_STORE", accountStore)
	t.Setenv("SEED_FILE", "config/seed.yaml")
	t.Setenv("JWT_SECRET", "integration-secret")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func startApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	application, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })
	return application
}

type client struct {
	t      *testing.T
	router http.Handler
}

func (c client) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c client) login(email, password string) string {
	c.t.Helper()
	w := c.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())

	var resp handlers.LoginResponse
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decodeTasks(t *testing.T, w *httptest.ResponseRecorder) handlers.TaskListResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list handlers.TaskListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	return list
}

func TestEndToEnd(t *testing.T) {
	for _, store := range []string{config.AccountStoreDatabase, config.AccountStoreMemory} {
		t.Run(store, func(t *testing.T) {
			cfg := loadTestConfig(t, store, filepath.Join(t.TempDir(), "taskdesk.db"))
			c := client{t: t, router: startApp(t, cfg).Router}

			adminToken := c.login("admin@primetrade.ai", "Admin123")
			userToken := c.login("user@primetrade.ai", "User123")

			w := c.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "user@primetrade.ai", "password": "nope"})
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			userTasks := decodeTasks(t, c.do(http.MethodGet, "/v1/tasks", userToken, nil))
			require.Len(t, userTasks.Tasks, 1)
			assert.Equal(t, "Complete project documentation", userTasks.Tasks[0].Title)

			adminTasks := decodeTasks(t, c.do(http.MethodGet, "/v1/tasks", adminToken, nil))
			require.Len(t, adminTasks.Tasks, 1)
			adminTaskID := adminTasks.Tasks[0].ID

			w = c.do(http.MethodGet, fmt.Sprintf("/v1/tasks/%d", adminTaskID), userToken, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)

			w = c.do(http.MethodPut, fmt.Sprintf("/v1/tasks/%d", adminTaskID), userToken, map[string]string{"status": "completed"})
			assert.Equal(t, http.StatusNotFound, w.Code)

			w = c.do(http.MethodPost, "/v1/tasks", userToken, map[string]string{"title": "Write tests", "priority": "low"})
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

			all := decodeTasks(t, c.do(http.MethodGet, "/v1/admin/tasks", adminToken, nil))
			assert.Equal(t, 3, all.Count)
			assert.Equal(t, "Write tests", all.Tasks[0].Title)

			w = c.do(http.MethodGet, "/v1/admin/users", userToken, nil)
			assert.Equal(t, http.StatusForbidden, w.Code)

			w = c.do(http.MethodGet, "/v1/auth/profile", userToken, nil)
			require.Equal(t, http.StatusOK, w.Code)
			var profile models.User
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))

			w = c.do(http.MethodDelete, fmt.Sprintf("/v1/admin/users/%d", profile.ID), adminToken, nil)
			require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

			remaining := decodeTasks(t, c.do(http.MethodGet, "/v1/admin/tasks", adminToken, nil))
			require.Len(t, remaining.Tasks, 1, "deleting a user removes their tasks")
			assert.Equal(t, adminTaskID, remaining.Tasks[0].ID)

			w = c.do(http.MethodGet, "/v1/auth/profile", userToken, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code, "tokens of deleted accounts stop working")

			w = c.do(http.MethodPost, "/v1/auth/logout", adminToken, nil)
			require.Equal(t, http.StatusOK, w.Code)

			w = c.do(http.MethodGet, "/v1/admin/users", adminToken, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	cfg := loadTestConfig(t, config.AccountStoreDatabase, filepath.Join(t.TempDir(), "taskdesk.db"))

	first, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := startApp(t, cfg)

	stats, err := second.Users.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{Total: 2, Admins: 1, Users: 1}, *stats)

	taskStats, err := second.Tasks.AdminGetTaskStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), taskStats.Total)
}

func TestMemoryStoreRestart_DoesNotLeakTasks(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "taskdesk.db")
	cfg := loadTestConfig(t, config.AccountStoreMemory, dbPath)

	first, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	c := client{t: t, router: first.Router}

	w := c.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	aliceToken := c.login("alice@example.com", "secret1")

	w = c.do(http.MethodPost, "/v1/tasks", aliceToken, map[string]string{"title": "alice private"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, first.Close())

	second := startApp(t, cfg)
	c = client{t: t, router: second.Router}

	w = c.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": "mallory", "email": "mallory@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	malloryToken := c.login("mallory@example.com", "secret1")

	mine := decodeTasks(t, c.do(http.MethodGet, "/v1/tasks", malloryToken, nil))
	assert.Empty(t, mine.Tasks)

	stats, err := second.Tasks.AdminGetTaskStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total, "only the freshly seeded tasks remain")

	w = c.do(http.MethodGet, "/v1/tasks/search?q=private", malloryToken, nil)
	assert.Equal(t, 0, decodeTasks(t, w).Count)
}

func TestApplicationStartup_RejectsMemoryStoreOnPostgres(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DB_DRIVER", config.DriverPostgres)
	t.Setenv("ACCOUNT_STORE", config.AccountStoreMemory)

	if _, err := config.LoadConfig(); err == nil {
		t.Fatal("Expected configuration error for memory account store on postgres")
	}
}
