package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"taskdesk/backend/internal/config"
	"taskdesk/backend/internal/database"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/repositories"
	"taskdesk/backend/internal/revocation"
	"taskdesk/backend/internal/services"
)

type testEnv struct {
	users repositories.UserRepository
	tasks repositories.TaskRepository
	auth  *services.AuthServiceImpl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:       config.DriverSQLite,
		DSN:          "file::memory:?_foreign_keys=1",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, database.Migrate(pool.DB))

	hasher := repositories.NewPasswordHasher(bcrypt.MinCost)
	users := repositories.NewGormUserRepository(pool.DB, hasher, nil, nil)
	tasks := repositories.NewGormTaskRepository(pool.DB, nil, nil)

	auth, err := services.NewAuthService(users, revocation.NewMemoryDenylist(), hasher, services.AuthConfig{
		JWTSecret: "handler-test-secret",
		Issuer:    "taskdesk-backend",
		TokenTTL:  time.Hour,
	}, nil, nil)
	require.NoError(t, err)

	return &testEnv{users: users, tasks: tasks, auth: auth}
}

func (e *testEnv) createUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	user, err := e.users.Create(context.Background(), models.NewUser{
		Username: username,
		Email:    username + "@example.com",
		Password: "Password1",
		Role:     role,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) createTask(t *testing.T, owner *models.User, title string, status models.TaskStatus) *models.Task {
	t.Helper()
	task, err := e.tasks.Create(context.Background(), models.NewTask{
		Title:  title,
		Status: status,
		UserID: owner.ID,
	})
	require.NoError(t, err)
	return task
}

// routerAs authenticates every request as user.
func routerAs(user *models.User) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", user.ID)
		c.Set("user_role", user.Role)
		c.Next()
	})
	return router
}

func doJSON(router http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var payload []byte
	switch v := body.(type) {
	case nil:
	case string:
		payload = []byte(v)
	default:
		payload, _ = json.Marshal(v)
	}

	req, _ := http.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
