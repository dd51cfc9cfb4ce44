package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/backend/internal/handlers"
	"taskdesk/backend/internal/middleware"
	"taskdesk/backend/internal/models"
)

func authRouter(env *testEnv) *gin.Engine {
	handler := handlers.NewAuthHandler(env.auth, env.users, nil)

	router := gin.New()
	router.POST("/auth/register", handler.Register)
	router.POST("/auth/login", handler.Login)

	protected := router.Group("/auth", middleware.AuthMiddleware(env.auth))
	protected.GET("/profile", handler.Profile)
	protected.PUT("/profile", handler.UpdateProfile)
	protected.PUT("/password", handler.ChangePassword)
	protected.POST("/logout", handler.Logout)
	return router
}

func login(t *testing.T, router http.Handler, email, password string) string {
	t.Helper()
	w := doJSON(router, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[handlers.LoginResponse](t, w).AccessToken
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	router := authRouter(env)

	w := doJSON(router, http.MethodPost, "/auth/register", map[string]string{
		"username": "newbie",
		"email":    "Newbie@Example.com",
		"password": "secret1",
		"role":     "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[handlers.RegistrationResponse](t, w)
	assert.Equal(t, models.RoleUser, resp.User.Role)
	assert.Equal(t, "newbie@example.com", resp.User.Email)
	assert.NotContains(t, w.Body.String(), "password")

	w = doJSON(router, http.MethodPost, "/auth/register", map[string]string{
		"username": "other",
		"email":    "newbie@example.com",
		"password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/register", map[string]string{
		"username": "x",
		"email":    "not-an-email",
		"password": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "dave", models.RoleAdmin)
	router := authRouter(env)

	w := doJSON(router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "DAVE@example.com",
		"password": "Password1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[handlers.LoginResponse](t, w)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	require.NotNil(t, resp.User)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)

	for _, body := range []map[string]string{
		{"email": "dave@example.com", "password": "wrong"},
		{"email": "nobody@example.com", "password": "Password1"},
	} {
		w = doJSON(router, http.MethodPost, "/auth/login", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid_credentials", decode[handlers.ErrorResponse](t, w).Error)
	}

	w = doJSON(router, http.MethodPost, "/auth/login", map[string]string{"email": "dave@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "erin", models.RoleUser)
	env.createUser(t, "frank", models.RoleUser)
	router := authRouter(env)
	token := login(t, router, "erin@example.com", "Password1")
	bearer := []string{"Authorization", "Bearer " + token}

	w := doJSON(router, http.MethodGet, "/auth/profile", nil, bearer...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "erin", decode[models.User](t, w).Username)

	w = doJSON(router, http.MethodPut, "/auth/profile", map[string]string{"username": "erin2", "role": "admin"}, bearer...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.User](t, w)
	assert.Equal(t, "erin2", updated.Username)
	assert.Equal(t, models.RoleUser, updated.Role, "role is not self-service")

	w = doJSON(router, http.MethodPut, "/auth/profile", map[string]string{"email": "frank@example.com"}, bearer...)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPut, "/auth/profile", map[string]string{}, bearer...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/auth/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "gina", models.RoleUser)
	router := authRouter(env)
	token := login(t, router, "gina@example.com", "Password1")
	bearer := []string{"Authorization", "Bearer " + token}

	w := doJSON(router, http.MethodPut, "/auth/password", map[string]string{
		"current_password": "wrong",
		"new_password":     "Password2",
	}, bearer...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_current_password", decode[handlers.ErrorResponse](t, w).Error)

	w = doJSON(router, http.MethodPut, "/auth/password", map[string]string{
		"current_password": "Password1",
		"new_password":     "Password2",
	}, bearer...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	login(t, router, "gina@example.com", "Password2")
}

func TestLogout_RevokesPresentedToken(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "hank", models.RoleUser)
	router := authRouter(env)
	first := login(t, router, "hank@example.com", "Password1")
	second := login(t, router, "hank@example.com", "Password1")

	w := doJSON(router, http.MethodPost, "/auth/logout", nil, "Authorization", "Bearer "+first)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/auth/profile", nil, "Authorization", "Bearer "+first)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodGet, "/auth/profile", nil, "Authorization", "Bearer "+second)
	assert.Equal(t, http.StatusOK, w.Code)
}
