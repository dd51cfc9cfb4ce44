package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/middleware"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/repositories"
	"taskdesk/backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
	users       repositories.UserRepository
	log         logger.Logger
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"admin@primetrade.ai"`
	Password string `json:"password" binding:"required" example:"Admin123"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type" example:"Bearer"`
	ExpiresIn   int64        `json:"expires_in" example:"604800"`
	User        *models.User `json:"user"`
}

type RegistrationResponse struct {
	Message string       `json:"message" example:"User registered successfully"`
	User    *models.User `json:"user"`
}

type UpdateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=50"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=72"`
}

func NewAuthHandler(authService services.AuthService, users repositories.UserRepository, log logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{authService: authService, users: users, log: log}
}

// Register godoc
// @Summary      Register a new account
// @Description  Creates an account with role "user".
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      services.RegistrationRequest  true  "Registration data"
// @Success      201      {object}  RegistrationResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		handleStoreError(c, h.log, "user", err)
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		Message: "User registered successfully",
		User:    user,
	})
}

// Login godoc
// @Summary      Exchange credentials for an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "Credentials"
// @Success      200      {object}  LoginResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleStoreError(c, h.log, "login", err)
		return
	}
	if result.Status != services.LoginOK {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_credentials",
			Message: "Invalid email or password",
		})
		return
	}

	issued, err := h.authService.GenerateToken(result.User)
	if err != nil {
		handleStoreError(c, h.log, "token", err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: issued.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   issued.ExpiresIn,
		User:        result.User,
	})
}

// Profile godoc
// @Summary      Current user's profile
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /auth/profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		handleStoreError(c, h.log, "user", err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateProfile godoc
// @Summary      Update username or email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      UpdateProfileRequest  true  "Fields to change"
// @Success      200      {object}  models.User
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Router       /auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	fields := make(map[string]interface{})
	if req.Username != nil {
		fields["username"] = *req.Username
	}
	if req.Email != nil {
		fields["email"] = *req.Email
	}

	user, err := h.users.UpdateByID(c.Request.Context(), userID, fields)
	if err != nil {
		handleStoreError(c, h.log, "user", err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ChangePassword godoc
// @Summary      Change the current user's password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ChangePasswordRequest  true  "Current and new password"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  ErrorResponse
// @Router       /auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	_, err := h.authService.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, services.ErrInvalidCredentials) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_current_password",
			Message: "Current password is incorrect",
		})
		return
	}
	if err != nil {
		handleStoreError(c, h.log, "user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated successfully"})
}

// Logout godoc
// @Summary      Revoke the presented access token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.UserClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: "User not authenticated"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		handleStoreError(c, h.log, "logout", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
