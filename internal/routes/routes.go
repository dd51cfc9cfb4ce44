package routes

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "taskdesk/backend/docs"
	"taskdesk/backend/internal/config"
	"taskdesk/backend/internal/handlers"
	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/middleware"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/monitoring"
	"taskdesk/backend/internal/repositories"
	"taskdesk/backend/internal/services"
)

// Dependencies are built once in main and shared by every request.
type Dependencies struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *monitoring.Metrics
	Health  *monitoring.HealthChecker
	Auth    services.AuthService
	Users   repositories.UserRepository
	Tasks   repositories.TaskRepository
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	}

	return cors.New(corsConfig)
}

func SetupRouter(deps Dependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.RecoveryWithLog(log),
		deps.Metrics.Middleware(),
		corsMiddleware(deps.Config.CORS),
	)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Error: "not_found", Message: "Endpoint not found"})
	})

	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json"))))

	v1 := router.Group("/v1")
	if rl := deps.Config.RateLimit; rl.Enabled {
		v1.Use(middleware.RateLimit(middleware.NewIPRateLimiter(middleware.RateLimitConfig{
			Requests:        rl.Requests,
			Window:          rl.Window,
			Burst:           rl.BurstSize,
			CleanupInterval: rl.CleanupInterval,
		})))
	}

	health := v1.Group("/health")
	{
		health.GET("", deps.Health.HealthHandler())
		health.GET("/live", deps.Health.LivenessHandler())
		health.GET("/ready", deps.Health.ReadinessHandler())
	}

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Users, log)
	taskHandler := handlers.NewTaskHandler(deps.Tasks, log)
	adminHandler := handlers.NewAdminHandler(deps.Users, deps.Tasks, log)

	authenticated := middleware.AuthMiddleware(deps.Auth)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/profile", authenticated, authHandler.Profile)
		auth.PUT("/profile", authenticated, authHandler.UpdateProfile)
		auth.PUT("/password", authenticated, authHandler.ChangePassword)
		auth.POST("/logout", authenticated, authHandler.Logout)
	}

	tasks := v1.Group("/tasks", authenticated)
	{
		tasks.GET("", taskHandler.GetTasks)
		tasks.POST("", taskHandler.CreateTask)
		tasks.GET("/stats", taskHandler.GetTaskStats)
		tasks.GET("/search", taskHandler.SearchTasks)
		tasks.GET("/:id", taskHandler.GetTaskByID)
		tasks.PUT("/:id", taskHandler.UpdateTask)
		tasks.DELETE("/:id", taskHandler.DeleteTask)
	}

	admin := v1.Group("/admin", authenticated, middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/users", adminHandler.GetUsers)
		admin.GET("/users/stats", adminHandler.GetUserStats)
		admin.GET("/users/:id", adminHandler.GetUser)
		admin.PUT("/users/:id", adminHandler.UpdateUser)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)

		admin.GET("/tasks", adminHandler.GetAllTasks)
		admin.GET("/tasks/stats", adminHandler.GetAllTaskStats)
		admin.GET("/tasks/search", adminHandler.SearchAllTasks)
		admin.PUT("/tasks/:id", adminHandler.UpdateAnyTask)
		admin.DELETE("/tasks/:id", adminHandler.DeleteAnyTask)
	}

	return router
}
