package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"taskdesk/backend/internal/config"
	"taskdesk/backend/internal/database"
	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/monitoring"
	"taskdesk/backend/internal/repositories"
	"taskdesk/backend/internal/revocation"
	"taskdesk/backend/internal/routes"
	"taskdesk/backend/internal/services"
)

// App owns every long-lived handle of the process. Close releases them in
// reverse order of construction.
type App struct {
	Config   *config.Config
	Logger   logger.Logger
	Pool     *database.DatabasePool
	Metrics  *monitoring.Metrics
	Health   *monitoring.HealthChecker
	Users    repositories.UserRepository
	Tasks    repositories.TaskRepository
	Denylist revocation.Denylist
	Auth     services.AuthService
	Router   *gin.Engine
}

func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}

	pool, err := database.NewDatabasePool(database.PoolConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  log,
		Pool:    pool,
		Metrics: monitoring.NewMetrics(),
		Health:  monitoring.NewHealthChecker(5 * time.Second),
	}

	if err := database.Migrate(pool.DB); err != nil {
		_ = a.Close()
		return nil, err
	}

	hasher := repositories.NewPasswordHasher(cfg.Auth.BCryptCost)
	a.initStores(hasher)

	if err := a.pruneOrphanTasks(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := a.seed(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Health.Register("database", pool.HealthContext)
	a.initDenylist(ctx)

	auth, err := services.NewAuthService(a.Users, a.Denylist, hasher, services.AuthConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.Issuer,
		TokenTTL:  cfg.Auth.TokenTTL,
	}, log, a.Metrics)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Auth = auth

	a.Router = routes.SetupRouter(routes.Dependencies{
		Config:  cfg,
		Logger:  log,
		Metrics: a.Metrics,
		Health:  a.Health,
		Auth:    a.Auth,
		Users:   a.Users,
		Tasks:   a.Tasks,
	})

	return a, nil
}

func (a *App) initStores(hasher *repositories.PasswordHasher) {
	a.Tasks = repositories.NewGormTaskRepository(a.Pool.DB, a.Logger, a.Metrics)

	switch a.Config.Accounts.Backend {
	case config.AccountStoreMemory:
		a.Users = repositories.WithTaskCascade(repositories.NewMemoryUserRepository(hasher, a.Logger, a.Metrics), a.Tasks)
	default:
		a.Users = repositories.NewGormUserRepository(a.Pool.DB, hasher, a.Logger, a.Metrics)
	}
}

// pruneOrphanTasks drops tasks whose owner is not a known account. Memory
// accounts start over at id 1 on every run, so tasks surviving in the
// database from an earlier run would otherwise be handed to new accounts.
func (a *App) pruneOrphanTasks(ctx context.Context) error {
	if a.Config.Accounts.Backend != config.AccountStoreMemory {
		return nil
	}

	users, err := a.Users.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	removed, err := a.Tasks.AdminDeleteOrphans(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to prune orphaned tasks: %w", err)
	}
	if removed > 0 {
		a.Logger.Warn("removed tasks of accounts from a previous run", map[string]interface{}{"tasks": removed})
	}
	return nil
}

func (a *App) seed(ctx context.Context) error {
	path := a.Config.Accounts.SeedFile
	if path == "" {
		return nil
	}

	result, err := repositories.SeedFromFile(ctx, path, a.Users, a.Tasks)
	switch {
	case errors.Is(err, os.ErrNotExist):
		a.Logger.Warn("seed file not found, skipping", map[string]interface{}{"path": path})
		return nil
	case err != nil:
		return fmt.Errorf("failed to seed accounts: %w", err)
	}

	a.Logger.Info("seed applied", map[string]interface{}{
		"users_created": result.UsersCreated,
		"users_skipped": result.UsersSkipped,
		"tasks_created": result.TasksCreated,
	})
	return nil
}

func (a *App) initDenylist(ctx context.Context) {
	if !a.Config.Redis.Enabled {
		a.Denylist = revocation.NewMemoryDenylist()
		return
	}

	redisDenylist := revocation.NewRedisDenylist(revocation.RedisConfigFrom(a.Config))
	if err := redisDenylist.Health(ctx); err != nil {
		a.Logger.Warn("redis not reachable at startup", map[string]interface{}{
			"addr":  a.Config.GetRedisAddr(),
			"error": err.Error(),
		})
	}
	a.Health.Register("redis", redisDenylist.Health)
	a.Denylist = redisDenylist
}

func (a *App) Close() error {
	var errs []error
	if a.Denylist != nil {
		if err := a.Denylist.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close denylist: %w", err))
		}
	}
	if a.Pool != nil {
		if err := a.Pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database pool: %w", err))
		}
	}
	return errors.Join(errs...)
}
