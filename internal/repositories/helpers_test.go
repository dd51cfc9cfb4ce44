package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskdesk/backend/internal/config"
	"taskdesk/backend/internal/database"
)

func openTestDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:       config.DriverSQLite,
		DSN:          dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, database.Migrate(pool.DB))
	return pool.DB
}

func setupTestDB(t *testing.T) *gorm.DB {
	return openTestDB(t, "file::memory:?_foreign_keys=1")
}

func setupTestDBWithoutForeignKeys(t *testing.T) *gorm.DB {
	return openTestDB(t, "file::memory:")
}

func testHasher() *PasswordHasher {
	return NewPasswordHasher(bcrypt.MinCost)
}

// stepClock hands out strictly increasing timestamps one second apart.
type stepClock struct {
	current time.Time
}

func newStepClock() *stepClock {
	return &stepClock{current: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.current = c.current.Add(time.Second)
	return c.current
}

func newTestGormUserRepository(db *gorm.DB, clock *stepClock) *GormUserRepository {
	repo := NewGormUserRepository(db, testHasher(), nil, nil)
	repo.now = clock.Now
	return repo
}

func newTestTaskRepository(db *gorm.DB, clock *stepClock) *GormTaskRepository {
	repo := NewGormTaskRepository(db, nil, nil)
	repo.now = clock.Now
	return repo
}
