package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/monitoring"
)

// UserRepository is the Account Store. Only FindByEmail returns the password
// hash; every other read leaves User.Password empty.
type UserRepository interface {
	Create(ctx context.Context, input models.NewUser) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindAll(ctx context.Context) ([]models.User, error)
	UpdateByID(ctx context.Context, id int64, fields map[string]interface{}) (*models.User, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
	ValidatePassword(plain, hash string) bool
	ChangePassword(ctx context.Context, id int64, newPassword string) (*models.User, error)
	GetStats(ctx context.Context) (*models.UserStats, error)
}

var userColumns = []string{"id", "username", "email", "role", "created_at", "updated_at"}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func prepareNewUser(input models.NewUser) (models.NewUser, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = NormalizeEmail(input.Email)

	if input.Username == "" {
		return input, validationError("username is required")
	}
	if input.Email == "" {
		return input, validationError("email is required")
	}
	if input.Role == "" {
		input.Role = models.RoleUser
	}
	if !input.Role.Valid() {
		return input, validationError("invalid role %q", input.Role)
	}
	return input, nil
}

// userUpdates keeps the allow-listed keys of fields and validates their values.
// Unknown keys are dropped without error.
func userUpdates(fields map[string]interface{}) (map[string]interface{}, error) {
	updates := make(map[string]interface{})

	for key, raw := range fields {
		switch key {
		case "username":
			value, ok := stringValue(raw)
			if value = strings.TrimSpace(value); !ok || value == "" {
				return nil, validationError("username must be a non-empty string")
			}
			updates["username"] = value
		case "email":
			value, ok := stringValue(raw)
			if value = NormalizeEmail(value); !ok || value == "" {
				return nil, validationError("email must be a non-empty string")
			}
			updates["email"] = value
		case "role":
			value, ok := stringValue(raw)
			if role := models.Role(value); !ok || !role.Valid() {
				return nil, validationError("invalid role %v", raw)
			}
			updates["role"] = value
		}
	}

	if len(updates) == 0 {
		return nil, validationError("no valid fields to update")
	}
	return updates, nil
}

func stringValue(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case models.Role:
		return string(v), true
	case models.TaskStatus:
		return string(v), true
	case models.TaskPriority:
		return string(v), true
	default:
		return "", false
	}
}

type GormUserRepository struct {
	db     *gorm.DB
	hasher *PasswordHasher
	now    func() time.Time
	instrumentation
}

func NewGormUserRepository(db *gorm.DB, hasher *PasswordHasher, log logger.Logger, metrics *monitoring.Metrics) *GormUserRepository {
	return &GormUserRepository{
		db:              db,
		hasher:          hasher,
		now:             func() time.Time { return time.Now().UTC() },
		instrumentation: newInstrumentation("user", log, metrics),
	}
}

func (r *GormUserRepository) Create(ctx context.Context, input models.NewUser) (user *models.User, err error) {
	defer r.observe("create", time.Now(), &err)

	input, err = prepareNewUser(input)
	if err != nil {
		return nil, err
	}

	hash, err := r.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := r.now()
	record := &models.User{
		Username:  input.Username,
		Email:     input.Email,
		Password:  hash,
		Role:      input.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, storeError("create user", err)
	}

	public := record.Public()
	return &public, nil
}

func (r *GormUserRepository) findOne(ctx context.Context, op string, columns []string, query string, arg interface{}) (*models.User, error) {
	var user models.User
	tx := r.db.WithContext(ctx)
	if columns != nil {
		tx = tx.Select(columns)
	}

	if err := tx.Where(query, arg).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(op, err)
	}
	return &user, nil
}

func (r *GormUserRepository) FindByID(ctx context.Context, id int64) (user *models.User, err error) {
	defer r.observe("find_by_id", time.Now(), &err)
	return r.findOne(ctx, "find user by id", userColumns, "id = ?", id)
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (user *models.User, err error) {
	defer r.observe("find_by_email", time.Now(), &err)
	return r.findOne(ctx, "find user by email", nil, "email = ?", NormalizeEmail(email))
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (user *models.User, err error) {
	defer r.observe("find_by_username", time.Now(), &err)
	return r.findOne(ctx, "find user by username", userColumns, "username = ?", strings.TrimSpace(username))
}

func (r *GormUserRepository) FindAll(ctx context.Context) (users []models.User, err error) {
	defer r.observe("find_all", time.Now(), &err)

	users = []models.User{}
	if err := r.db.WithContext(ctx).
		Select(userColumns).
		Order("created_at DESC, id DESC").
		Find(&users).Error; err != nil {
		return nil, storeError("list users", err)
	}
	return users, nil
}

func (r *GormUserRepository) UpdateByID(ctx context.Context, id int64, fields map[string]interface{}) (user *models.User, err error) {
	defer r.observe("update", time.Now(), &err)

	updates, err := userUpdates(fields)
	if err != nil {
		return nil, err
	}
	updates["updated_at"] = r.now()

	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, storeError("update user", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return r.findOne(ctx, "find user by id", userColumns, "id = ?", id)
}

// DeleteByID removes the user; the tasks foreign key cascades in the same statement.
func (r *GormUserRepository) DeleteByID(ctx context.Context, id int64) (removed bool, err error) {
	defer r.observe("delete", time.Now(), &err)

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if result.Error != nil {
		return false, storeError("delete user", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *GormUserRepository) ValidatePassword(plain, hash string) bool {
	return r.hasher.Compare(plain, hash)
}

func (r *GormUserRepository) ChangePassword(ctx context.Context, id int64, newPassword string) (user *models.User, err error) {
	defer r.observe("change_password", time.Now(), &err)

	hash, err := r.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"password":   hash,
		"updated_at": r.now(),
	})
	if result.Error != nil {
		return nil, storeError("change password", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return r.findOne(ctx, "find user by id", userColumns, "id = ?", id)
}

func (r *GormUserRepository) GetStats(ctx context.Context) (stats *models.UserStats, err error) {
	defer r.observe("stats", time.Now(), &err)

	var rows []struct {
		Role  models.Role
		Count int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error; err != nil {
		return nil, storeError("user stats", err)
	}

	stats = &models.UserStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Role {
		case models.RoleAdmin:
			stats.Admins = row.Count
		case models.RoleUser:
			stats.Users = row.Count
		}
	}
	return stats, nil
}
