package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/monitoring"
)

// MemoryUserRepository keeps accounts in process memory. It is meant for
// fixture deployments seeded at start-up; nothing survives a restart.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[int64]models.User
	nextID int64
	hasher *PasswordHasher
	now    func() time.Time
	instrumentation
}

func NewMemoryUserRepository(hasher *PasswordHasher, log logger.Logger, metrics *monitoring.Metrics) *MemoryUserRepository {
	return &MemoryUserRepository{
		users:           make(map[int64]models.User),
		hasher:          hasher,
		now:             func() time.Time { return time.Now().UTC() },
		instrumentation: newInstrumentation("user", log, metrics),
	}
}

// conflict reports whether another user already holds username or email.
// Callers must hold mu.
func (r *MemoryUserRepository) conflict(exceptID int64, username, email string) bool {
	for id, u := range r.users {
		if id == exceptID {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) Create(ctx context.Context, input models.NewUser) (user *models.User, err error) {
	defer r.observe("create", time.Now(), &err)

	input, err = prepareNewUser(input)
	if err != nil {
		return nil, err
	}

	hash, err := r.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflict(0, input.Username, input.Email) {
		return nil, storeError("create user", ErrDuplicate)
	}

	r.nextID++
	now := r.now()
	record := models.User{
		ID:        r.nextID,
		Username:  input.Username,
		Email:     input.Email,
		Password:  hash,
		Role:      input.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.users[record.ID] = record

	public := record.Public()
	return &public, nil
}

func (r *MemoryUserRepository) find(match func(models.User) bool, withHash bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			if !withHash {
				u = u.Public()
			}
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id int64) (user *models.User, err error) {
	defer r.observe("find_by_id", time.Now(), &err)
	return r.find(func(u models.User) bool { return u.ID == id }, false)
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (user *models.User, err error) {
	defer r.observe("find_by_email", time.Now(), &err)
	email = NormalizeEmail(email)
	return r.find(func(u models.User) bool { return u.Email == email }, true)
}

func (r *MemoryUserRepository) FindByUsername(ctx context.Context, username string) (user *models.User, err error) {
	defer r.observe("find_by_username", time.Now(), &err)
	username = strings.TrimSpace(username)
	return r.find(func(u models.User) bool { return u.Username == username }, false)
}

func (r *MemoryUserRepository) FindAll(ctx context.Context) (users []models.User, err error) {
	defer r.observe("find_all", time.Now(), &err)

	r.mu.RLock()
	users = make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u.Public())
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})
	return users, nil
}

func (r *MemoryUserRepository) UpdateByID(ctx context.Context, id int64, fields map[string]interface{}) (user *models.User, err error) {
	defer r.observe("update", time.Now(), &err)

	updates, err := userUpdates(fields)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	username, _ := updates["username"].(string)
	email, _ := updates["email"].(string)
	if r.conflict(id, username, email) {
		return nil, storeError("update user", ErrDuplicate)
	}

	if username != "" {
		record.Username = username
	}
	if email != "" {
		record.Email = email
	}
	if role, ok := updates["role"].(string); ok {
		record.Role = models.Role(role)
	}
	record.UpdatedAt = r.now()
	r.users[id] = record

	public := record.Public()
	return &public, nil
}

func (r *MemoryUserRepository) DeleteByID(ctx context.Context, id int64) (removed bool, err error) {
	defer r.observe("delete", time.Now(), &err)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return false, nil
	}
	delete(r.users, id)
	return true, nil
}

func (r *MemoryUserRepository) ValidatePassword(plain, hash string) bool {
	return r.hasher.Compare(plain, hash)
}

func (r *MemoryUserRepository) ChangePassword(ctx context.Context, id int64, newPassword string) (user *models.User, err error) {
	defer r.observe("change_password", time.Now(), &err)

	hash, err := r.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	record.Password = hash
	record.UpdatedAt = r.now()
	r.users[id] = record

	public := record.Public()
	return &public, nil
}

func (r *MemoryUserRepository) GetStats(ctx context.Context) (stats *models.UserStats, err error) {
	defer r.observe("stats", time.Now(), &err)

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats = &models.UserStats{Total: int64(len(r.users))}
	for _, u := range r.users {
		switch u.Role {
		case models.RoleAdmin:
			stats.Admins++
		case models.RoleUser:
			stats.Users++
		}
	}
	return stats, nil
}

// CascadingUserRepository removes a user's tasks after the account itself is
// deleted. Used when accounts live outside the tasks database and no foreign
// key can do it.
type CascadingUserRepository struct {
	UserRepository
	tasks TaskRepository
}

func WithTaskCascade(users UserRepository, tasks TaskRepository) *CascadingUserRepository {
	return &CascadingUserRepository{UserRepository: users, tasks: tasks}
}

func (r *CascadingUserRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	removed, err := r.UserRepository.DeleteByID(ctx, id)
	if err != nil || !removed {
		return removed, err
	}

	if _, err := r.tasks.AdminDeleteByOwner(ctx, id); err != nil {
		return true, err
	}
	return true, nil
}
