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

// TaskRepository is the Task Store. Methods taking an ownerID only ever touch
// rows whose user_id equals it; the Admin variants are unscoped.
type TaskRepository interface {
	Create(ctx context.Context, input models.NewTask) (*models.Task, error)
	FindByID(ctx context.Context, id int64) (*models.Task, error)
	FindByUserID(ctx context.Context, userID int64, filter models.TaskFilter) ([]models.Task, error)
	FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)

	UpdateByID(ctx context.Context, id, ownerID int64, fields map[string]interface{}) (*models.Task, error)
	AdminUpdateByID(ctx context.Context, id int64, fields map[string]interface{}) (*models.Task, error)

	DeleteByID(ctx context.Context, id, ownerID int64) (bool, error)
	AdminDeleteByID(ctx context.Context, id int64) (bool, error)
	AdminDeleteByOwner(ctx context.Context, userID int64) (int64, error)
	AdminDeleteOrphans(ctx context.Context, ownerIDs []int64) (int64, error)

	GetTaskStats(ctx context.Context, ownerID int64) (*models.TaskStats, error)
	AdminGetTaskStats(ctx context.Context) (*models.TaskStats, error)

	SearchTasks(ctx context.Context, ownerID int64, term string, page models.Page) ([]models.Task, error)
	AdminSearchTasks(ctx context.Context, term string, page models.Page) ([]models.Task, error)
}

const taskSelect = "tasks.*, users.username AS username, users.email AS user_email"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns term into a LIKE pattern matching it literally as a
// substring. Case folding happens in SQL so both sides use the same LOWER.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func prepareNewTask(input models.NewTask) (models.NewTask, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return input, validationError("title is required")
	}
	if input.Status == "" {
		input.Status = models.StatusPending
	}
	if !input.Status.Valid() {
		return input, validationError("invalid status %q", input.Status)
	}
	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	}
	if !input.Priority.Valid() {
		return input, validationError("invalid priority %q", input.Priority)
	}
	if input.UserID <= 0 {
		return input, validationError("owner is required")
	}
	return input, nil
}

// taskUpdates keeps the allow-listed keys of fields and validates their values.
// Ownership is never updatable; user_id and other keys are dropped.
func taskUpdates(fields map[string]interface{}) (map[string]interface{}, error) {
	updates := make(map[string]interface{})

	for key, raw := range fields {
		value, ok := stringValue(raw)

		switch key {
		case "title":
			if value = strings.TrimSpace(value); !ok || value == "" {
				return nil, validationError("title must be a non-empty string")
			}
			updates["title"] = value
		case "description":
			if raw == nil {
				value, ok = "", true
			}
			if !ok {
				return nil, validationError("description must be a string")
			}
			updates["description"] = value
		case "status":
			if !ok || !models.TaskStatus(value).Valid() {
				return nil, validationError("invalid status %v", raw)
			}
			updates["status"] = value
		case "priority":
			if !ok || !models.TaskPriority(value).Valid() {
				return nil, validationError("invalid priority %v", raw)
			}
			updates["priority"] = value
		}
	}

	if len(updates) == 0 {
		return nil, validationError("no valid fields to update")
	}
	return updates, nil
}

type GormTaskRepository struct {
	db  *gorm.DB
	now func() time.Time
	instrumentation
}

func NewGormTaskRepository(db *gorm.DB, log logger.Logger, metrics *monitoring.Metrics) *GormTaskRepository {
	return &GormTaskRepository{
		db:              db,
		now:             func() time.Time { return time.Now().UTC() },
		instrumentation: newInstrumentation("task", log, metrics),
	}
}

// withOwner selects tasks joined to their owner's public fields.
func (r *GormTaskRepository) withOwner(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Task{}).
		Select(taskSelect).
		Joins("LEFT JOIN users ON users.id = tasks.user_id")
}

func validateFilter(filter models.TaskFilter) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return validationError("invalid status %q", filter.Status)
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return validationError("invalid priority %q", filter.Priority)
	}
	return nil
}

func applyFilter(tx *gorm.DB, filter models.TaskFilter) *gorm.DB {
	if filter.UserID != nil {
		tx = tx.Where("tasks.user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		tx = tx.Where("tasks.status = ?", filter.Status)
	}
	if filter.Priority != "" {
		tx = tx.Where("tasks.priority = ?", filter.Priority)
	}
	return tx
}

func paginate(tx *gorm.DB, page models.Page) *gorm.DB {
	page = page.Normalize()
	return tx.Order("tasks.created_at DESC").
		Order("tasks.id DESC").
		Limit(page.Limit).
		Offset(page.Offset)
}

func (r *GormTaskRepository) Create(ctx context.Context, input models.NewTask) (task *models.Task, err error) {
	defer r.observe("create", time.Now(), &err)

	input, err = prepareNewTask(input)
	if err != nil {
		return nil, err
	}

	now := r.now()
	record := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		UserID:      input.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.db.WithContext(ctx).Omit("Owner").Create(record).Error; err != nil {
		return nil, storeError("create task", err)
	}

	enriched, err := r.findByID(ctx, record.ID)
	if errors.Is(err, ErrTaskNotFound) {
		// Deleted between insert and re-read; hand back what was written.
		return record, nil
	}
	return enriched, err
}

func (r *GormTaskRepository) findByID(ctx context.Context, id int64) (*models.Task, error) {
	var task models.Task
	if err := r.withOwner(ctx).Where("tasks.id = ?", id).Take(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, storeError("find task", err)
	}
	return &task, nil
}

func (r *GormTaskRepository) FindByID(ctx context.Context, id int64) (task *models.Task, err error) {
	defer r.observe("find_by_id", time.Now(), &err)
	return r.findByID(ctx, id)
}

func (r *GormTaskRepository) list(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	tasks := []models.Task{}
	tx := paginate(applyFilter(r.withOwner(ctx), filter), filter.Page)
	if err := tx.Find(&tasks).Error; err != nil {
		return nil, storeError("list tasks", err)
	}
	return tasks, nil
}

func (r *GormTaskRepository) FindByUserID(ctx context.Context, userID int64, filter models.TaskFilter) (tasks []models.Task, err error) {
	defer r.observe("find_by_user", time.Now(), &err)

	filter.UserID = &userID
	return r.list(ctx, filter)
}

func (r *GormTaskRepository) FindAll(ctx context.Context, filter models.TaskFilter) (tasks []models.Task, err error) {
	defer r.observe("find_all", time.Now(), &err)
	return r.list(ctx, filter)
}

func (r *GormTaskRepository) update(ctx context.Context, id int64, ownerID *int64, fields map[string]interface{}) (*models.Task, error) {
	updates, err := taskUpdates(fields)
	if err != nil {
		return nil, err
	}
	updates["updated_at"] = r.now()

	tx := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id)
	if ownerID != nil {
		tx = tx.Where("user_id = ?", *ownerID)
	}

	result := tx.Updates(updates)
	if result.Error != nil {
		return nil, storeError("update task", result.Error)
	}
	if result.RowsAffected == 0 {
		if ownerID != nil {
			return nil, ErrNotFoundOrForbidden
		}
		return nil, ErrTaskNotFound
	}

	return r.findByID(ctx, id)
}

func (r *GormTaskRepository) UpdateByID(ctx context.Context, id, ownerID int64, fields map[string]interface{}) (task *models.Task, err error) {
	defer r.observe("update", time.Now(), &err)
	return r.update(ctx, id, &ownerID, fields)
}

func (r *GormTaskRepository) AdminUpdateByID(ctx context.Context, id int64, fields map[string]interface{}) (task *models.Task, err error) {
	defer r.observe("admin_update", time.Now(), &err)
	return r.update(ctx, id, nil, fields)
}

func (r *GormTaskRepository) delete(ctx context.Context, op string, conds ...interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Where(conds[0], conds[1:]...).Delete(&models.Task{})
	if result.Error != nil {
		return 0, storeError(op, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormTaskRepository) DeleteByID(ctx context.Context, id, ownerID int64) (removed bool, err error) {
	defer r.observe("delete", time.Now(), &err)

	n, err := r.delete(ctx, "delete task", "id = ? AND user_id = ?", id, ownerID)
	return n > 0, err
}

func (r *GormTaskRepository) AdminDeleteByID(ctx context.Context, id int64) (removed bool, err error) {
	defer r.observe("admin_delete", time.Now(), &err)

	n, err := r.delete(ctx, "delete task", "id = ?", id)
	return n > 0, err
}

func (r *GormTaskRepository) AdminDeleteByOwner(ctx context.Context, userID int64) (count int64, err error) {
	defer r.observe("admin_delete_by_owner", time.Now(), &err)
	return r.delete(ctx, "delete tasks by owner", "user_id = ?", userID)
}

// AdminDeleteOrphans removes every task whose owner is not in ownerIDs.
func (r *GormTaskRepository) AdminDeleteOrphans(ctx context.Context, ownerIDs []int64) (count int64, err error) {
	defer r.observe("admin_delete_orphans", time.Now(), &err)

	if len(ownerIDs) == 0 {
		return r.delete(ctx, "delete orphaned tasks", "1 = 1")
	}
	return r.delete(ctx, "delete orphaned tasks", "user_id NOT IN ?", ownerIDs)
}

func (r *GormTaskRepository) stats(ctx context.Context, ownerID *int64) (*models.TaskStats, error) {
	var rows []struct {
		Status   models.TaskStatus
		Priority models.TaskPriority
		Count    int64
	}

	tx := r.db.WithContext(ctx).Model(&models.Task{}).Select("status, priority, COUNT(*) AS count")
	if ownerID != nil {
		tx = tx.Where("user_id = ?", *ownerID)
	}
	if err := tx.Group("status, priority").Scan(&rows).Error; err != nil {
		return nil, storeError("task stats", err)
	}

	stats := models.NewTaskStats()
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByStatus[row.Status] += row.Count
		stats.ByPriority[row.Priority] += row.Count
	}
	return stats, nil
}

func (r *GormTaskRepository) GetTaskStats(ctx context.Context, ownerID int64) (stats *models.TaskStats, err error) {
	defer r.observe("stats", time.Now(), &err)
	return r.stats(ctx, &ownerID)
}

func (r *GormTaskRepository) AdminGetTaskStats(ctx context.Context) (stats *models.TaskStats, err error) {
	defer r.observe("admin_stats", time.Now(), &err)
	return r.stats(ctx, nil)
}

func (r *GormTaskRepository) search(ctx context.Context, ownerID *int64, term string, page models.Page) ([]models.Task, error) {
	pattern := containsPattern(term)

	tx := r.withOwner(ctx).Where(
		`(LOWER(tasks.title) LIKE LOWER(?) ESCAPE '\' OR LOWER(tasks.description) LIKE LOWER(?) ESCAPE '\')`,
		pattern, pattern,
	)
	if ownerID != nil {
		tx = tx.Where("tasks.user_id = ?", *ownerID)
	}

	tasks := []models.Task{}
	if err := paginate(tx, page).Find(&tasks).Error; err != nil {
		return nil, storeError("search tasks", err)
	}
	return tasks, nil
}

func (r *GormTaskRepository) SearchTasks(ctx context.Context, ownerID int64, term string, page models.Page) (tasks []models.Task, err error) {
	defer r.observe("search", time.Now(), &err)
	return r.search(ctx, &ownerID, term, page)
}

func (r *GormTaskRepository) AdminSearchTasks(ctx context.Context, term string, page models.Page) (tasks []models.Task, err error) {
	defer r.observe("admin_search", time.Now(), &err)
	return r.search(ctx, nil, term, page)
}
