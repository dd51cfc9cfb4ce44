package database

import (
	"fmt"

	"gorm.io/gorm"

	"taskdesk/backend/internal/models"
)

// Migrate creates the users and tasks tables. Users goes first so the
// tasks.user_id foreign key has something to reference.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Task{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
