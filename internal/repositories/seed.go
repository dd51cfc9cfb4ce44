package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"taskdesk/backend/internal/models"
)

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	models.NewUser `yaml:",inline"`
	Tasks          []models.NewTask `yaml:"tasks"`
}

type SeedResult struct {
	UsersCreated int
	UsersSkipped int
	TasksCreated int
}

// SeedFromFile creates the accounts listed in a YAML fixture file. Accounts
// whose email already exists are left alone, and tasks are only created for
// accounts made by this call, so running it twice changes nothing.
func SeedFromFile(ctx context.Context, path string, users UserRepository, tasks TaskRepository) (*SeedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	result := &SeedResult{}
	for _, entry := range sf.Users {
		if entry.Email == "" || entry.Password == "" {
			continue
		}

		if _, err := users.FindByEmail(ctx, entry.Email); err == nil {
			result.UsersSkipped++
			continue
		} else if !errors.Is(err, ErrUserNotFound) {
			return result, err
		}

		user, err := users.Create(ctx, entry.NewUser)
		if err != nil {
			return result, fmt.Errorf("seed user %s: %w", entry.Username, err)
		}
		result.UsersCreated++

		if tasks == nil {
			continue
		}
		for _, task := range entry.Tasks {
			task.UserID = user.ID
			if _, err := tasks.Create(ctx, task); err != nil {
				return result, fmt.Errorf("seed task %q: %w", task.Title, err)
			}
			result.TasksCreated++
		}
	}

	return result, nil
}
