package models

import (
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	Role      Role      `json:"role" gorm:"type:varchar(16);not null;default:'user'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser carries the plaintext password only as far as the hashing step.
type NewUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     Role   `yaml:"role"`
}

type UserStats struct {
	Total  int64 `json:"total"`
	Admins int64 `json:"admins"`
	Users  int64 `json:"users"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Public returns a copy of the user without the password hash.
func (u User) Public() User {
	u.Password = ""
	return u
}
