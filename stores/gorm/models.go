package gorm

import (
	"time"
)

// UserModel is the GORM model for user accounts
type UserModel struct {
	Email     string    `gorm:"primaryKey;size:255"`
	Name      string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string { return "auth_users" }

// LoginCodeModel is the GORM model for secured one-time login codes
type LoginCodeModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserEmail string    `gorm:"index;size:255"`
	Hash      string    `gorm:"size:128"`
	ExpiresAt time.Time `gorm:""`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (LoginCodeModel) TableName() string { return "auth_login_codes" }

// SessionTokenModel is the GORM model for secured bearer tokens
type SessionTokenModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserEmail string    `gorm:"index;size:255"`
	Hash      string    `gorm:"size:128"`
	ExpiresAt time.Time `gorm:""`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (SessionTokenModel) TableName() string { return "auth_session_tokens" }
