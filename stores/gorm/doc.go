// Package gorm provides a GORM-based implementation of the mailauth
// UserStore interface. It supports any database that GORM supports
// (PostgreSQL, MySQL, SQLite, etc.) and is suitable for deployments that
// outgrow the file-based store.
//
// # Database Schema
//
// The package auto-migrates the following tables:
//   - auth_users: user accounts keyed by email
//   - auth_login_codes: secured one-time login codes
//   - auth_session_tokens: secured long-lived bearer tokens
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	gormstore.AutoMigrate(db)
//	store := gormstore.NewUserStore(db)
//
// Update runs inside a transaction holding a row lock on the user, so
// concurrent logins for the same email serialize at the database.
package gorm
