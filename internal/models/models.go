// Package models contains all data models for the wiki-quiz application
package models

import (
	"gorm.io/gorm"
)

// AllModels returns a slice of all model types for database migrations
func AllModels() []interface{} {
	return []interface{}{
		&Article{},
		&Quiz{},
		&Question{},
	}
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// DropAll drops every table, children first.
func DropAll(db *gorm.DB) error {
	return db.Migrator().DropTable(&Question{}, &Quiz{}, &Article{})
}
