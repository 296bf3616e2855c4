package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens (creating when needed) the database at path and migrates
// the schema. ":memory:" gives a throwaway database.
func NewSQLiteDB(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// a single connection serializes writers and keeps ":memory:" to one database
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Run{}, &StageExecution{}, &Cluster{}); err != nil {
		return nil, err
	}
	return db, nil
}
