package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates the tables, their sequences and indexes.
func Migrate(db *gorm.DB) error {
	models := make([]interface{}, 0, len(Catalog))
	for _, d := range Catalog {
		models = append(models, d.Model)
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	for _, d := range Catalog {
		if err := CreateSequence(db, d.Sequence); err != nil {
			return fmt.Errorf("failed to create sequence %s: %w", d.Sequence, err)
		}
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createIndexes creates database indexes
func createIndexes(db *gorm.DB) error {
	statements := []string{
		// Case lists and victim recounts
		`CREATE INDEX IF NOT EXISTS idx_cases_victim ON cases(victim_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_last_updated ON cases(last_updated)`,
		// Notes by case
		`CREATE INDEX IF NOT EXISTS idx_case_notes_case ON case_notes(case_id)`,
		// Upcoming appointments
		`CREATE INDEX IF NOT EXISTS idx_appointments_starts_at ON appointments(starts_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_roles_pair ON user_roles(user_id, role_id)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
