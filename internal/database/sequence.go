package database

import (
	"fmt"
	"regexp"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// sequenceRow backs emulated sequences on databases without native ones.
type sequenceRow struct {
	Name  string `gorm:"primaryKey"`
	Value int64
}

func (sequenceRow) TableName() string { return "sequences" }

// CreateSequence makes sure a named sequence exists.
func CreateSequence(tx *gorm.DB, name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid sequence name %q", name)
	}

	if tx.Dialector.Name() == "postgres" {
		return tx.Exec("CREATE SEQUENCE IF NOT EXISTS " + name + " START WITH 1 INCREMENT BY 1").Error
	}

	if err := tx.AutoMigrate(&sequenceRow{}); err != nil {
		return err
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&sequenceRow{Name: name}).Error
}

// NextID increments a named sequence and returns the new value. On
// emulated sequences tx should be a transaction.
func NextID(tx *gorm.DB, name string) (int64, error) {
	if !identifierPattern.MatchString(name) {
		return 0, fmt.Errorf("invalid sequence name %q", name)
	}

	var id int64
	if tx.Dialector.Name() == "postgres" {
		if err := tx.Raw("SELECT nextval(?)", name).Scan(&id).Error; err != nil {
			return 0, fmt.Errorf("sequence %s: %w", name, err)
		}
		return id, nil
	}

	res := tx.Model(&sequenceRow{}).Where("name = ?", name).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("sequence %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("sequence %s does not exist", name)
	}
	if err := tx.Model(&sequenceRow{}).Select("value").Where("name = ?", name).Scan(&id).Error; err != nil {
		return 0, fmt.Errorf("sequence %s: %w", name, err)
	}
	return id, nil
}
