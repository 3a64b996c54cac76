package database

import (
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS citext`).Error; err != nil {
		return err
	}

	return db.AutoMigrate(
		&model.File{},
		&model.Document{},
		&model.Signature{},
		&model.Field{},
		&model.CCRecipient{},
		&model.AuditLog{},
		&model.OutboxMessage{},
	)
}
