package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"jan-server/services/archive-api/internal/infrastructure/database/entities"
)

// AutoMigrate creates the document tables and the import history table.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.ConversationDocument{},
		&entities.UserDocument{},
		&entities.ProjectDocument{},
		&entities.ImportHistory{},
	); err != nil {
		return err
	}

	log.Info().Msg("database schema up to date")
	return nil
}
