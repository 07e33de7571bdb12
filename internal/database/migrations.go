package database

import (
	"errors"
	"time"

	"github.com/instructa/constructa/internal/boards"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillBoardNames = "2026-08-20_backfill_empty_board_names"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillBoardNames, apply: backfillEmptyBoardNames},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Boards created before name fallback moved server-side could be stored
// with an empty name; give them the derived one.
func backfillEmptyBoardNames(db *gorm.DB) error {
	var affected []boards.Board
	if err := db.Where("name = ''").Find(&affected).Error; err != nil {
		return err
	}
	for _, board := range affected {
		if err := db.Model(&boards.Board{}).
			Where("id = ?", board.ID).
			Update("name", boards.FallbackName(board.Slug)).Error; err != nil {
			return err
		}
	}
	return nil
}
