package database

import (
	"fmt"

	"gorm.io/gorm"
)

// indexes are kept on one line each. The sqlite migrator re-parses stored
// DDL on every AutoMigrate and rejects statements spanning several lines.
var indexes = []string{
	// Reverse lookup for a judge's judgements
	`CREATE INDEX IF NOT EXISTS idx_judgement_authorship_judge ON judgement_authorship(judge_id)`,
	// Content pass scans judgements without text, oldest first
	`CREATE INDEX IF NOT EXISTS idx_judgements_pending_content ON judgements(date) WHERE text_content IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_runs_started ON scrape_runs(started_at)`,
}

// RunMigrations executes all database migrations
func RunMigrations(db *gorm.DB) error {
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
