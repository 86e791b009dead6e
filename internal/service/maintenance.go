package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jask/recordboard/internal/database"
)

// resetTables lists user tables children first.
var resetTables = []string{
	"duplicate_candidates",
	"record_tags",
	"records",
	"tags",
	"categories",
	"collections",
}

// MaintenanceService houses destructive actions surfaced through the TUI and CLI.
type MaintenanceService struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// Reset wipes all user data. It keeps the schema intact so the app can continue running.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range resetTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	if s.Logger != nil {
		s.Logger.Warn("user data reset")
	}
	return nil
}
