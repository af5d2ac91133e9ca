package logging

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
	"gorm.io/gorm"
)

// DefaultRetention is how long system_logs rows are kept.
const DefaultRetention = 30 * 24 * time.Hour

// StartCleanup runs a daily goroutine that deletes system_logs older than
// retention. Closing done stops it.
func StartCleanup(db *gorm.DB, retention time.Duration, done chan struct{}) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := PruneSystemLogs(db, time.Now().Add(-retention)); err != nil {
					slog.Error("log cleanup failed", "error", err)
				}
			case <-done:
				return
			}
		}
	}()
}

// PruneSystemLogs deletes rows logged before cutoff.
func PruneSystemLogs(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		slog.Info("log cleanup completed", "deleted", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
