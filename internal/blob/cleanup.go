package blob

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupTemp deletes temp-area objects older than the retention period.
// Temp objects are grouped under tmp/date=YYYY-MM-DD, so whole days are
// dropped at once. Returns the number of objects removed (or that would be
// removed, when dryRun is set).
func (s *FS) CleanupTemp(ctx context.Context, retentionDays int, dryRun bool) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	tmpRoot := filepath.Join(s.root, "tmp")

	entries, err := os.ReadDir(tmpRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "date=") {
			continue
		}

		day, err := time.Parse("2006-01-02", strings.TrimPrefix(entry.Name(), "date="))
		if err != nil {
			slog.Warn("temp area entry with unparseable date, skipping", "entry", entry.Name())
			continue
		}
		if !day.Before(cutoff) {
			continue
		}

		dir := filepath.Join(tmpRoot, entry.Name())
		count := 0
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				count++
			}
			return nil
		})

		if dryRun {
			slog.Info("would delete temp day", "date", entry.Name(), "objects", count)
		} else {
			if err := os.RemoveAll(dir); err != nil {
				return removed, err
			}
			slog.Info("deleted temp day", "date", entry.Name(), "objects", count)
		}
		removed += count
	}

	return removed, nil
}
