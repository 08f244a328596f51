package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"docsync/internal/entity"
)

// Current returns the single current record for a key.
// Returns ErrNotFound if the key has never been observed.
func (s *Store) Current(ctx context.Context, key entity.Key) (entity.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT source, entity_type, entity_id, attrs, content_hash, valid_from, valid_to, is_current
		FROM records
		WHERE source = ? AND entity_type = ? AND entity_id = ? AND is_current = 1
	`, key.Source, key.Type, key.ID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Record{}, ErrNotFound
	}
	return rec, err
}

// AsOf returns the record that was valid for the key at time t: the row with
// valid_from <= t and (valid_to unset or valid_to > t). By the no-gap
// invariant this row is unique, or absent when the key had not been observed
// by t.
func (s *Store) AsOf(ctx context.Context, key entity.Key, t time.Time) (entity.Record, error) {
	ts := formatTime(t)
	row := s.db.QueryRowContext(ctx, `
		SELECT source, entity_type, entity_id, attrs, content_hash, valid_from, valid_to, is_current
		FROM records
		WHERE source = ? AND entity_type = ? AND entity_id = ?
		  AND valid_from <= ?
		  AND (valid_to IS NULL OR valid_to > ?)
		ORDER BY valid_from DESC
		LIMIT 1
	`, key.Source, key.Type, key.ID, ts, ts)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Record{}, ErrNotFound
	}
	return rec, err
}

// BulkCurrent returns the current records for all given entity IDs under one
// (source, entity type) in a single query. IDs with no current row are simply
// absent from the result map.
//
// This is the change detector's read path: one round trip regardless of
// batch size.
func (s *Store) BulkCurrent(ctx context.Context, source, entityType string, ids []string) (map[string]entity.Record, error) {
	out := make(map[string]entity.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+2)
	args = append(args, source, entityType)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT source, entity_type, entity_id, attrs, content_hash, valid_from, valid_to, is_current
		FROM records
		WHERE source = ? AND entity_type = ? AND entity_id IN (%s) AND is_current = 1
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("bulk current: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.Key.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bulk current: iterate: %w", err)
	}

	return out, nil
}

// CurrentByType returns all current records of one entity type in a source,
// ordered by entity ID. Used for dictionary snapshots and quality checks.
func (s *Store) CurrentByType(ctx context.Context, source, entityType string) ([]entity.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, entity_type, entity_id, attrs, content_hash, valid_from, valid_to, is_current
		FROM records
		WHERE source = ? AND entity_type = ? AND is_current = 1
		ORDER BY entity_id
	`, source, entityType)
	if err != nil {
		return nil, fmt.Errorf("current by type: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// History returns all rows for a key ordered by valid_from ascending.
// Returns an empty slice (not nil) for unknown keys.
func (s *Store) History(ctx context.Context, key entity.Key) ([]entity.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, entity_type, entity_id, attrs, content_hash, valid_from, valid_to, is_current
		FROM records
		WHERE source = ? AND entity_type = ? AND entity_id = ?
		ORDER BY valid_from ASC
	`, key.Source, key.Type, key.ID)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", key, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]entity.Record, error) {
	records := []entity.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (entity.Record, error) {
	var (
		rec       entity.Record
		attrsJSON []byte
		fromStr   string
		toStr     sql.NullString
		current   int
	)
	if err := row.Scan(&rec.Key.Source, &rec.Key.Type, &rec.Key.ID, &attrsJSON, &rec.ContentHash, &fromStr, &toStr, &current); err != nil {
		return entity.Record{}, err
	}

	attrs, err := entity.UnmarshalAttrs(rec.Key.Type, attrsJSON)
	if err != nil {
		return entity.Record{}, &ConsistencyError{Key: rec.Key, Cause: err}
	}
	rec.Attributes = attrs
	rec.IsCurrent = current == 1

	rec.ValidFrom, err = time.Parse(time.RFC3339Nano, fromStr)
	if err != nil {
		return entity.Record{}, &ConsistencyError{Key: rec.Key, Cause: fmt.Errorf("stored valid_from %q unparseable: %w", fromStr, err)}
	}
	if toStr.Valid {
		rec.ValidTo, err = time.Parse(time.RFC3339Nano, toStr.String)
		if err != nil {
			return entity.Record{}, &ConsistencyError{Key: rec.Key, Cause: fmt.Errorf("stored valid_to %q unparseable: %w", toStr.String, err)}
		}
	}

	return rec, nil
}
