package ledger

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"docsync/internal/entity"
)

// Result classifies the outcome of one Apply call.
type Result int

const (
	// Unchanged means the current row already carries this content hash.
	Unchanged Result = iota
	// Inserted means the key had no row and a first version was created.
	Inserted
	// Updated means the current row was closed and superseded.
	Updated
)

func (r Result) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// applyMaxAttempts bounds the optimistic retry loop. Losing the race on the
// partial unique index more than twice in a row means something is wrong
// beyond ordinary contention.
const applyMaxAttempts = 3

// Apply commits one observation of a key as a single atomic transition.
//
// The protocol per call:
//  1. compute the content hash of attrs,
//  2. read the current row for the key inside a transaction,
//  3. no current row: insert the first version (Inserted),
//  4. hash equal: refresh derived state in place, no new version (Unchanged),
//  5. otherwise: close the current row and insert the successor with
//     valid_to == successor.valid_from, in the same transaction (Updated).
//
// Two Apply calls racing on the same key are serialized by the database: the
// loser hits the single-current unique index and the whole read-compare-write
// cycle is retried. Exhausting the retries is a ConsistencyError.
func (s *Store) Apply(ctx context.Context, key entity.Key, attrs entity.Attrs) (Result, error) {
	if err := key.Validate(); err != nil {
		return Unchanged, err
	}

	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return Unchanged, fmt.Errorf("marshal attrs for %s: %w", key, err)
	}
	hash := attrs.ContentHash()

	var lastErr error
	for attempt := 1; attempt <= applyMaxAttempts; attempt++ {
		res, err := s.applyOnce(ctx, key, attrs, attrsJSON, hash)
		if err == nil {
			return res, nil
		}
		if !isUniqueViolation(err) {
			return Unchanged, err
		}
		lastErr = err
	}

	return Unchanged, &ConsistencyError{Key: key, Attempts: applyMaxAttempts, Cause: lastErr}
}

// applyOnce runs one read-compare-write cycle in a single transaction.
func (s *Store) applyOnce(ctx context.Context, key entity.Key, attrs entity.Attrs, attrsJSON []byte, hash string) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Unchanged, fmt.Errorf("apply %s: begin tx: %w", key, err)
	}
	defer tx.Rollback() // No-op if committed

	var (
		curID      int64
		curHash    string
		curFromStr string
		curAttrs   []byte
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, content_hash, valid_from, attrs
		FROM records
		WHERE source = ? AND entity_type = ? AND entity_id = ? AND is_current = 1
	`, key.Source, key.Type, key.ID).Scan(&curID, &curHash, &curFromStr, &curAttrs)

	now := time.Now().UTC()

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := insertRow(ctx, tx, key, attrsJSON, hash, now); err != nil {
			return Unchanged, err
		}
		if err := tx.Commit(); err != nil {
			return Unchanged, fmt.Errorf("apply %s: commit insert: %w", key, err)
		}
		return Inserted, nil

	case err != nil:
		return Unchanged, fmt.Errorf("apply %s: read current row: %w", key, err)
	}

	if curHash == hash {
		// Same observable content. Derived state (storage paths, text
		// metrics, collected-at) may still be fresher; write it back onto
		// the current row without opening a new version.
		if _, isDoc := attrs.(entity.DocumentAttrs); isDoc && !bytes.Equal(attrsJSON, curAttrs) {
			if _, err := tx.ExecContext(ctx, `UPDATE records SET attrs = ? WHERE id = ?`, string(attrsJSON), curID); err != nil {
				return Unchanged, fmt.Errorf("apply %s: refresh derived state: %w", key, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return Unchanged, fmt.Errorf("apply %s: commit unchanged: %w", key, err)
		}
		return Unchanged, nil
	}

	curFrom, err := time.Parse(time.RFC3339Nano, curFromStr)
	if err != nil {
		return Unchanged, &ConsistencyError{Key: key, Cause: fmt.Errorf("stored valid_from %q unparseable: %w", curFromStr, err)}
	}
	if !now.After(curFrom) {
		// Clock regression guard: valid_from must strictly increase.
		now = curFrom.Add(time.Microsecond)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE records SET valid_to = ?, is_current = 0 WHERE id = ?
	`, formatTime(now), curID); err != nil {
		return Unchanged, fmt.Errorf("apply %s: close current row: %w", key, err)
	}

	if err := insertRow(ctx, tx, key, attrsJSON, hash, now); err != nil {
		return Unchanged, err
	}

	if err := tx.Commit(); err != nil {
		return Unchanged, fmt.Errorf("apply %s: commit update: %w", key, err)
	}
	return Updated, nil
}

func insertRow(ctx context.Context, tx *sql.Tx, key entity.Key, attrsJSON []byte, hash string, validFrom time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO records (source, entity_type, entity_id, attrs, content_hash, valid_from, valid_to, is_current)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 1)
	`, key.Source, key.Type, key.ID, string(attrsJSON), hash, formatTime(validFrom))
	if err != nil {
		return fmt.Errorf("apply %s: insert row: %w", key, err)
	}
	return nil
}

// isUniqueViolation reports whether err is the database rejecting a second
// current row for a key.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	if serr.Code != sqlite3.ErrConstraint {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// timeLayout is fixed-width so that the TEXT comparisons in the temporal
// queries order the same way the instants do. RFC3339Nano must not be used
// here: it trims trailing fractional zeros, and a whole-second "...05Z" sorts
// after "...05.5Z" lexicographically while being earlier in time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
