// Package detect classifies a batch of upstream candidates against the
// ledger's current state without per-entity round trips.
package detect

import (
	"context"
	"log/slog"

	"docsync/internal/entity"
)

// Candidate is one upstream (entity id, revision marker) pair.
type Candidate struct {
	ID     string
	Marker string
}

// Classification partitions a candidate batch by what the ledger knows.
type Classification struct {
	New       []Candidate
	Changed   []Candidate
	Unchanged []Candidate

	// Degraded is set when the bulk read failed and everything was
	// classified Changed as a fail-safe.
	Degraded bool
}

// Fetch returns the candidates that need downloading: New followed by Changed.
func (c Classification) Fetch() []Candidate {
	out := make([]Candidate, 0, len(c.New)+len(c.Changed))
	out = append(out, c.New...)
	return append(out, c.Changed...)
}

// BulkReader is the single batched read the detector needs from the ledger.
type BulkReader interface {
	BulkCurrent(ctx context.Context, source, entityType string, ids []string) (map[string]entity.Record, error)
}

// Detector compares upstream revision markers against stored ones.
type Detector struct {
	ledger BulkReader
}

// New creates a Detector over the given ledger read path.
func New(ledger BulkReader) *Detector {
	return &Detector{ledger: ledger}
}

// Classify splits candidates into new, changed and unchanged using exactly
// one bulk read against the ledger.
//
// Decision rules, biased toward re-downloading over silent skipping:
//   - no current row for the id: new
//   - missing or empty marker on either side: changed
//   - markers differ: changed
//   - markers equal: unchanged
//
// If the bulk read itself fails, the detector degrades: every candidate is
// returned as changed and the result is flagged Degraded. It never reports
// unchanged on error.
func (d *Detector) Classify(ctx context.Context, source, entityType string, candidates []Candidate) Classification {
	var c Classification
	if len(candidates) == 0 {
		return c
	}

	ids := make([]string, len(candidates))
	for i, cand := range candidates {
		ids[i] = cand.ID
	}

	stored, err := d.ledger.BulkCurrent(ctx, source, entityType, ids)
	if err != nil {
		slog.Warn("bulk ledger read failed, degrading to re-download of the whole batch",
			"source", source,
			"entity_type", entityType,
			"candidates", len(candidates),
			"error", err)
		c.Changed = append(c.Changed, candidates...)
		c.Degraded = true
		return c
	}

	for _, cand := range candidates {
		rec, ok := stored[cand.ID]
		if !ok {
			c.New = append(c.New, cand)
			continue
		}

		storedMarker := rec.Attributes.RevisionMarker()
		if cand.Marker == "" || storedMarker == "" {
			c.Changed = append(c.Changed, cand)
			continue
		}
		if cand.Marker != storedMarker {
			c.Changed = append(c.Changed, cand)
			continue
		}
		c.Unchanged = append(c.Unchanged, cand)
	}

	return c
}
