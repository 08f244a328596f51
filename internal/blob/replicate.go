package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Replicator writes document content into both partition layouts.
//
// Each write is a pair of idempotent puts to deterministic paths. Callers
// treat a Write as all-or-nothing: if either put fails they retry the whole
// call, and because the paths are pure functions of the inputs the retry
// overwrites the same objects instead of duplicating anything.
type Replicator struct {
	store Store
}

// NewReplicator creates a Replicator over the given object store.
func NewReplicator(store Store) *Replicator {
	return &Replicator{store: store}
}

// WriteRaw stores payload and its metadata under both raw partitions and
// returns the derived paths.
//
// meta may be nil. When the content time is unknown the collection time is
// substituted for the by-revision partition and the stored metadata is marked
// "time_partition": "unclassified" so downstream consumers can tell intrinsic
// placement from fallback placement.
func (r *Replicator) WriteRaw(ctx context.Context, source, id string, payload []byte, meta map[string]any, contentTime, collectionTime time.Time) (Paths, error) {
	paths := DocumentPaths(source, id, contentTime, collectionTime)

	if meta == nil {
		meta = map[string]any{}
	}
	if paths.Unclassified {
		meta["time_partition"] = "unclassified"
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return paths, fmt.Errorf("replicate %s/%s: marshal metadata: %w", source, id, err)
	}

	puts := []struct {
		path string
		data []byte
	}{
		{paths.RawByRevision, payload},
		{paths.RawByCollection, payload},
		{paths.MetaByRevision, metaJSON},
		{paths.MetaByCollection, metaJSON},
	}
	for _, p := range puts {
		if err := r.store.Put(ctx, p.path, p.data); err != nil {
			return paths, fmt.Errorf("replicate %s/%s: %w", source, id, err)
		}
	}
	return paths, nil
}

// WriteProcessed stores a derived artifact (rendered markdown) under both
// processed partitions.
func (r *Replicator) WriteProcessed(ctx context.Context, source, id string, content []byte, contentTime, collectionTime time.Time) (Paths, error) {
	paths := DocumentPaths(source, id, contentTime, collectionTime)

	for _, path := range []string{paths.ProcessedByRevision, paths.ProcessedByCollection} {
		if err := r.store.Put(ctx, path, content); err != nil {
			return paths, fmt.Errorf("replicate processed %s/%s: %w", source, id, err)
		}
	}
	return paths, nil
}
