package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"docsync/internal/blob"
	"docsync/internal/entity"
	"docsync/internal/quality"
	"docsync/internal/source"
)

// Dictionary types with a resolved role in rendering and validation. Other
// dictionary types are versioned and snapshotted but not used as labels.
const (
	dictStatuses      = "statuses"
	dictOrganizations = "organizations"
	dictTypes         = "types"
)

// dictLabels resolves dictionary IDs for frontmatter rendering and carries
// the known-ID sets for quality checks.
type dictLabels struct {
	statuses map[int]string
	orgs     map[int]string
	types    map[int]string
}

func (l *dictLabels) StatusName(id int) string { return l.statuses[id] }
func (l *dictLabels) OrgName(id int) string    { return l.orgs[id] }
func (l *dictLabels) TypeName(id int) string   { return l.types[id] }

func (l *dictLabels) refs() quality.Refs {
	return quality.Refs{
		Statuses: idSet(l.statuses),
		Orgs:     idSet(l.orgs),
		Types:    idSet(l.types),
	}
}

// validate rejects documents whose status reference has no current
// dictionary row. Orgs and types degrade to unlabeled frontmatter instead:
// only the status drives downstream filtering.
func (l *dictLabels) validate(doc *source.Document) error {
	if len(l.statuses) == 0 || doc.StatusID == 0 {
		return nil
	}
	if _, ok := l.statuses[doc.StatusID]; !ok {
		return &ValidationError{
			ID:     doc.ID,
			Reason: fmt.Sprintf("status %d has no current dictionary row", doc.StatusID),
		}
	}
	return nil
}

func idSet(m map[int]string) map[int]bool {
	if len(m) == 0 {
		return nil
	}
	set := make(map[int]bool, len(m))
	for id := range m {
		set[id] = true
	}
	return set
}

// ingestDictionaries versions every entry in the ledger, snapshots each
// dictionary to the content store, and builds the label resolver.
func (p *Pipeline) ingestDictionaries(
	ctx context.Context,
	sourceName string,
	entries []source.DictionaryEntry,
	collectedAt time.Time,
) (*dictLabels, error) {
	labels := &dictLabels{
		statuses: map[int]string{},
		orgs:     map[int]string{},
		types:    map[int]string{},
	}
	byType := map[string][]source.DictionaryEntry{}

	for _, e := range entries {
		key := entity.DictionaryKey(sourceName, e.DictType, e.EntryID)
		if _, err := p.Ledger.Apply(ctx, key, entity.DictionaryAttrs{Name: e.Name}); err != nil {
			return nil, fmt.Errorf("dictionary %s/%s: %w", e.DictType, e.EntryID, err)
		}
		byType[e.DictType] = append(byType[e.DictType], e)

		id, err := strconv.Atoi(e.EntryID)
		if err != nil {
			continue
		}
		switch e.DictType {
		case dictStatuses:
			labels.statuses[id] = e.Name
		case dictOrganizations:
			labels.orgs[id] = e.Name
		case dictTypes:
			labels.types[id] = e.Name
		}
	}

	for dictType, group := range byType {
		snap, err := json.Marshal(group)
		if err != nil {
			return nil, fmt.Errorf("dictionary %s: marshal snapshot: %w", dictType, err)
		}
		path := blob.SnapshotPath(sourceName, dictType, collectedAt)
		if err := p.Blobs.Put(ctx, path, snap); err != nil {
			return nil, fmt.Errorf("dictionary %s: snapshot: %w", dictType, err)
		}
	}
	return labels, nil
}
