package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DateFormat is the canonical rendering of date-valued fields in hashes and
// revision markers. Zero times render as "".
const DateFormat = "2006-01-02"

// Attrs is the observed state of an entity at one point in time.
//
// ContentHash must be deterministic over the semantic fields only: two Attrs
// values with equal hashes are "no observable change" to the ledger. Volatile
// fields (storage paths, text metrics, collection timestamps) are excluded.
type Attrs interface {
	// ContentHash returns the hex SHA-256 change-detection digest.
	ContentHash() string

	// RevisionMarker returns the upstream revision marker used by the bulk
	// change detector, or "" when the entity has none.
	RevisionMarker() string
}

// StoragePaths holds the four object-store locations of a document's content.
// Paths are derived, not semantic: they never participate in the content hash.
type StoragePaths struct {
	RawByRevision         string `json:"raw_by_revision,omitempty"`
	RawByCollection       string `json:"raw_by_collection,omitempty"`
	ProcessedByRevision   string `json:"processed_by_revision,omitempty"`
	ProcessedByCollection string `json:"processed_by_collection,omitempty"`
}

// DocumentAttrs is the attribute shape for TypeDocument entities.
type DocumentAttrs struct {
	Title        string    `json:"title"`
	Reg          string    `json:"reg,omitempty"`
	StatusID     int       `json:"status_id,omitempty"`
	OrgID        int       `json:"org_id,omitempty"`
	TypeIDs      []int     `json:"type_ids,omitempty"`
	DocDate      time.Time `json:"doc_date,omitzero"`
	RevisionDate time.Time `json:"revision_date,omitzero"`

	// Derived state, excluded from the content hash.
	Paths       StoragePaths `json:"paths"`
	HasContent  bool         `json:"has_content"`
	TextLength  int          `json:"text_length"`
	WordCount   int          `json:"word_count"`
	CollectedAt time.Time    `json:"collected_at,omitzero"`
}

// ContentHash covers title, registration, status, org, type set and both
// dates. The revision marker is deliberately part of the hash so the bulk
// detector and the ledger can never disagree about "changed".
func (a DocumentAttrs) ContentHash() string {
	fields := []string{
		a.Title,
		a.Reg,
		strconv.Itoa(a.StatusID),
		strconv.Itoa(a.OrgID),
		formatDate(a.DocDate),
		formatDate(a.RevisionDate),
	}
	for _, id := range a.TypeIDs {
		fields = append(fields, strconv.Itoa(id))
	}
	return hashFields(domainDocument, fields...)
}

// RevisionMarker returns the upstream revision date, or "" when unknown.
func (a DocumentAttrs) RevisionMarker() string {
	return formatDate(a.RevisionDate)
}

// DictionaryAttrs is the attribute shape for dictionary entries.
type DictionaryAttrs struct {
	Name string `json:"name"`
}

func (a DictionaryAttrs) ContentHash() string {
	return hashFields(domainDictionary, a.Name)
}

// RevisionMarker is always "" for dictionaries: they carry no upstream
// revision signal and are classified by content hash alone.
func (a DictionaryAttrs) RevisionMarker() string {
	return ""
}

// UnmarshalAttrs decodes a serialized attribute payload into the typed shape
// for the given entity type.
func UnmarshalAttrs(entityType string, data []byte) (Attrs, error) {
	switch {
	case entityType == TypeDocument:
		var a DocumentAttrs
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal document attrs: %w", err)
		}
		return a, nil
	case Key{Type: entityType}.IsDictionary():
		var a DictionaryAttrs
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal dictionary attrs: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateFormat)
}
