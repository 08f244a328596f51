// Package source defines the boundary to upstream document providers: the
// collector capability interface, a registry of concrete sources selected by
// configuration, and the shared rate limiter every collector draws from.
//
// The pipeline core makes no assumptions about how a collector obtains its
// data; it only consumes the (id, revision marker, attributes, raw payload,
// content time) tuples defined here.
package source

import (
	"context"
	"encoding/json"
	"time"
)

// DictionaryEntry is one reference-dictionary row from an upstream source.
type DictionaryEntry struct {
	DictType string
	EntryID  string
	Name     string
}

// DocumentItem is the minimal per-document metadata returned by a list
// collection: enough to classify the document without fetching its content.
type DocumentItem struct {
	ID           string
	Reg          string
	Title        string
	StatusID     int
	OrgID        int
	TypeIDs      []int
	DocDate      time.Time
	RevisionDate time.Time
}

// RevisionMarker renders the item's upstream revision signal for the change
// detector, or "" when the source provided none.
func (d DocumentItem) RevisionMarker() string {
	if d.RevisionDate.IsZero() {
		return ""
	}
	return d.RevisionDate.Format("2006-01-02")
}

// Document is a fully fetched document: the list item plus its text and the
// raw upstream payload for the metadata objects.
type Document struct {
	DocumentItem
	Text string
	Raw  json.RawMessage
}

// Collector is the capability interface every concrete source implements.
type Collector interface {
	// Name returns the unique source name ("rada", "court", ...).
	Name() string

	// CollectDictionaries fetches all reference dictionaries.
	CollectDictionaries(ctx context.Context) ([]DictionaryEntry, error)

	// CollectDocumentList fetches the minimal metadata of every document
	// currently visible upstream.
	CollectDocumentList(ctx context.Context) ([]DocumentItem, error)

	// CollectDocument fetches one document's full content.
	CollectDocument(ctx context.Context, item DocumentItem) (*Document, error)
}
