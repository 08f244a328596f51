package blob

import (
	"fmt"
	"time"
)

// Paths holds every object-store location derived for one document. All of
// them are pure functions of (source, id, content time, collection time):
// re-deriving them for a retry always lands on the same objects.
type Paths struct {
	RawByRevision         string
	RawByCollection       string
	MetaByRevision        string
	MetaByCollection      string
	ProcessedByRevision   string
	ProcessedByCollection string

	// Unclassified is set when the content time was unknown and the
	// collection time was substituted for the by-revision partition.
	Unclassified bool
}

// DocumentPaths derives the dual-write layout for a document.
//
// The by-revision partition groups objects by the document's own revision
// date (year/month/day) and is stable under reprocessing; the by-collection
// partition groups by the wall-clock date of the run for operational audit.
func DocumentPaths(source, id string, contentTime, collectionTime time.Time) Paths {
	p := Paths{}
	rev := contentTime
	if rev.IsZero() {
		rev = collectionTime
		p.Unclassified = true
	}

	revDir := fmt.Sprintf("by_revision/source=%s/year=%04d/month=%02d/day=%02d",
		source, rev.Year(), int(rev.Month()), rev.Day())
	colDir := fmt.Sprintf("by_collection/date=%s/source=%s",
		collectionTime.Format("2006-01-02"), source)

	p.RawByRevision = fmt.Sprintf("raw/%s/%s.txt", revDir, id)
	p.RawByCollection = fmt.Sprintf("raw/%s/%s.txt", colDir, id)
	p.MetaByRevision = fmt.Sprintf("raw/%s/%s.meta.json", revDir, id)
	p.MetaByCollection = fmt.Sprintf("raw/%s/%s.meta.json", colDir, id)
	p.ProcessedByRevision = fmt.Sprintf("processed/%s/%s.md", revDir, id)
	p.ProcessedByCollection = fmt.Sprintf("processed/%s/%s.md", colDir, id)
	return p
}

// SnapshotPath is the location of one dictionary type's current-state
// snapshot for a given day.
func SnapshotPath(source, dictType string, date time.Time) string {
	return fmt.Sprintf("dictionaries/snapshots/source=%s/date=%s/%s.json",
		source, date.Format("2006-01-02"), dictType)
}

// TempPath is the location of a transient run artifact (reports, failure
// lists). Temp objects are grouped by date first so retention cleanup can
// drop whole days.
func TempPath(runID, task, filename string, date time.Time) string {
	return fmt.Sprintf("tmp/date=%s/run_id=%s/%s/%s",
		date.Format("2006-01-02"), runID, task, filename)
}
