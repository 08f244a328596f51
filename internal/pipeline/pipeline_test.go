package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsync/internal/blob"
	"docsync/internal/entity"
	"docsync/internal/ledger"
	"docsync/internal/runlog"
	"docsync/internal/source"
)

// fakeCollector serves canned data and can fail selected documents.
type fakeCollector struct {
	dicts []source.DictionaryEntry
	items []source.DocumentItem
	texts map[string]string
	fail  map[string]error
}

func (f *fakeCollector) Name() string { return "rada" }

func (f *fakeCollector) CollectDictionaries(ctx context.Context) ([]source.DictionaryEntry, error) {
	return f.dicts, nil
}

func (f *fakeCollector) CollectDocumentList(ctx context.Context) ([]source.DocumentItem, error) {
	return f.items, nil
}

func (f *fakeCollector) CollectDocument(ctx context.Context, item source.DocumentItem) (*source.Document, error) {
	if err := f.fail[item.ID]; err != nil {
		return nil, err
	}
	return &source.Document{
		DocumentItem: item,
		Text:         f.texts[item.ID],
		Raw:          []byte(fmt.Sprintf(`{"id": %q}`, item.ID)),
	}, nil
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func docItem(id string, revDay int) source.DocumentItem {
	return source.DocumentItem{
		ID:           id,
		Title:        "Act " + id,
		StatusID:     6,
		OrgID:        95,
		TypeIDs:      []int{1},
		DocDate:      day(1),
		RevisionDate: day(revDay),
	}
}

func testCollector() *fakeCollector {
	long := ""
	for i := 0; i < 40; i++ {
		long += "Article text. "
	}
	return &fakeCollector{
		dicts: []source.DictionaryEntry{
			{DictType: "statuses", EntryID: "6", Name: "In force"},
			{DictType: "organizations", EntryID: "95", Name: "Parliament"},
			{DictType: "types", EntryID: "1", Name: "Law"},
		},
		items: []source.DocumentItem{docItem("1", 2), docItem("2", 2), docItem("3", 2)},
		texts: map[string]string{"1": long, "2": long, "3": ""},
	}
}

func newTestPipeline(t *testing.T, c source.Collector) (*Pipeline, *blob.FS) {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tracker, err := runlog.NewTracker(store.DB())
	require.NoError(t, err)

	fs, err := blob.NewFS(t.TempDir())
	require.NoError(t, err)

	return &Pipeline{
		Collector: c,
		Ledger:    store,
		Blobs:     fs,
		Tracker:   tracker,
		Workers:   2,
	}, fs
}

func TestRunFirstCollection(t *testing.T) {
	fc := testCollector()
	p, fs := newTestPipeline(t, fc)
	ctx := context.Background()

	report, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Found)
	assert.Equal(t, 3, report.New)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 2, report.WithContent, "empty document carries no content")
	assert.Equal(t, 3, report.DictEntries)
	assert.False(t, report.Degraded)
	assert.Equal(t, 3, report.Quality.Checked)

	// Ledger holds one current version per document and per dictionary entry.
	rec, err := p.Ledger.Current(ctx, entity.DocumentKey("rada", "1"))
	require.NoError(t, err)
	attrs := rec.Attributes.(entity.DocumentAttrs)
	assert.True(t, attrs.HasContent)
	assert.NotEmpty(t, attrs.Paths.RawByRevision)
	assert.NotEmpty(t, attrs.Paths.ProcessedByRevision)

	_, err = p.Ledger.Current(ctx, entity.DictionaryKey("rada", "statuses", "6"))
	require.NoError(t, err)

	// Both raw partitions are populated.
	for _, path := range []string{attrs.Paths.RawByRevision, attrs.Paths.RawByCollection} {
		ok, err := fs.Exists(ctx, path)
		require.NoError(t, err)
		assert.True(t, ok, path)
	}

	// Empty document: ledger row exists, no processed artifact.
	rec3, err := p.Ledger.Current(ctx, entity.DocumentKey("rada", "3"))
	require.NoError(t, err)
	attrs3 := rec3.Attributes.(entity.DocumentAttrs)
	assert.False(t, attrs3.HasContent)
	assert.Empty(t, attrs3.Paths.ProcessedByRevision)

	// The run is accounted.
	runs, err := p.Tracker.List(ctx, "rada", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runlog.StatusSuccess, runs[0].Status)
	assert.Equal(t, 3, runs[0].New)
}

func TestRunSecondCollectionSkipsUnchanged(t *testing.T) {
	fc := testCollector()
	p, _ := newTestPipeline(t, fc)
	ctx := context.Background()

	_, err := p.Run(ctx)
	require.NoError(t, err)

	// Document 2 gets a newer revision; 1 and 3 are unchanged upstream.
	fc.items = []source.DocumentItem{docItem("1", 2), docItem("2", 5), docItem("3", 2)}

	report, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Found)
	assert.Equal(t, 0, report.New)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 2, report.Unchanged)

	history, err := p.Ledger.History(ctx, entity.DocumentKey("rada", "2"))
	require.NoError(t, err)
	assert.Len(t, history, 2)

	history1, err := p.Ledger.History(ctx, entity.DocumentKey("rada", "1"))
	require.NoError(t, err)
	assert.Len(t, history1, 1, "unchanged document gains no version")
}

func TestRunCountsPerDocumentFailures(t *testing.T) {
	fc := testCollector()
	fc.fail = map[string]error{"2": errors.New("upstream exploded")}
	p, _ := newTestPipeline(t, fc)

	report, err := p.Run(context.Background())
	require.NoError(t, err, "per-document failures do not fail the run")

	assert.Equal(t, 2, report.New)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "2", report.Failures[0].ID)
	assert.Contains(t, report.Failures[0].Error, "upstream exploded")

	_, err = p.Ledger.Current(context.Background(), entity.DocumentKey("rada", "2"))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestRunRejectsUnresolvableStatus(t *testing.T) {
	fc := testCollector()
	fc.items = append(fc.items, func() source.DocumentItem {
		it := docItem("4", 2)
		it.StatusID = 99
		return it
	}())
	p, _ := newTestPipeline(t, fc)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.New)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Error, "status 99")

	_, err = p.Ledger.Current(context.Background(), entity.DocumentKey("rada", "4"))
	assert.ErrorIs(t, err, ledger.ErrNotFound, "rejected document gains no version")
}

func TestRunReportStoredInTempArea(t *testing.T) {
	fc := testCollector()
	p, fs := newTestPipeline(t, fc)
	ctx := context.Background()

	report, err := p.Run(ctx)
	require.NoError(t, err)

	path := blob.TempPath(report.RunID, "report", "report.json", report.StartedAt)
	data, err := fs.Get(ctx, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), report.RunID)
	assert.Contains(t, string(data), `"found": 3`)
}

func TestRunDictionarySnapshots(t *testing.T) {
	fc := testCollector()
	p, fs := newTestPipeline(t, fc)
	ctx := context.Background()

	report, err := p.Run(ctx)
	require.NoError(t, err)

	path := blob.SnapshotPath("rada", "statuses", report.StartedAt)
	data, err := fs.Get(ctx, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "In force")
}
