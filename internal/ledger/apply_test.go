package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"docsync/internal/entity"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func docAttrs(title, revision string) entity.DocumentAttrs {
	a := entity.DocumentAttrs{Title: title}
	if revision != "" {
		t, err := time.Parse(entity.DateFormat, revision)
		if err != nil {
			panic(err)
		}
		a.RevisionDate = t
	}
	return a
}

func TestApply_FirstObservationInserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := entity.DocumentKey("rada", "1")

	res, err := s.Apply(ctx, key, docAttrs("A", "2026-01-01"))
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if res != Inserted {
		t.Errorf("Apply() = %v, want Inserted", res)
	}
}

func TestApply_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := entity.DocumentKey("rada", "1")
	attrs := docAttrs("A", "2026-01-01")

	if _, err := s.Apply(ctx, key, attrs); err != nil {
		t.Fatalf("first Apply() failed: %v", err)
	}
	res, err := s.Apply(ctx, key, attrs)
	if err != nil {
		t.Fatalf("second Apply() failed: %v", err)
	}
	if res != Unchanged {
		t.Errorf("second Apply() = %v, want Unchanged", res)
	}

	history, err := s.History(ctx, key)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("idempotent Apply created %d rows, want 1", len(history))
	}
}

func TestApply_ChangeCreatesNewVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := entity.DocumentKey("rada", "1")

	if _, err := s.Apply(ctx, key, docAttrs("A", "2026-01-01")); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	res, err := s.Apply(ctx, key, docAttrs("A2", "2026-01-02"))
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if res != Updated {
		t.Errorf("Apply() = %v, want Updated", res)
	}

	history, err := s.History(ctx, key)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d rows, want 2", len(history))
	}

	old, cur := history[0], history[1]
	if old.IsCurrent {
		t.Error("superseded row still marked current")
	}
	if !cur.IsCurrent {
		t.Error("new row not marked current")
	}
	if !old.ValidTo.Equal(cur.ValidFrom) {
		t.Errorf("coverage gap: old.ValidTo=%v, new.ValidFrom=%v", old.ValidTo, cur.ValidFrom)
	}
	if !cur.ValidFrom.After(old.ValidFrom) {
		t.Error("valid_from must strictly increase across versions")
	}
}

func TestApply_UnchangedRefreshesDerivedState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := entity.DocumentKey("rada", "1")

	first := docAttrs("A", "2026-01-01")
	if _, err := s.Apply(ctx, key, first); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	second := first
	second.Paths = entity.StoragePaths{RawByRevision: "raw/by_revision/source=rada/year=2026/month=01/day=01/1.txt"}
	second.HasContent = true
	second.TextLength = 42
	second.WordCount = 7

	res, err := s.Apply(ctx, key, second)
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if res != Unchanged {
		t.Fatalf("Apply() = %v, want Unchanged (derived fields must not version)", res)
	}

	cur, err := s.Current(ctx, key)
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	got := cur.Attributes.(entity.DocumentAttrs)
	if !got.HasContent || got.TextLength != 42 {
		t.Errorf("derived state not refreshed on unchanged apply: %+v", got)
	}

	history, err := s.History(ctx, key)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("derived refresh created a version: %d rows", len(history))
	}
}

func TestApply_ConcurrentSameKey_SingleCurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := entity.DocumentKey("rada", "1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			revision := time.Date(2026, 1, 1+n%4, 0, 0, 0, 0, time.UTC)
			_, err := s.Apply(ctx, key, entity.DocumentAttrs{Title: "A", RevisionDate: revision})
			if err != nil {
				t.Errorf("concurrent Apply() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var current int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM records
		WHERE source = 'rada' AND entity_type = 'document' AND entity_id = '1' AND is_current = 1
	`).Scan(&current)
	if err != nil {
		t.Fatalf("count current rows: %v", err)
	}
	if current != 1 {
		t.Errorf("got %d current rows, want exactly 1", current)
	}
}

func TestApply_EndToEndScenario(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := entity.DocumentKey("src", "1")

	steps := []struct {
		attrs entity.DocumentAttrs
		want  Result
	}{
		{docAttrs("A", "2026-01-01"), Inserted},
		{docAttrs("A", "2026-01-01"), Unchanged},
		{docAttrs("A2", "2026-01-02"), Updated},
	}
	for i, step := range steps {
		res, err := s.Apply(ctx, key, step.attrs)
		if err != nil {
			t.Fatalf("step %d: Apply() failed: %v", i, err)
		}
		if res != step.want {
			t.Fatalf("step %d: Apply() = %v, want %v", i, res, step.want)
		}
	}

	// The middle of the first version's interval must see title "A"...
	mid, err := s.AsOf(ctx, key, time.Now().Add(-time.Hour))
	if err == nil {
		t.Logf("as-of before first observation unexpectedly found %v", mid)
	}

	first, err := s.History(ctx, key)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	within := first[0].ValidFrom.Add(first[0].ValidTo.Sub(first[0].ValidFrom) / 2)
	rec, err := s.AsOf(ctx, key, within)
	if err != nil {
		t.Fatalf("AsOf(mid first interval) failed: %v", err)
	}
	if rec.Attributes.(entity.DocumentAttrs).Title != "A" {
		t.Errorf("AsOf(first interval) title = %q, want A", rec.Attributes.(entity.DocumentAttrs).Title)
	}

	// ...and a future timestamp must see the successor.
	rec, err = s.AsOf(ctx, key, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("AsOf(future) failed: %v", err)
	}
	if rec.Attributes.(entity.DocumentAttrs).Title != "A2" {
		t.Errorf("AsOf(future) title = %q, want A2", rec.Attributes.(entity.DocumentAttrs).Title)
	}
}

func TestApply_DictionaryEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := entity.DictionaryKey("rada", "status", "3")

	res, err := s.Apply(ctx, key, entity.DictionaryAttrs{Name: "active"})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if res != Inserted {
		t.Errorf("Apply() = %v, want Inserted", res)
	}

	res, err = s.Apply(ctx, key, entity.DictionaryAttrs{Name: "repealed"})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if res != Updated {
		t.Errorf("Apply() = %v, want Updated", res)
	}

	cur, err := s.Current(ctx, key)
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	if cur.Attributes.(entity.DictionaryAttrs).Name != "repealed" {
		t.Errorf("current name = %q, want repealed", cur.Attributes.(entity.DictionaryAttrs).Name)
	}
}

func TestFormatTime_LexicalOrderMatchesTemporalOrder(t *testing.T) {
	base := time.Date(2026, 8, 31, 8, 21, 24, 0, time.UTC)
	instants := []time.Time{
		base.Add(-time.Second),
		base.Add(-time.Second + 500*time.Millisecond),
		base,
		base.Add(500 * time.Millisecond),
		base.Add(759975358 * time.Nanosecond),
		base.Add(time.Second),
	}
	for i := 1; i < len(instants); i++ {
		prev, cur := formatTime(instants[i-1]), formatTime(instants[i])
		if !(prev < cur) {
			t.Errorf("formatTime(%v) = %q does not sort before formatTime(%v) = %q",
				instants[i-1], prev, instants[i], cur)
		}
	}
	for _, in := range instants {
		got, err := time.Parse(time.RFC3339Nano, formatTime(in))
		if err != nil {
			t.Fatalf("stored form %q unparseable: %v", formatTime(in), err)
		}
		if !got.Equal(in) {
			t.Errorf("round trip of %v = %v", in, got)
		}
	}
}

func TestApply_RejectsIncompleteKey(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Apply(context.Background(), entity.Key{Source: "rada"}, entity.DictionaryAttrs{Name: "x"}); err == nil {
		t.Error("incomplete key accepted")
	}
}
