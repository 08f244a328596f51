// Package pipeline wires a collection run end to end: collect, classify,
// fetch, render, replicate, version, account.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docsync/internal/blob"
	"docsync/internal/detect"
	"docsync/internal/entity"
	"docsync/internal/ledger"
	"docsync/internal/quality"
	"docsync/internal/render"
	"docsync/internal/retry"
	"docsync/internal/runlog"
	"docsync/internal/source"
)

// checkpointEvery bounds run-progress staleness: a crashed run loses at most
// this many documents of accounting.
const checkpointEvery = 25

// Pipeline holds the wired components of one configured source.
type Pipeline struct {
	Collector source.Collector
	Ledger    *ledger.Store
	Blobs     blob.Store
	Tracker   *runlog.Tracker

	// Workers bounds concurrent document fetches. Zero means 4.
	Workers int

	// Retry applies to per-document fetch and store operations.
	Retry retry.Policy
}

func (p *Pipeline) workers() int {
	if p.Workers <= 0 {
		return 4
	}
	return p.Workers
}

// Run executes one full collection run and returns its report. Per-document
// failures are counted and listed, not fatal; Run returns an error only when
// the run as a whole cannot proceed or cannot be accounted.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("pipeline: run id: %w", err)
	}
	sourceName := p.Collector.Name()
	log := slog.With("run_id", runID.String(), "source", sourceName)

	run, err := p.Tracker.Start(ctx, runID.String(), sourceName, 0)
	if err != nil {
		return nil, fmt.Errorf("pipeline: start run: %w", err)
	}
	log.Info("run started", "workers", p.workers())

	report, runErr := p.execute(ctx, log, run)
	status, errMsg := runlog.StatusSuccess, ""
	if runErr != nil {
		status, errMsg = runlog.StatusFailed, runErr.Error()
	}
	if err := run.Finish(ctx, status, errMsg); err != nil {
		log.Error("run accounting lost", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return report, fmt.Errorf("pipeline: %w", runErr)
	}
	log.Info("run finished",
		"found", report.Found, "new", report.New, "updated", report.Updated,
		"unchanged", report.Unchanged, "failed", report.Failed)
	return report, nil
}

func (p *Pipeline) execute(ctx context.Context, log *slog.Logger, run *runlog.Run) (*Report, error) {
	sourceName := p.Collector.Name()
	collectedAt := time.Now().UTC()
	report := &Report{
		RunID:     run.ID(),
		Source:    sourceName,
		StartedAt: collectedAt,
	}

	// Dictionaries and the document list have no data dependency; collect
	// them concurrently.
	var (
		entries []source.DictionaryEntry
		items   []source.DocumentItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = p.Collector.CollectDictionaries(gctx)
		if err != nil {
			return fmt.Errorf("collect dictionaries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		items, err = p.Collector.CollectDocumentList(gctx)
		if err != nil {
			return fmt.Errorf("collect document list: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		report.CompletedAt = time.Now().UTC()
		return report, err
	}

	labels, err := p.ingestDictionaries(ctx, sourceName, entries, collectedAt)
	if err != nil {
		report.CompletedAt = time.Now().UTC()
		return report, err
	}
	report.DictEntries = len(entries)

	// Classify against the ledger in one batched read.
	detector := detect.New(p.Ledger)
	candidates := make([]detect.Candidate, len(items))
	byID := make(map[string]source.DocumentItem, len(items))
	for i, item := range items {
		candidates[i] = detect.Candidate{ID: item.ID, Marker: item.RevisionMarker()}
		byID[item.ID] = item
	}
	cls := detector.Classify(ctx, sourceName, entity.TypeDocument, candidates)

	run.SetFound(len(items))
	report.Found = len(items)
	report.Degraded = cls.Degraded
	for range cls.Unchanged {
		run.Record(runlog.OutcomeUnchanged)
	}
	log.Info("classified",
		"new", len(cls.New), "changed", len(cls.Changed),
		"unchanged", len(cls.Unchanged), "degraded", cls.Degraded)

	p.processDocuments(ctx, log, run, report, cls.Fetch(), byID, labels, collectedAt)

	snap := run.Snapshot()
	report.New = snap.New
	report.Updated = snap.Updated
	report.Unchanged = snap.Unchanged
	report.Failed = snap.Failed
	report.WithContent = snap.WithContent
	report.CompletedAt = time.Now().UTC()
	report.Quality = quality.Summarize(report.qualityReports)

	if err := p.writeReport(ctx, report, collectedAt); err != nil {
		log.Warn("run report not stored", "error", err)
	}
	return report, ctx.Err()
}

// processDocuments runs the fetch workers. Failures are recorded per
// document; only context cancellation stops the pool early.
func (p *Pipeline) processDocuments(
	ctx context.Context,
	log *slog.Logger,
	run *runlog.Run,
	report *Report,
	todo []detect.Candidate,
	byID map[string]source.DocumentItem,
	labels *dictLabels,
	collectedAt time.Time,
) {
	var (
		mu   sync.Mutex
		done atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for _, cand := range todo {
		item, ok := byID[cand.ID]
		if !ok {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			qr, err := p.processOne(gctx, run, item, labels, collectedAt)
			mu.Lock()
			if qr != nil {
				report.qualityReports = append(report.qualityReports, *qr)
			}
			if err != nil {
				report.Failures = append(report.Failures, Failure{ID: item.ID, Error: err.Error()})
			}
			mu.Unlock()
			if err != nil {
				run.Record(runlog.OutcomeFailed)
				log.Warn("document failed", "id", item.ID, "error", err)
			}
			if done.Add(1)%checkpointEvery == 0 {
				if err := run.Checkpoint(gctx); err != nil {
					log.Warn("checkpoint failed", "error", err)
				}
			}
			return nil
		})
	}
	// Worker errors are accounted per document; Wait only surfaces
	// cancellation, which execute reports via ctx.Err.
	_ = g.Wait()
}

// processOne moves a single document through fetch, replicate, render, and
// the ledger. The quality report is returned even when later steps fail so
// the run summary still sees the document.
func (p *Pipeline) processOne(
	ctx context.Context,
	run *runlog.Run,
	item source.DocumentItem,
	labels *dictLabels,
	collectedAt time.Time,
) (*quality.Report, error) {
	var doc *source.Document
	err := retry.Do(ctx, p.Retry, func(ctx context.Context) error {
		var err error
		doc, err = p.Collector.CollectDocument(ctx, item)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	repl := blob.NewReplicator(p.Blobs)
	sourceName := p.Collector.Name()
	metrics := render.Measure(doc.Text)
	qr := quality.Check(doc, metrics, labels.refs())

	if err := labels.validate(doc); err != nil {
		return &qr, err
	}

	var rawPaths, procPaths blob.Paths
	err = retry.Do(ctx, p.Retry, func(ctx context.Context) error {
		var err error
		rawPaths, err = repl.WriteRaw(ctx, sourceName, doc.ID, doc.Raw, nil,
			doc.RevisionDate, collectedAt)
		return retry.Transient(err)
	})
	if err != nil {
		return &qr, fmt.Errorf("store raw: %w", err)
	}

	hasContent := metrics.TextLength > 0
	if hasContent {
		rendered, err := render.Markdown(sourceName, doc, labels)
		if err != nil {
			return &qr, fmt.Errorf("render: %w", err)
		}
		err = retry.Do(ctx, p.Retry, func(ctx context.Context) error {
			var err error
			procPaths, err = repl.WriteProcessed(ctx, sourceName, doc.ID, rendered,
				doc.RevisionDate, collectedAt)
			return retry.Transient(err)
		})
		if err != nil {
			return &qr, fmt.Errorf("store processed: %w", err)
		}
	}

	attrs := entity.DocumentAttrs{
		Title:        doc.Title,
		Reg:          doc.Reg,
		StatusID:     doc.StatusID,
		OrgID:        doc.OrgID,
		TypeIDs:      doc.TypeIDs,
		DocDate:      doc.DocDate,
		RevisionDate: doc.RevisionDate,
		Paths: entity.StoragePaths{
			RawByRevision:         rawPaths.RawByRevision,
			RawByCollection:       rawPaths.RawByCollection,
			ProcessedByRevision:   procPaths.ProcessedByRevision,
			ProcessedByCollection: procPaths.ProcessedByCollection,
		},
		HasContent:  hasContent,
		TextLength:  metrics.TextLength,
		WordCount:   metrics.WordCount,
		CollectedAt: collectedAt,
	}
	result, err := p.Ledger.Apply(ctx, entity.DocumentKey(sourceName, doc.ID), attrs)
	if err != nil {
		return &qr, fmt.Errorf("ledger: %w", err)
	}

	switch result {
	case ledger.Inserted:
		run.Record(runlog.OutcomeNew)
	case ledger.Updated:
		run.Record(runlog.OutcomeUpdated)
	default:
		run.Record(runlog.OutcomeUnchanged)
	}
	if hasContent {
		run.Record(runlog.OutcomeWithContent)
	}
	return &qr, nil
}
