package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"docsync/internal/blob"
	"docsync/internal/quality"
)

// Failure is one document the run could not process.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Report is the user-facing outcome of one run. A copy is stored as JSON in
// the temp area for post-run inspection and picked up by retention cleanup
// later.
type Report struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Found       int  `json:"found"`
	New         int  `json:"new"`
	Updated     int  `json:"updated"`
	Unchanged   int  `json:"unchanged"`
	Failed      int  `json:"failed"`
	WithContent int  `json:"with_content"`
	DictEntries int  `json:"dict_entries"`
	Degraded    bool `json:"degraded,omitempty"`

	Quality  quality.Summary `json:"quality"`
	Failures []Failure       `json:"failures,omitempty"`

	qualityReports []quality.Report
}

// writeReport stores the report JSON under the run's temp area.
func (p *Pipeline) writeReport(ctx context.Context, r *Report, collectedAt time.Time) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	path := blob.TempPath(r.RunID, "report", "report.json", collectedAt)
	return p.Blobs.Put(ctx, path, data)
}
