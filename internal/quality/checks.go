// Package quality scores collected documents. Checks are advisory: a failing
// document is still ingested, but its issues land in the run report so data
// regressions upstream are visible per run instead of per complaint.
package quality

import (
	"fmt"

	"docsync/internal/render"
	"docsync/internal/source"
)

// Issue is one failed check on one document.
type Issue struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// Report is the checked state of a single document.
type Report struct {
	DocumentID string  `json:"document_id"`
	Issues     []Issue `json:"issues,omitempty"`
	Score      float64 `json:"score"`
}

// OK reports whether the document passed every check.
func (r Report) OK() bool { return len(r.Issues) == 0 }

// Refs carries the known dictionary IDs for reference validation.
type Refs struct {
	Statuses map[int]bool
	Orgs     map[int]bool
	Types    map[int]bool
}

// MinTextLength is the rune count below which text counts as suspiciously
// short. Real legal acts are never this small; short text usually means a
// truncated or placeholder payload.
const MinTextLength = 100

var weights = map[string]float64{
	"missing_title":   0.3,
	"missing_content": 0.4,
	"short_text":      0.2,
	"unknown_status":  0.1,
	"unknown_org":     0.1,
	"unknown_type":    0.05,
}

// Check runs all checks against one document.
func Check(doc *source.Document, m render.Metrics, refs Refs) Report {
	r := Report{DocumentID: doc.ID}

	if doc.Title == "" {
		r.add("missing_title", "")
	}
	switch {
	case m.TextLength == 0:
		r.add("missing_content", "")
	case m.TextLength < MinTextLength:
		r.add("short_text", fmt.Sprintf("%d runes", m.TextLength))
	}
	if doc.StatusID != 0 && refs.Statuses != nil && !refs.Statuses[doc.StatusID] {
		r.add("unknown_status", fmt.Sprintf("status %d", doc.StatusID))
	}
	if doc.OrgID != 0 && refs.Orgs != nil && !refs.Orgs[doc.OrgID] {
		r.add("unknown_org", fmt.Sprintf("org %d", doc.OrgID))
	}
	if refs.Types != nil {
		for _, id := range doc.TypeIDs {
			if !refs.Types[id] {
				r.add("unknown_type", fmt.Sprintf("type %d", id))
			}
		}
	}

	r.Score = 1.0
	for _, issue := range r.Issues {
		r.Score -= weights[issue.Code]
	}
	if r.Score < 0 {
		r.Score = 0
	}
	return r
}

func (r *Report) add(code, detail string) {
	r.Issues = append(r.Issues, Issue{Code: code, Detail: detail})
}

// Summary aggregates per-document reports for the run report.
type Summary struct {
	Checked int            `json:"checked"`
	Passed  int            `json:"passed"`
	ByCode  map[string]int `json:"by_code,omitempty"`
}

// Summarize folds reports into counters.
func Summarize(reports []Report) Summary {
	s := Summary{Checked: len(reports)}
	for _, r := range reports {
		if r.OK() {
			s.Passed++
			continue
		}
		if s.ByCode == nil {
			s.ByCode = map[string]int{}
		}
		for _, issue := range r.Issues {
			s.ByCode[issue.Code]++
		}
	}
	return s
}
