package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"docsync/internal/render"
	"docsync/internal/source"
)

var okRefs = Refs{
	Statuses: map[int]bool{6: true},
	Orgs:     map[int]bool{95: true},
	Types:    map[int]bool{1: true},
}

func longText() render.Metrics {
	return render.Measure(strings.Repeat("word ", 50))
}

func TestCheckCleanDocument(t *testing.T) {
	doc := &source.Document{DocumentItem: source.DocumentItem{
		ID: "1", Title: "Act", StatusID: 6, OrgID: 95, TypeIDs: []int{1},
	}}
	r := Check(doc, longText(), okRefs)
	assert.True(t, r.OK())
	assert.Equal(t, 1.0, r.Score)
}

func TestCheckMissingTitleAndContent(t *testing.T) {
	doc := &source.Document{DocumentItem: source.DocumentItem{ID: "2", StatusID: 6, OrgID: 95}}
	r := Check(doc, render.Metrics{}, okRefs)

	codes := issueCodes(r)
	assert.Contains(t, codes, "missing_title")
	assert.Contains(t, codes, "missing_content")
	assert.InDelta(t, 0.3, r.Score, 1e-9)
}

func TestCheckShortText(t *testing.T) {
	doc := &source.Document{DocumentItem: source.DocumentItem{ID: "3", Title: "Act", StatusID: 6, OrgID: 95}}
	r := Check(doc, render.Measure("too short"), okRefs)
	assert.Equal(t, []string{"short_text"}, issueCodes(r))
}

func TestCheckUnknownReferences(t *testing.T) {
	doc := &source.Document{DocumentItem: source.DocumentItem{
		ID: "4", Title: "Act", StatusID: 99, OrgID: 98, TypeIDs: []int{1, 97},
	}}
	r := Check(doc, longText(), okRefs)
	assert.ElementsMatch(t, []string{"unknown_status", "unknown_org", "unknown_type"}, issueCodes(r))
}

func TestCheckNilRefsSkipsReferenceChecks(t *testing.T) {
	doc := &source.Document{DocumentItem: source.DocumentItem{ID: "5", Title: "Act", StatusID: 99}}
	r := Check(doc, longText(), Refs{})
	assert.True(t, r.OK())
}

func TestScoreClampsAtZero(t *testing.T) {
	doc := &source.Document{DocumentItem: source.DocumentItem{
		ID: "6", StatusID: 99, OrgID: 98, TypeIDs: []int{97, 96, 94, 93},
	}}
	r := Check(doc, render.Metrics{}, okRefs)
	assert.Equal(t, 0.0, r.Score)
}

func TestSummarize(t *testing.T) {
	reports := []Report{
		{DocumentID: "1"},
		{DocumentID: "2", Issues: []Issue{{Code: "short_text"}}},
		{DocumentID: "3", Issues: []Issue{{Code: "short_text"}, {Code: "unknown_org"}}},
	}
	s := Summarize(reports)
	assert.Equal(t, 3, s.Checked)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, map[string]int{"short_text": 2, "unknown_org": 1}, s.ByCode)
}

func issueCodes(r Report) []string {
	codes := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		codes = append(codes, issue.Code)
	}
	return codes
}
