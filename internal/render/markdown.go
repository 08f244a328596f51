// Package render turns fetched documents into the processed markdown
// representation: a YAML frontmatter block with the stable metadata followed
// by the cleaned document text.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"docsync/internal/source"
)

// Frontmatter is the metadata block at the top of a processed document.
// Dictionary references are resolved to names before rendering; IDs are kept
// alongside so the document remains joinable.
type Frontmatter struct {
	ID           string   `yaml:"id"`
	Reg          string   `yaml:"reg,omitempty"`
	Title        string   `yaml:"title"`
	Source       string   `yaml:"source"`
	Status       string   `yaml:"status,omitempty"`
	StatusID     int      `yaml:"status_id,omitempty"`
	Org          string   `yaml:"org,omitempty"`
	OrgID        int      `yaml:"org_id,omitempty"`
	Types        []string `yaml:"types,omitempty"`
	DocDate      string   `yaml:"doc_date,omitempty"`
	RevisionDate string   `yaml:"revision_date,omitempty"`
}

// Labels resolves dictionary IDs to display names. Unresolvable IDs render
// as empty labels; the quality checks flag them separately.
type Labels interface {
	StatusName(id int) string
	OrgName(id int) string
	TypeName(id int) string
}

// Markdown renders the full processed document.
func Markdown(sourceName string, doc *source.Document, labels Labels) ([]byte, error) {
	fm := Frontmatter{
		ID:       doc.ID,
		Reg:      doc.Reg,
		Title:    strings.TrimSpace(doc.Title),
		Source:   sourceName,
		StatusID: doc.StatusID,
		OrgID:    doc.OrgID,
	}
	if labels != nil {
		fm.Status = labels.StatusName(doc.StatusID)
		fm.Org = labels.OrgName(doc.OrgID)
		for _, id := range doc.TypeIDs {
			if name := labels.TypeName(id); name != "" {
				fm.Types = append(fm.Types, name)
			}
		}
	}
	if !doc.DocDate.IsZero() {
		fm.DocDate = doc.DocDate.Format("2006-01-02")
	}
	if !doc.RevisionDate.IsZero() {
		fm.RevisionDate = doc.RevisionDate.Format("2006-01-02")
	}

	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("render: marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n\n")
	buf.WriteString(CleanText(doc.Text))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

var (
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	blankRunsRe     = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes whitespace in upstream text: CRLF to LF, trailing
// spaces stripped, runs of blank lines collapsed to one, non-breaking spaces
// replaced.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, " ", " ")
	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Metrics are the derived text measurements stored with a document version.
type Metrics struct {
	TextLength int
	WordCount  int
}

// Measure computes metrics over the cleaned text. Length counts runes, not
// bytes, so Cyrillic text measures the same as Latin.
func Measure(text string) Metrics {
	text = CleanText(text)
	m := Metrics{TextLength: len([]rune(text))}
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			inWord = true
			m.WordCount++
		}
	}
	return m
}
