package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"docsync/internal/retry"
)

func init() {
	Register("rada", newRadaCollector)
}

// radaCollector talks to the parliament open-data API. Authentication is a
// token sent as the User-Agent; when the token is rejected the collector
// falls back to the anonymous open-data agent string for the rest of the run.
type radaCollector struct {
	cfg     Config
	client  *http.Client
	limiter *Limiter

	// anonymous flips once when the token is rejected; workers fetch
	// concurrently, hence the atomic.
	anonymous atomic.Bool
}

func newRadaCollector(cfg Config, limiter *Limiter) (Collector, error) {
	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("source %q: api.base_url is required", cfg.Name)
	}
	if cfg.API.ListPath == "" || cfg.API.DocPath == "" {
		return nil, fmt.Errorf("source %q: api.list_path and api.doc_path are required", cfg.Name)
	}
	if !strings.Contains(cfg.API.DocPath, "{id}") {
		return nil, fmt.Errorf("source %q: api.doc_path must contain a {id} placeholder", cfg.Name)
	}
	timeout := cfg.API.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &radaCollector{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}, nil
}

func (c *radaCollector) Name() string { return "rada" }

// radaListItem mirrors one entry of the upstream document list. The lenient
// field types absorb the payload quirks: dates as YYYYMMDD integers or ISO
// strings, numbers as strings, type lists pipe-separated.
type radaListItem struct {
	ID      flexInt     `json:"id"`
	Reg     string      `json:"reg"`
	Title   string      `json:"title"`
	Status  flexInt     `json:"status"`
	Org     flexInt     `json:"org"`
	Types   flexIntList `json:"types"`
	Date    flexDate    `json:"date"`
	Revised flexDate    `json:"revised"`
}

func (it radaListItem) toItem() DocumentItem {
	return DocumentItem{
		ID:           strconv.Itoa(int(it.ID)),
		Reg:          it.Reg,
		Title:        it.Title,
		StatusID:     int(it.Status),
		OrgID:        int(it.Org),
		TypeIDs:      []int(it.Types),
		DocDate:      it.Date.Time,
		RevisionDate: it.Revised.Time,
	}
}

type radaListPage struct {
	TotalPages int            `json:"total_pages"`
	Items      []radaListItem `json:"items"`
}

func (c *radaCollector) CollectDocumentList(ctx context.Context) ([]DocumentItem, error) {
	var out []DocumentItem
	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		if max := c.cfg.API.MaxPages; max > 0 && page > max {
			slog.Warn("document list truncated at page cap",
				"source", c.Name(), "max_pages", max, "total_pages", totalPages)
			break
		}
		body, err := c.get(ctx, c.pageURL(page))
		if err != nil {
			return nil, fmt.Errorf("list page %d: %w", page, err)
		}
		var pg radaListPage
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, fmt.Errorf("list page %d: decode: %w", page, err)
		}
		if pg.TotalPages > totalPages {
			totalPages = pg.TotalPages
		}
		for _, it := range pg.Items {
			if it.ID == 0 {
				continue
			}
			out = append(out, it.toItem())
		}
	}
	return out, nil
}

func (c *radaCollector) pageURL(page int) string {
	sep := "?"
	if strings.Contains(c.cfg.API.ListPath, "?") {
		sep = "&"
	}
	return c.cfg.API.BaseURL + c.cfg.API.ListPath + sep + "page=" + strconv.Itoa(page)
}

// radaDocument is the full-document payload: the list fields plus text.
type radaDocument struct {
	radaListItem
	Text string `json:"text"`
}

func (c *radaCollector) CollectDocument(ctx context.Context, item DocumentItem) (*Document, error) {
	path := strings.ReplaceAll(c.cfg.API.DocPath, "{id}", item.ID)
	body, err := c.get(ctx, c.cfg.API.BaseURL+path)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", item.ID, err)
	}
	var doc radaDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("document %s: decode: %w", item.ID, err)
	}

	got := doc.toItem()
	// The list item is authoritative for identity; document-level fields
	// override only when the detail endpoint actually carries them.
	merged := item
	if got.Title != "" {
		merged.Title = got.Title
	}
	if got.StatusID != 0 {
		merged.StatusID = got.StatusID
	}
	if got.OrgID != 0 {
		merged.OrgID = got.OrgID
	}
	if len(got.TypeIDs) > 0 {
		merged.TypeIDs = got.TypeIDs
	}
	if !got.DocDate.IsZero() {
		merged.DocDate = got.DocDate
	}
	if !got.RevisionDate.IsZero() {
		merged.RevisionDate = got.RevisionDate
	}
	return &Document{DocumentItem: merged, Text: doc.Text, Raw: body}, nil
}

type radaDictEntry struct {
	ID   flexInt `json:"id"`
	Name string  `json:"name"`
}

func (c *radaCollector) CollectDictionaries(ctx context.Context) ([]DictionaryEntry, error) {
	var out []DictionaryEntry
	for _, dict := range c.cfg.Dictionaries {
		body, err := c.get(ctx, c.cfg.API.BaseURL+dict.Path)
		if err != nil {
			return nil, fmt.Errorf("dictionary %s: %w", dict.Type, err)
		}
		var entries []radaDictEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("dictionary %s: decode: %w", dict.Type, err)
		}
		for _, e := range entries {
			out = append(out, DictionaryEntry{
				DictType: dict.Type,
				EntryID:  strconv.Itoa(int(e.ID)),
				Name:     e.Name,
			})
		}
	}
	return out, nil
}

// get performs one rate-limited GET. Server-side and transport failures are
// marked transient so callers can retry them; auth rejections trigger the
// one-way fallback to the anonymous agent.
func (c *radaCollector) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, status, err := c.do(ctx, url)
	if err != nil {
		return nil, retry.Transient(err)
	}
	if (status == http.StatusUnauthorized || status == http.StatusForbidden) &&
		c.cfg.API.Token != "" && !c.anonymous.Load() {
		slog.Warn("token rejected, switching to open-data user agent",
			"source", c.Name(), "status", status)
		c.anonymous.Store(true)
		// The anonymous re-request is still a request: take a slot.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.do(ctx, url)
		if err != nil {
			return nil, retry.Transient(err)
		}
	}
	switch {
	case status == http.StatusOK:
		return body, nil
	case status >= 500 || status == http.StatusTooManyRequests:
		return nil, retry.Transient(fmt.Errorf("GET %s: status %d", url, status))
	default:
		return nil, fmt.Errorf("GET %s: status %d", url, status)
	}
}

func (c *radaCollector) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (c *radaCollector) userAgent() string {
	if c.cfg.API.Token != "" && !c.anonymous.Load() {
		return c.cfg.API.Token
	}
	if c.cfg.API.OpenDataUserAgent != "" {
		return c.cfg.API.OpenDataUserAgent
	}
	return "docsync/1.0"
}
