package cli

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	longText := ""
	for i := 0; i < 40; i++ {
		longText += "Article text. "
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/laws/list":
			fmt.Fprint(w, `{"total_pages": 1, "items": [
				{"id": 2456, "reg": "2456-IX", "title": "On Digital Content",
				 "status": 6, "org": 95, "types": "1", "date": 20260110, "revised": 20260201}
			]}`)
		case "/laws/show/2456":
			fmt.Fprintf(w, `{"id": 2456, "title": "On Digital Content", "text": %q}`, longText)
		case "/dict/statuses":
			fmt.Fprint(w, `[{"id": 6, "name": "In force"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunEndToEnd(t *testing.T) {
	srv := newSourceServer(t)
	cfgPath := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", cfgPath, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "found:        1")
	assert.Contains(t, out, "new:          1")
	assert.Contains(t, out, "failed:       0")

	// The run is visible afterwards.
	out, err = execute(t, "--config", cfgPath, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "new=1")

	// So is the document's history.
	out, err = execute(t, "--config", cfgPath, "history", "2456")
	require.NoError(t, err)
	assert.Contains(t, out, "1 versions")
	assert.Contains(t, out, "On Digital Content")

	// A second run with identical upstream state records no new version.
	out, err = execute(t, "--config", cfgPath, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged:    1")
	assert.Contains(t, out, "new:          0")
}

func TestRunJSONFormat(t *testing.T) {
	srv := newSourceServer(t)
	cfgPath := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", cfgPath, "--format", "json", "run")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)
	assert.Contains(t, out, `"found": 1`)
}
