package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
ledger_path: /data/ledger.db
blob_root: /data/blobs
workers: 8
source:
  name: rada
  api:
    base_url: https://api.example.test
    list_path: /laws/list
    doc_path: /laws/show/{id}
    token: ${DOCSYNC_TOKEN:-}
    rate_limit:
      min_pause: 200ms
      max_pause: 900ms
  dictionaries:
    - type: statuses
      path: /dict/statuses
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/data/ledger.db", cfg.LedgerPath)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, defaultTempRetention, cfg.TempRetentionDays)
	assert.Equal(t, "rada", cfg.Source.Name)
	assert.Equal(t, 200*time.Millisecond, cfg.Source.API.RateLimit.MinPause)
	assert.Equal(t, 900*time.Millisecond, cfg.Source.API.RateLimit.MaxPause)
	require.Len(t, cfg.Source.Dictionaries, 1)
	assert.Equal(t, "statuses", cfg.Source.Dictionaries[0].Type)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/blobs", cfg.BlobRoot)
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("DOCSYNC_TOKEN", "tok-123")
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "tok-123", cfg.Source.API.Token)
}

func TestEnvDefaultApplies(t *testing.T) {
	raw := []byte("ledger_path: ${DOCSYNC_NO_SUCH_VAR:-/tmp/l.db}\nblob_root: /b\nsource:\n  name: rada\n")
	cfg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/l.db", cfg.LedgerPath)
}

func TestUnsetVarWithoutDefaultFails(t *testing.T) {
	raw := []byte("ledger_path: ${DOCSYNC_NO_SUCH_VAR}\nblob_root: /b\nsource:\n  name: rada\n")
	_, err := Parse(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCSYNC_NO_SUCH_VAR")
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"missing ledger", "blob_root: /b\nsource:\n  name: rada\n", "ledger_path"},
		{"missing blob root", "ledger_path: /l\nsource:\n  name: rada\n", "blob_root"},
		{"missing source", "ledger_path: /l\nblob_root: /b\n", "source.name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	raw := []byte("ledger_path: /l\nblob_root: /b\nbogus: 1\nsource:\n  name: rada\n")
	_, err := Parse(raw)
	require.Error(t, err)
}
