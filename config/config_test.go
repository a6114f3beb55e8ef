package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-sync-worker/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./scraped_data", cfg.DataDir)
	assert.Equal(t, 10, cfg.AssetWorkers)
	assert.Equal(t, 3, cfg.RetryCount)
	assert.Equal(t, 50, cfg.PageCap)
	assert.Equal(t, 2*time.Second, cfg.SettleDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.AssetRetryDelay)
	assert.Equal(t, 3*time.Second, cfg.PageRetryDelay)
	assert.Equal(t, PageSourceHTTP, cfg.PageSource)
	assert.Equal(t, BackendCSV, cfg.SnapshotBackend)
	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, "6379", cfg.RedisPort)
	assert.False(t, cfg.SeenMirrorEnabled)
	assert.False(t, cfg.NeedsAWS())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ASSET_WORKERS", "4")
	t.Setenv("SETTLE_DELAY", "500ms")
	t.Setenv("PAGE_SOURCE", "browser")
	t.Setenv("SNAPSHOT_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/catalogs")
	t.Setenv("SEEN_MIRROR_ENABLED", "true")
	t.Setenv("NOTIFY_QUEUE_URL", "http://queue")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.AssetWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, PageSourceBrowser, cfg.PageSource)
	assert.Equal(t, BackendPostgres, cfg.SnapshotBackend)
	assert.True(t, cfg.SeenMirrorEnabled)
	assert.True(t, cfg.NeedsAWS())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad int":          {"PAGE_CAP": "many"},
		"zero workers":     {"ASSET_WORKERS": "0"},
		"bad duration":     {"SETTLE_DELAY": "soon"},
		"negative":         {"PAGE_RETRY_DELAY": "-1s"},
		"bad bool":         {"SEEN_MIRROR_ENABLED": "maybe"},
		"bad source":       {"PAGE_SOURCE": "ftp"},
		"bad backend":      {"SNAPSHOT_BACKEND": "sqlite"},
		"postgres missing": {"SNAPSHOT_BACKEND": "postgres"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDefaultCatalogs(t *testing.T) {
	catalogs := DefaultCatalogs()
	require.Len(t, catalogs, 4)

	for _, c := range catalogs {
		assert.NotEmpty(t, c.PageParam, c.Name)
		assert.Contains(t, c.NoResultsPhrases, "keine objekte gefunden", c.Name)
	}
	assert.Equal(t, domain.KindRent, catalogs[1].ResolveKind())
	assert.Contains(t, catalogs[2].PageURL(7), "pn=7")
	assert.Contains(t, catalogs[2].NoResultsPhrases, "Oh no, something went wrong!")
	assert.NotContains(t, catalogs[0].NoResultsPhrases, "Oh no, something went wrong!")
}

func TestLoadCatalogs_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogs.yaml")
	content := `catalogs:
  - name: zurich-rent
    source: homegate
    base_url: https://www.homegate.ch/rent/real-estate/city-zurich/matching-list?ep=1
    page_param: ep
    link_patterns: ["/rent/"]
    result_container: data-test=result-list-container
    no_results_phrases: ["keine objekte gefunden"]
    reharvest_known: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	catalogs, err := LoadCatalogs(path)
	require.NoError(t, err)
	require.Len(t, catalogs, 1)
	c := catalogs[0]
	assert.Equal(t, "zurich-rent", c.Name)
	assert.Equal(t, "ep", c.PageParam)
	assert.Equal(t, []string{"/rent/"}, c.LinkPatterns)
	assert.True(t, c.ReharvestKnown)
	assert.Equal(t, domain.KindRent, c.ResolveKind())
}

func TestLoadCatalogs_Default(t *testing.T) {
	catalogs, err := LoadCatalogs("")
	require.NoError(t, err)
	assert.Len(t, catalogs, 4)
}

func TestLoadCatalogs_Invalid(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	_, err := LoadCatalogs(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadCatalogs(write("empty.yaml", "catalogs: []\n"))
	assert.Error(t, err)

	_, err = LoadCatalogs(write("broken.yaml", "catalogs: [\n"))
	assert.Error(t, err)

	_, err = LoadCatalogs(write("noname.yaml", "catalogs:\n  - base_url: https://x/rent/\n"))
	assert.Error(t, err)

	_, err = LoadCatalogs(write("slash.yaml", "catalogs:\n  - name: ../escape\n    base_url: https://x/rent/\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "file name")

	_, err = LoadCatalogs(write("dup.yaml", "catalogs:\n  - name: a\n    base_url: https://x\n  - name: a\n    base_url: https://y\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "listed twice")
}
