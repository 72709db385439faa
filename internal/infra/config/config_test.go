package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"BOSSDATA_ROOT", "BOSS_SAS_ROOT", "BOSS_REDUX_VERSION", "BOSSFETCH_FETCH_WORKERS"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://dr12.sdss3.org", cfg.Mirror.URLPrefix)
	assert.Equal(t, 4, cfg.Fetch.Workers)
	assert.Equal(t, 2*time.Second, cfg.Fetch.GracePeriod)
	assert.Equal(t, 5*time.Second, cfg.Fetch.KillTimeout)
	assert.True(t, cfg.Fetch.Progress)
	assert.Equal(t, "./bossfetch.db", cfg.Store.DSN)
	assert.Equal(t, "bossfetch.results", cfg.Events.Exchange)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()

	path := writeConfig(t, `
mirror:
  local_root: `+root+`
  url_prefix: http://localhost:9000/
finder:
  sas_root: /sas/dr12
  redux_version: v5_7_0
fetch:
  workers: 2
  grace_period: 500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Mirror.LocalRoot)
	assert.Equal(t, "http://localhost:9000", cfg.Mirror.URLPrefix)
	assert.Equal(t, 2, cfg.Fetch.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.GracePeriod)
	assert.NoError(t, cfg.RequireFinder())
	assert.NoError(t, cfg.RequireLocalRoot())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLegacyEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	t.Setenv("BOSSDATA_ROOT", root)
	t.Setenv("BOSS_SAS_ROOT", "/sas/dr12")
	t.Setenv("BOSS_REDUX_VERSION", "v5_7_0")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Mirror.LocalRoot)
	assert.Equal(t, "/sas/dr12", cfg.Finder.SASRoot)
	assert.Equal(t, "v5_7_0", cfg.Finder.ReduxVersion)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown release", "mirror:\n  release: DR9\n", "invalid release"},
		{"missing root", "mirror:\n  local_root: /definitely/not/here\n", "non-existent path"},
		{"too many workers", "fetch:\n  workers: 6\n", "fetch.workers"},
		{"zero workers", "fetch:\n  workers: 0\n", "fetch.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRequireHelpers(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.RequireLocalRoot(), "BOSSDATA_ROOT")
	assert.ErrorContains(t, cfg.RequireFinder(), "BOSS_SAS_ROOT")

	cfg.Finder.SASRoot = "/sas/dr12"
	assert.ErrorContains(t, cfg.RequireFinder(), "BOSS_REDUX_VERSION")
}
