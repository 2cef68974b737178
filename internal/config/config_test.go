package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "lenient", cfg.Clean.SaintMode)
	assert.Equal(t, "warn", cfg.Clean.HoursSeverity)
	assert.Equal(t, 4, cfg.Clean.Concurrency)
	assert.Equal(t, "_processed", cfg.Clean.OutputSuffix)
	assert.Empty(t, cfg.Clean.NecessaryTags)
	assert.False(t, cfg.Clean.BrandCheck)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/runs.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "https://atlus.dev/api/", cfg.Atlus.BaseURL)
	assert.Equal(t, 10000, cfg.Atlus.BatchSize)
	assert.Equal(t, 10, cfg.Atlus.TimeoutSecs)
	assert.InDelta(t, 4.0, cfg.Atlus.RateLimit, 0.001)
	assert.Equal(t, 3, cfg.Atlus.MaxAttempts)
	assert.Equal(t, "data/nsi.json", cfg.NSI.Path)
	assert.Contains(t, cfg.NSI.URL, "name-suggestion-index")
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/atp
log:
  level: debug
  format: console
clean:
  saint_mode: strict
  concurrency: 8
  necessary_tags: [amenity, shop]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/atp", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "strict", cfg.Clean.SaintMode)
	assert.Equal(t, 8, cfg.Clean.Concurrency)
	assert.Equal(t, []string{"amenity", "shop"}, cfg.Clean.NecessaryTags)
	// Defaults still apply for unset values
	assert.Equal(t, 10000, cfg.Atlus.BatchSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
clean:
  saint_mode: strict
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("ATP_CLEAN_SAINT_MODE", "lenient")
	t.Setenv("ATP_LOG_LEVEL", "warn")
	t.Setenv("ATP_ATLUS_BATCH_SIZE", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "lenient", cfg.Clean.SaintMode)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 500, cfg.Atlus.BatchSize)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

func validDefaults() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "json"},
		Clean:  CleanConfig{SaintMode: "lenient", HoursSeverity: "warn", Concurrency: 4},
		Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "data/runs.db"},
		Atlus:  AtlusConfig{BaseURL: "https://atlus.dev/api/", BatchSize: 10000, TimeoutSecs: 10, RateLimit: 4},
		NSI:    NSIConfig{Path: "data/nsi.json", URL: "https://example.com/nsi.json"},
		Server: ServerConfig{Port: 8080},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "clean defaults", mode: "clean"},
		{name: "serve defaults", mode: "serve"},
		{name: "atlus defaults", mode: "atlus"},
		{name: "nsi defaults", mode: "nsi"},
		{name: "runs defaults", mode: "runs"},
		{name: "no store", mode: "clean", mutate: func(c *Config) { c.Store = StoreConfig{Driver: "none"} }},
		{
			name:    "bad clean settings",
			mode:    "clean",
			mutate:  func(c *Config) { c.Clean.SaintMode = "sometimes"; c.Clean.HoursSeverity = "fatal"; c.Clean.Concurrency = 0 },
			wantErr: []string{"clean.saint_mode", "clean.hours_severity", "clean.concurrency"},
		},
		{
			name:    "brand check without index",
			mode:    "clean",
			mutate:  func(c *Config) { c.Clean.BrandCheck = true; c.NSI.Path = "" },
			wantErr: []string{"nsi.path is required"},
		},
		{name: "bad port", mode: "serve", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: []string{"server.port"}},
		{
			name:    "bad atlus",
			mode:    "atlus",
			mutate:  func(c *Config) { c.Atlus = AtlusConfig{} },
			wantErr: []string{"atlus.base_url", "atlus.batch_size", "atlus.timeout_secs", "atlus.rate_limit"},
		},
		{name: "missing dsn", mode: "runs", mutate: func(c *Config) { c.Store.DatabaseURL = "" }, wantErr: []string{"store.database_url"}},
		{name: "runs without store", mode: "runs", mutate: func(c *Config) { c.Store.Driver = "none" }, wantErr: []string{"no run history"}},
		{name: "unknown driver", mode: "clean", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: []string{"store.driver"}},
		{name: "unknown mode", mode: "export", wantErr: []string{"unknown mode"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
