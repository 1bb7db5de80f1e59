package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the global and project lookups at empty locations.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 10, cfg.MaxErrors)
	assert.Equal(t, 20, cfg.MaxConnsPerIP)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 20.0, cfg.MessageRate)
	assert.False(t, cfg.InsecureDevMode)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)

	global := GlobalPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(global), 0o755))
	require.NoError(t, os.WriteFile(global, []byte("address: \":9000\"\ncodec: msgpack\nlog_level: debug\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectPath()), []byte("codec: json\nping_interval: 5s\n"), 0o644))
	t.Setenv("FORMWIZARD_LOG_LEVEL", "warn")
	t.Setenv("FORMWIZARD_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Address)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("template: signup.html\ninsecure_dev_mode: true\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "signup.html", cfg.Template)
	assert.True(t, cfg.InsecureDevMode)

	_, err = Load(filepath.Join(dir, "missing.yml"), nil)
	assert.Error(t, err)
}

func TestWrite_RoundTrip(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.Template = "wizard.html"
	cfg.AllowedOrigins = []string{"https://a.example"}

	path := filepath.Join(dir, "nested", "formwizard.yml")
	require.NoError(t, Write(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "read_timeout: 30s")

	back, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Address:         ":8080",
			Codec:           "json",
			LogLevel:        "info",
			LogFormat:       "text",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			PingInterval:    time.Second,
			ShutdownTimeout: time.Second,
			MaxSessions:     1,
			MaxConnsPerIP:   1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"empty address", func(c *Config) { c.Address = " " }, ErrEmptyAddress},
		{"bad codec", func(c *Config) { c.Codec = "xml" }, ErrInvalidCodec},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidFormat},
		{"zero timeout", func(c *Config) { c.PingInterval = 0 }, ErrInvalidTimeout},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, ErrInvalidTimeout},
		{"no sessions", func(c *Config) { c.MaxSessions = 0 }, ErrInvalidLimit},
		{"negative rate", func(c *Config) { c.MessageRate = -1 }, ErrInvalidRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
