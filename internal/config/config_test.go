package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "listkeep_data", cfg.Key)
	assert.Equal(t, int64(5*1024*1024), cfg.QuotaBytes)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, DefaultPath(), cfg.Path)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("LISTKEEP_BACKEND", "memory")
	t.Setenv("LISTKEEP_QUOTA_BYTES", "1024")
	t.Setenv("LISTKEEP_POLL_INTERVAL", "2s")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, int64(1024), cfg.QuotaBytes)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LISTKEEP_KEY=groceries\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LISTKEEP_KEY") })

	cfg, err := Load(envFile, nil)
	require.NoError(t, err)
	assert.Equal(t, "groceries", cfg.Key)
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"), nil)
	assert.NoError(t, err)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("LISTKEEP_BACKEND", "memory")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(FlagName("backend"), BackendSQLite, "")
	flags.Int64(FlagName("quota_bytes"), 0, "")
	require.NoError(t, flags.Parse([]string{"--backend", "file", "--quota-bytes", "99"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Backend)
	assert.Equal(t, int64(99), cfg.QuotaBytes)
}

func TestUnsetFlagKeepsEnvironment(t *testing.T) {
	t.Setenv("LISTKEEP_BACKEND", "memory")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(FlagName("backend"), BackendSQLite, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
}

func TestValidate(t *testing.T) {
	t.Setenv("LISTKEEP_BACKEND", "redis")
	_, err := Load("", nil)
	assert.ErrorContains(t, err, "unknown backend")

	cfg := Config{Backend: BackendMemory, Key: ""}
	assert.Error(t, cfg.Validate())

	cfg = Config{Backend: BackendMemory, Key: "k", QuotaBytes: -1}
	assert.Error(t, cfg.Validate())
}
