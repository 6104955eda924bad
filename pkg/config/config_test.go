package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port      int    `env:"TEST_CFG_PORT" envDefault:"4000"`
	Backend   string `env:"TEST_CFG_BACKEND" envDefault:"mongo"`
	BatchSize int    `env:"TEST_CFG_BATCH_SIZE" envDefault:"10000"`
	Redis     bool   `env:"TEST_CFG_REDIS" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := LoadFile("", &cfg)

	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "mongo", cfg.Backend)
	assert.Equal(t, 10000, cfg.BatchSize)
	assert.False(t, cfg.Redis)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_BACKEND", "postgres")
	t.Setenv("TEST_CFG_REDIS", "true")

	var cfg testConfig
	err := LoadFile("", &cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres", cfg.Backend)
	assert.True(t, cfg.Redis)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	var cfg testConfig
	err := LoadFile(filepath.Join(t.TempDir(), ".env"), &cfg)

	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
}

func TestLoad_DotEnvFillsUnsetVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_DOTENV_BACKEND=elasticsearch\nTEST_CFG_DOTENV_PORT=7000\n"), 0o600))
	t.Setenv("TEST_CFG_DOTENV_PORT", "7100")
	t.Cleanup(func() { _ = os.Unsetenv("TEST_CFG_DOTENV_BACKEND") })

	var cfg struct {
		Backend string `env:"TEST_CFG_DOTENV_BACKEND"`
		Port    int    `env:"TEST_CFG_DOTENV_PORT"`
	}
	err := LoadFile(path, &cfg)

	require.NoError(t, err)
	assert.Equal(t, "elasticsearch", cfg.Backend)
	assert.Equal(t, 7100, cfg.Port, "process environment wins over .env")
}

type requiredConfig struct {
	URI string `env:"TEST_CFG_MONGO_URI,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := LoadFile("", &cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_BATCH_SIZE", "lots")

	var cfg testConfig
	err := LoadFile("", &cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
