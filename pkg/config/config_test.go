package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardcache-go/shc/pkg/wire"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "*", cfg.Listen.Address)
	assert.Equal(t, wire.DefaultPort, cfg.Listen.Port)
	assert.Equal(t, "none", cfg.Auth.SigMode)
	assert.Equal(t, 5*time.Second, cfg.Timeout.TCP)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.NoError(t, Validate(cfg))
}

func TestWireSigMode(t *testing.T) {
	assert.Equal(t, wire.SigNone, AuthConfig{SigMode: "none"}.WireSigMode())
	assert.Equal(t, wire.SigWhole, AuthConfig{SigMode: "whole"}.WireSigMode())
	assert.Equal(t, wire.SigChunk, AuthConfig{SigMode: "chunk"}.WireSigMode())
	assert.Equal(t, wire.SigNone, AuthConfig{SigMode: ""}.WireSigMode())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "TRACE"
	err := Validate(cfg)
	require.Error(t, err)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Defaults()
	cfg.Listen.Port = 7000
	cfg.Storage.Path = "/tmp/shc-data"

	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, loaded.Listen.Port)
	assert.Equal(t, "/tmp/shc-data", loaded.Storage.Path)
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Save(Defaults(), path))

	t.Setenv("SHC_LISTEN_PORT", "8123")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.Listen.Port)
}
