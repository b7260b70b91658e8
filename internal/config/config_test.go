package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
	assert.False(t, Default().ForwardingEnabled())
}

func TestValidateRequiresBothDestFields(t *testing.T) {
	cfg := Default()
	cfg.DestIP = "10.0.0.1"
	assert.Error(t, cfg.Validate(), "dest-port missing")

	cfg = Default()
	cfg.DestPort = 9000
	assert.Error(t, cfg.Validate(), "dest-ip missing")

	cfg = Default()
	cfg.DestIP = "10.0.0.1"
	cfg.DestPort = 9000
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.ForwardingEnabled())
}

func TestValidateRejectsBadIPAndMAC(t *testing.T) {
	cfg := Default()
	cfg.DestIP = "not-an-ip"
	cfg.DestPort = 1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DestIP = "10.0.0.1"
	cfg.DestPort = 1
	cfg.DestMAC = "not-a-mac"
	assert.Error(t, cfg.Validate())
}

func TestLoadFileMissingPathIsNotAnError(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = LoadFile("/nonexistent/path/relay.toml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.toml")
	contents := `
interface = "eth0"
dest_ip = "10.0.0.5"
dest_port = 8001
queue = 2
cpu = 3
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "eth0", cfg.Interface)
	assert.Equal(t, "10.0.0.5", cfg.DestIP)
	assert.EqualValues(t, 8001, cfg.DestPort)
	assert.EqualValues(t, 2, cfg.Queue)
	assert.Equal(t, 3, cfg.CPU)
}
