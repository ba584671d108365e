package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 65536, cfg.IngressCapacity)
	assert.Equal(t, 100, cfg.DepthPublishEvery)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"default"}, cfg.Markets)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("CLOBD_HTTP_ADDR", ":9090")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/clobd.yaml"
	require.NoError(t, os.WriteFile(path, []byte("ingress_capacity: 1024\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.IngressCapacity)
}
