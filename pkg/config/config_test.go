package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-go/pkg/config"
)

func TestLoad_FillsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "secc.yaml")
	require.NoError(t, os.WriteFile(file, []byte("evse_id: EVSE-TEST-01\n"), 0644))

	cfg, err := config.Load(file)
	require.NoError(t, err)
	assert.Equal(t, "EVSE-TEST-01", cfg.EVSEID)
	assert.Equal(t, config.Default().SequenceTimeout, cfg.SequenceTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsPnCWithoutTLS(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "secc.yaml")
	require.NoError(t, os.WriteFile(file, []byte("allow_pnc: true\nrequire_tls: false\n"), 0644))

	_, err := config.Load(file)
	assert.Error(t, err)
}

func TestAuthOptions(t *testing.T) {
	cfg := config.Default()
	assert.Len(t, cfg.AuthOptions(), 1)

	cfg.AllowPnC = true
	cfg.RequireTLS = true
	assert.Len(t, cfg.AuthOptions(), 2)
}
