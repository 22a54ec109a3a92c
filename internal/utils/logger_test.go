package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/benmeehan/link-failover/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesRoleFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, closer, err := utils.NewLogger("monitor", "debug", "json", dir)
	require.NoError(t, err)

	logger.Info().Str("phase", "online").Msg("Poll evaluated")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "monitor.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"role":"monitor"`)
	assert.Contains(t, string(raw), `"phase":"online"`)
	assert.Contains(t, string(raw), "Poll evaluated")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, _, err := utils.NewLogger("broker", "loud", "json", "")
	assert.Error(t, err)
}

func TestNewLogger_StdoutOnly(t *testing.T) {
	_, closer, err := utils.NewLogger("daemon", "", "console", "")
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
}
