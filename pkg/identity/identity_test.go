package identity_test

import (
	"path/filepath"
	"testing"

	"github.com/benmeehan/link-failover/pkg/file"
	"github.com/benmeehan/link-failover/pkg/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceInfo_LoadOrCreate_GeneratesAndPersists(t *testing.T) {
	fs := file.NewFileService()
	path := filepath.Join(t.TempDir(), "identity.json")

	first := identity.NewSourceInfo(path, fs)
	require.NoError(t, first.LoadOrCreate())
	_, err := uuid.Parse(first.GetSourceID())
	assert.NoError(t, err)

	second := identity.NewSourceInfo(path, fs)
	require.NoError(t, second.LoadOrCreate())
	assert.Equal(t, first.GetSourceID(), second.GetSourceID())
}
