package workerid_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskkern/taskkernd/internal/workerid"
)

func TestResolveWithoutPathGeneratesFreshID(t *testing.T) {
	id, err := workerid.Resolve("")
	require.NoError(t, err)
	assert.Contains(t, id, workerid.Prefix)
	assert.Greater(t, len(id), len(workerid.Prefix))
}

func TestResolveGeneratesDistinctIDs(t *testing.T) {
	a, err := workerid.Resolve("")
	require.NoError(t, err)
	b, err := workerid.Resolve("")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestResolvePersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker-id")
	id, err := workerid.Resolve(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, id, string(data[:len(data)-1])) // trailing newline
}

func TestResolveReusesPersistedID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker-id")
	first, err := workerid.Resolve(path)
	require.NoError(t, err)

	second, err := workerid.Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveTrimsWhitespaceFromExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker-id")
	require.NoError(t, os.WriteFile(path, []byte("worker-abc123\n\n"), 0o600))

	id, err := workerid.Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "worker-abc123", id)
}
