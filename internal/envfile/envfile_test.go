package envfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskkern/taskkernd/internal/envfile"
)

func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskkernd.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadParsesKeyValuePairs(t *testing.T) {
	path := writeOverlay(t, "TASKKERN_SOCKET_PATH=/tmp/taskkernd.sock\nTASKKERN_RUNTIME_KIND=local\n")
	env := envfile.Load(path)
	assert.Equal(t, "/tmp/taskkernd.sock", env["TASKKERN_SOCKET_PATH"])
	assert.Equal(t, "local", env["TASKKERN_RUNTIME_KIND"])
}

func TestLoadTrimsSurroundingWhitespace(t *testing.T) {
	path := writeOverlay(t, "  TASKKERN_WORKTREE = /srv/repo  \n")
	env := envfile.Load(path)
	assert.Equal(t, "/srv/repo", env["TASKKERN_WORKTREE"])
}

func TestLoadIgnoresCommentsAndBlankLines(t *testing.T) {
	path := writeOverlay(t, "# overlay for local dev\n\nTASKKERN_CONTAINER_ID=abc123\n")
	env := envfile.Load(path)
	assert.Equal(t, map[string]string{"TASKKERN_CONTAINER_ID": "abc123"}, env)
}

func TestLoadOfMissingOverlayReturnsEmptyMap(t *testing.T) {
	env := envfile.Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.Empty(t, env)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := writeOverlay(t, "THIS_LINE_HAS_NO_EQUALS_SIGN\nTASKKERN_WORKER_ID_FILE=/tmp/wid\n")
	env := envfile.Load(path)
	assert.Equal(t, map[string]string{"TASKKERN_WORKER_ID_FILE": "/tmp/wid"}, env)
}

func TestLoadLastOccurrenceOfDuplicateKeyWins(t *testing.T) {
	path := writeOverlay(t, "TASKKERN_RUNTIME_KIND=local\nTASKKERN_RUNTIME_KIND=containerized\n")
	env := envfile.Load(path)
	assert.Equal(t, "containerized", env["TASKKERN_RUNTIME_KIND"])
}
