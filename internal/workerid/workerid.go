// Package workerid resolves the stable per-process identity that accompanies
// every state-mutating RPC a worker issues (original spec §4.8).
package workerid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// Prefix is prepended to every generated id so trajectory events and logs
// are unambiguous about what kind of actor produced them.
const Prefix = "worker-"

// entropyBytes yields a 96-bit value rendered as 24 hex characters, enough
// that collision across concurrently running workers is negligible.
const entropyBytes = 12

// Resolve returns the worker id for this process. If path is non-empty and
// names an existing file, its (trimmed) single-line contents are reused.
// Otherwise a fresh id is generated; when path is non-empty it is persisted
// there for reuse by a future process (e.g. a restarted worker wrapper).
// An empty path means "generate and do not persist," which the original
// spec leaves as a configuration choice rather than mandating either way.
func Resolve(path string) (string, error) {
	if path != "" {
		if id, ok := loadExisting(path); ok {
			return id, nil
		}
	}

	id, err := generate()
	if err != nil {
		return "", fmt.Errorf("generate worker id: %w", err)
	}

	if path != "" {
		if err := persist(path, id); err != nil {
			return "", fmt.Errorf("persist worker id: %w", err)
		}
	}
	return id, nil
}

func loadExisting(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", false
	}
	return id, true
}

func persist(path, id string) error {
	return os.WriteFile(path, []byte(id+"\n"), 0o600)
}

func generate() (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return Prefix + hex.EncodeToString(buf), nil
}
