package daemon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// SocketPath derives the per-worktree socket location from the invoking
// user and the worktree path, as described in the original spec's §6
// "socket location convention": a hash-based name in a per-user temp
// directory, so two worktrees (or two users sharing a machine) never
// collide on one socket.
func SocketPath(worktree string) (string, error) {
	abs, err := filepath.Abs(worktree)
	if err != nil {
		return "", fmt.Errorf("resolve worktree path: %w", err)
	}

	uid := os.Getuid()
	sum := sha256.Sum256([]byte(abs))
	name := fmt.Sprintf("taskkernd-%d-%s.sock", uid, hex.EncodeToString(sum[:])[:16])

	dir := os.TempDir()
	return filepath.Join(dir, name), nil
}

// LockPath returns the sibling instance-lock file path for a socket.
func LockPath(socketPath string) string {
	return socketPath + ".lock"
}
