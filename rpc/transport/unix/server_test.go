package unix

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

// TestRemoveStaleSocket tests which existing files are replaced by a new listener
func TestRemoveStaleSocket(t *testing.T) {
	dir := t.TempDir()

	// missing path
	if err := removeStaleSocket(filepath.Join(dir, "missing.sock")); err != nil {
		t.Errorf("Expected no error for a missing path, got %v", err)
	}

	// regular file
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := removeStaleSocket(file); err == nil {
		t.Errorf("Expected error for a regular file")
	}

	// live socket
	live := filepath.Join(dir, "live.sock")
	l, err := net.Listen("unix", live)
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	if err := removeStaleSocket(live); err == nil {
		t.Errorf("Expected error for a socket in use")
	}

	// stale socket
	stale := filepath.Join(dir, "stale.sock")
	sl, err := net.Listen("unix", stale)
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	sl.(*net.UnixListener).SetUnlinkOnClose(false)
	_ = sl.Close()
	if err := removeStaleSocket(stale); err != nil {
		t.Errorf("Expected stale socket to be removed, got %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("Expected stale socket file to be gone")
	}

	_ = l.Close()
}
