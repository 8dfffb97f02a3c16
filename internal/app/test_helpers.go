package app

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates a new app instance for system testing. Relative store
// and output folders, including the defaults, are replaced with temporary
// directories so tests never write into the package tree. Absolute paths are
// kept, which lets a test reopen the store of a previous app.
func SetupAppTest(t *testing.T, cfg Config, opts ...Option) (*App, *SafeBuffer) {
	t.Helper()

	if !filepath.IsAbs(cfg.TempDir) {
		cfg.TempDir = t.TempDir()
	}
	if !filepath.IsAbs(cfg.Out) {
		cfg.Out = t.TempDir()
	}
	cfg.LogLevel = "debug"
	valid, err := NewConfig(cfg)
	if err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	logBuffer := &SafeBuffer{}
	testApp, err := New(logBuffer, valid, opts...)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	t.Cleanup(func() {
		if os.Getenv("GRIDSEED_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
