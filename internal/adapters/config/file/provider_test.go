package file

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-event-gateway/internal/pkg/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestNewProvider_EmptyPath(t *testing.T) {
	if _, err := NewProvider(""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "routes:\n  max_n: 50\n")

	p, err := NewProvider(path, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	cfg, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Routes.MaxN != 50 {
		t.Errorf("max_n = %d, want 50", cfg.Routes.MaxN)
	}
	if p.Current() != cfg {
		t.Error("Current() should return the loaded config")
	}
}

func TestProvider_LoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "adapter:\n  unsupported_method_status: 500\n")

	p, _ := NewProvider(path, WithLogger(quietLogger()))
	if _, err := p.Load(context.Background()); err == nil {
		t.Error("Expected validation error")
	}
}

func TestProvider_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "routes:\n  max_n: 10\n")

	p, _ := NewProvider(path, WithLogger(quietLogger()))
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.Config, 8)
	if err := p.Watch(ctx, func(cfg *config.Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// An invalid file is skipped without a callback.
	writeConfig(t, path, "adapter:\n  unsupported_method_status: 500\n")
	writeConfig(t, path, "routes:\n  max_n: 20\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Adapter.UnsupportedMethodStatus != 404 && cfg.Adapter.UnsupportedMethodStatus != 405 {
				t.Fatalf("callback received invalid config: %+v", cfg.Adapter)
			}
			if cfg.Routes.MaxN == 20 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for config change")
		}
	}
}

func TestProvider_WatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "routes:\n  max_n: 10\n")

	p, _ := NewProvider(path, WithLogger(quietLogger()))
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.Config, 1)
	if err := p.Watch(ctx, func(cfg *config.Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeConfig(t, filepath.Join(dir, "other.yaml"), "routes:\n  max_n: 99\n")

	select {
	case cfg := <-changes:
		t.Errorf("unexpected reload: %+v", cfg.Routes)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestProvider_WatchDebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "routes:\n  max_n: 10\n")

	p, _ := NewProvider(path, WithLogger(quietLogger()), WithDebounce(300*time.Millisecond))
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.Config, 8)
	if err := p.Watch(ctx, func(cfg *config.Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	for _, n := range []string{"11", "12", "13"} {
		writeConfig(t, path, "routes:\n  max_n: "+n+"\n")
	}

	select {
	case cfg := <-changes:
		if cfg.Routes.MaxN != 13 {
			t.Errorf("max_n = %d, want the last write 13", cfg.Routes.MaxN)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config change")
	}

	select {
	case cfg := <-changes:
		t.Errorf("burst produced a second reload: %+v", cfg.Routes)
	case <-time.After(600 * time.Millisecond):
	}
}
