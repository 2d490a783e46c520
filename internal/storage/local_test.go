package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLocalStore(t *testing.T) {
	t.Run("creates base directory if not exists", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "frames")

		store, err := NewLocalStore(base)
		if err != nil {
			t.Fatalf("NewLocalStore() error = %v", err)
		}

		if store.BaseDir() != base {
			t.Errorf("BaseDir() = %v, want %v", store.BaseDir(), base)
		}
		info, err := os.Stat(base)
		if err != nil {
			t.Fatalf("base directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		store, err := NewLocalStore("")
		if err != nil {
			t.Fatalf("NewLocalStore() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "framegrab")
		if store.BaseDir() != expected {
			t.Errorf("BaseDir() = %v, want %v", store.BaseDir(), expected)
		}
	})
}

func TestLocalStore_OutputDir(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	t.Run("requested directory wins", func(t *testing.T) {
		if got := store.OutputDir("job-1", "/data/out"); got != "/data/out" {
			t.Errorf("OutputDir() = %v, want /data/out", got)
		}
	})

	t.Run("defaults to per-job directory under base", func(t *testing.T) {
		want := filepath.Join(store.BaseDir(), "job-1")
		if got := store.OutputDir("job-1", ""); got != want {
			t.Errorf("OutputDir() = %v, want %v", got, want)
		}
	})
}

func TestLocalStore_UploadFile(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	_, err = store.UploadFile(context.Background(), "key", "path")
	if !errors.Is(err, ErrS3NotConfigured) {
		t.Errorf("UploadFile() error = %v, want ErrS3NotConfigured", err)
	}
}
