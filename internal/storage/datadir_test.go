package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestResolveDataDir(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		t.Setenv(DataDirEnv, "/tmp/custom-aipm")
		t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
		dir, err := ResolveDataDir()
		if err != nil || dir != "/tmp/custom-aipm" {
			t.Errorf("ResolveDataDir = %q, %v", dir, err)
		}
	})

	t.Run("xdg", func(t *testing.T) {
		t.Setenv(DataDirEnv, "")
		t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
		dir, err := ResolveDataDir()
		if err != nil || dir != filepath.Join("/tmp/xdg", "aipm") {
			t.Errorf("ResolveDataDir = %q, %v", dir, err)
		}
	})

	t.Run("home fallback", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(DataDirEnv, "")
		t.Setenv("XDG_DATA_HOME", "")
		t.Setenv("HOME", home)
		dir, err := ResolveDataDir()
		if err != nil || dir != filepath.Join(home, ".local", "share", "aipm") {
			t.Errorf("ResolveDataDir = %q, %v", dir, err)
		}
	})

	t.Run("existing application support directory", func(t *testing.T) {
		home := t.TempDir()
		mac := filepath.Join(home, "Library", "Application Support", "aipm")
		if err := os.MkdirAll(mac, 0o755); err != nil {
			t.Fatal(err)
		}
		t.Setenv(DataDirEnv, "")
		t.Setenv("XDG_DATA_HOME", "")
		t.Setenv("HOME", home)
		dir, err := ResolveDataDir()
		if err != nil || dir != mac {
			t.Errorf("ResolveDataDir = %q, %v", dir, err)
		}
	})
}

func TestEnsureDataDir_Creates(t *testing.T) {
	want := filepath.Join(t.TempDir(), "a", "b")
	t.Setenv(DataDirEnv, want)
	dir, err := EnsureDataDir()
	if err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestWriteFileAtomic_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	var wg sync.WaitGroup
	payloads := []string{"aaaa", "bbbbbbbb", "cc"}
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			if err := WriteFileAtomic(path, []byte(p), 0o644); err != nil {
				t.Errorf("WriteFileAtomic: %v", err)
			}
		}(payloads[i%len(payloads)])
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	ok := false
	for _, p := range payloads {
		if string(data) == p {
			ok = true
		}
	}
	if !ok {
		t.Errorf("file content %q is not one whole payload", data)
	}
}

func TestWriteFileAtomic_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.json")
	if err := WriteFileAtomic(path, []byte("{}"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("perm = %o, want 600", info.Mode().Perm())
	}
}
