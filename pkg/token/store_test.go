package token

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if got := store.Token(); got != "" {
		t.Errorf("fresh store Token() = %q, want empty", got)
	}
	if err := store.Save("tok-abc"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got := store.Token(); got != "tok-abc" {
		t.Errorf("Token() = %q, want tok-abc", got)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got := store.Token(); got != "" {
		t.Errorf("Token() after Clear = %q, want empty", got)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("Clear on empty store failed: %v", err)
	}
}

func TestFixedFileName(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Save("tok"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "authToken")); err != nil {
		t.Errorf("expected token under the fixed file name: %v", err)
	}
}

func TestTokenTrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "authToken"), []byte("tok-x\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := store.Token(); got != "tok-x" {
		t.Errorf("Token() = %q, want trimmed value", got)
	}
}
