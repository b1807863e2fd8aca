package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newLocalFixture(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{
		BasePath: dir,
		BaseURL:  "http://localhost:8080/files/",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s, dir
}

func TestLocalStorage_PutGetRoundtrip(t *testing.T) {
	s, _ := newLocalFixture(t)
	ctx := context.Background()
	content := []byte("attachment bytes")

	err := s.Put(ctx, "attachments/u1/a.bin", bytes.NewReader(content), PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	body, info, err := s.Get(ctx, "attachments/u1/a.bin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content = %q, want %q", got, content)
	}
	if info.Size != int64(len(content)) {
		t.Errorf("size = %d, want %d", info.Size, len(content))
	}
}

func TestLocalStorage_PutEnforcesMaxSize(t *testing.T) {
	s, dir := newLocalFixture(t)
	ctx := context.Background()

	err := s.Put(ctx, "attachments/u1/big.bin", strings.NewReader("0123456789"), PutOptions{MaxSize: 4})
	if !IsTooLarge(err) {
		t.Fatalf("error = %v, want ErrTooLarge", err)
	}

	// The oversized partial file must not be left behind.
	if _, statErr := os.Stat(filepath.Join(dir, "attachments/u1/big.bin")); !os.IsNotExist(statErr) {
		t.Error("oversized file was not cleaned up")
	}
}

func TestLocalStorage_RejectsTraversalKeys(t *testing.T) {
	s, _ := newLocalFixture(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "attachments/../../etc/passwd"} {
		if err := s.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Errorf("Put(%q) accepted a traversal key", key)
		}
		if _, _, err := s.Get(ctx, key); err == nil {
			t.Errorf("Get(%q) accepted a traversal key", key)
		}
	}
}

func TestLocalStorage_GetUnknownKey(t *testing.T) {
	s, _ := newLocalFixture(t)

	_, _, err := s.Get(context.Background(), "attachments/u1/missing.bin")
	if !IsNotFound(err) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestLocalStorage_DeleteAndExists(t *testing.T) {
	s, _ := newLocalFixture(t)
	ctx := context.Background()
	key := "attachments/u1/a.bin"

	if err := s.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := s.Exists(ctx, key); err != nil || !ok {
		t.Fatalf("exists = %v, %v; want true", ok, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, key); ok {
		t.Error("attachment still exists after delete")
	}

	// Deleting again is not an error.
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestLocalStorage_URLJoinsBase(t *testing.T) {
	s, _ := newLocalFixture(t)

	url, err := s.URL(context.Background(), "attachments/u1/a.bin", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "http://localhost:8080/files/attachments/u1/a.bin" {
		t.Errorf("url = %q", url)
	}
}
