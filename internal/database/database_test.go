package database

import (
	"path/filepath"
	"testing"
)

func TestOpenBadger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat")

	db, err := OpenBadger(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()

	if db.IsClosed() {
		t.Fatalf("expected database to be open")
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	if _, err := NewRedisClient("not-a-redis-url"); err == nil {
		t.Fatalf("expected error for invalid URL")
	}
}

func TestNewPostgresPool_InvalidURL(t *testing.T) {
	if _, err := NewPostgresPool("postgres://%zz"); err == nil {
		t.Fatalf("expected error for invalid URL")
	}
}
