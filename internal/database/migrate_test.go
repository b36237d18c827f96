package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations_OrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"010_indexes.sql":       {Data: []byte("CREATE INDEX x ON t (a);")},
		"002_second.sql":        {Data: []byte("SELECT 2;")},
		"001_chat_messages.sql": {Data: []byte("SELECT 1;")},
		"README.md":             {Data: []byte("not a migration")},
	}

	migrations, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{1, 2, 10}
	if len(migrations) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(migrations))
	}
	for i, v := range want {
		if migrations[i].version != v {
			t.Errorf("position %d: expected version %d, got %d", i, v, migrations[i].version)
		}
	}
	if migrations[0].sql != "SELECT 1;" {
		t.Errorf("unexpected sql %q", migrations[0].sql)
	}
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"no version", fstest.MapFS{"chat.sql": {Data: []byte("SELECT 1;")}}},
		{"zero version", fstest.MapFS{"000_init.sql": {Data: []byte("SELECT 1;")}}},
		{"duplicate version", fstest.MapFS{
			"001_a.sql": {Data: []byte("SELECT 1;")},
			"01_b.sql":  {Data: []byte("SELECT 1;")},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadMigrations(tc.fsys); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestEmbeddedMigrations_ContainChatSchema(t *testing.T) {
	migrations, err := loadMigrations(EmbeddedMigrations())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) == 0 || migrations[0].name != "001_chat_messages.sql" {
		t.Fatalf("expected 001_chat_messages.sql first, got %+v", migrations)
	}
	for _, part := range []string{"chat_messages", "seq", "CHECK (sender IN ('user', 'ai'))"} {
		if !strings.Contains(migrations[0].sql, part) {
			t.Errorf("schema is missing %q", part)
		}
	}
}

func TestRunMigrations_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPostgresPool(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	// A second run must find everything applied.
	for i := 0; i < 2; i++ {
		if err := RunMigrations(ctx, pool, EmbeddedMigrations()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE name = '001_chat_messages.sql'").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the chat migration recorded once, got %d", count)
	}

	if _, err := pool.Exec(ctx, "INSERT INTO chat_messages (content, sender) VALUES ('hi', 'bot')"); err == nil {
		t.Fatalf("expected the sender check to reject 'bot'")
	}
	if _, err := pool.Exec(ctx, "INSERT INTO chat_messages (content, sender) VALUES ('', 'user')"); err == nil {
		t.Fatalf("expected the content check to reject empty content")
	}
}
