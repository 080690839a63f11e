package db

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_AppliesMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := New(dbPath, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var count int
	if err := database.Conn().QueryRow("SELECT COUNT(*) FROM operations").Scan(&count); err != nil {
		t.Fatalf("operations table missing: %v", err)
	}
	if count != 0 {
		t.Errorf("fresh operations table has %d rows", count)
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := New(dbPath, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	first.Close()

	second, err := New(dbPath, testLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	second.Close()
}

func TestNew_MarksInterruptedOperations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := New(dbPath, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	_, err = first.Conn().Exec(`
		INSERT INTO operations (id, kind, input, status, created_at, updated_at)
		VALUES ('op-1', 'trim', 'clip.mp4', 'running', datetime('now'), datetime('now'))
	`)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := New(dbPath, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	var status, errMsg string
	if err := second.Conn().QueryRow("SELECT status, error FROM operations WHERE id = 'op-1'").Scan(&status, &errMsg); err != nil {
		t.Fatal(err)
	}
	if status != "failed" {
		t.Errorf("status after restart = %q, want failed", status)
	}
	if errMsg != "interrupted by restart" {
		t.Errorf("error after restart = %q", errMsg)
	}
}
