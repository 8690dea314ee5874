package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveThenOpenRoundTrips(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	key := "doc-1_decision_letter.pdf"
	if err := store.Save(context.Background(), key, strings.NewReader("letter body")); err != nil {
		t.Fatalf("save: %v", err)
	}

	rc, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "letter body" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestSaveRejectsPathKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	for _, key := range []string{"", "../escape.pdf", "nested/escape.pdf", `win\escape.pdf`} {
		if err := store.Save(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestOpenMissingKeyFails(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	if _, err := store.Open(context.Background(), "absent.pdf"); err == nil {
		t.Fatal("expected error for missing key")
	}
}
