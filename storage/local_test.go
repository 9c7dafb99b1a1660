package storage

import (
	"context"
	"testing"
)

func TestLocalStoreSaveAndRead(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "https://cdn.example.com/artifacts")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	url, err := store.Save(ctx, "jobs/job1/transcript.txt", []byte("hello world"), ContentTypeText)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if url != "https://cdn.example.com/artifacts/jobs/job1/transcript.txt" {
		t.Errorf("unexpected locator: %s", url)
	}

	content, err := store.Read(ctx, "jobs/job1/transcript.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(content) != "hello world" {
		t.Errorf("unexpected content: %s", content)
	}
}

func TestLocalStoreOverwrite(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Save(ctx, "k.txt", []byte("first"), ContentTypeText); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := store.Save(ctx, "k.txt", []byte("second"), ContentTypeText); err != nil {
		t.Fatalf("re-save failed: %v", err)
	}

	content, err := store.Read(ctx, "k.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(content) != "second" {
		t.Errorf("expected overwrite, got %s", content)
	}
}

func TestLocalStoreExists(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	exists, err := store.Exists(ctx, "missing.txt")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Error("expected missing key to not exist")
	}

	if _, err := store.Save(ctx, "present.txt", []byte("x"), ContentTypeText); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	exists, err = store.Exists(ctx, "present.txt")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !exists {
		t.Error("expected saved key to exist")
	}
}

func TestLocalStoreNestedKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	// Destination directories are created as needed.
	if _, err := store.Save(context.Background(), "a/b/c/deep.srt", []byte("1\n"), ContentTypeSRT); err != nil {
		t.Fatalf("nested save failed: %v", err)
	}
}
