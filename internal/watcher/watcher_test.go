package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()

	var ingested []string
	var mu sync.Mutex
	onIngest := func(path string) {
		mu.Lock()
		ingested = append(ingested, path)
		mu.Unlock()
	}
	w := NewWatcher(dir, []string{".txt"}, onIngest, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "f.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "skip.xyz"), "nope"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(ingested) < 1 {
		t.Fatalf("expected at least one ingest callback, got %d", len(ingested))
	}
	for _, p := range ingested {
		if strings.HasSuffix(p, "skip.xyz") {
			t.Errorf("skip.xyz should not be ingested")
		}
	}
}

func TestWatcher_RapidWritesCoalesce(t *testing.T) {
	dir := t.TempDir()

	var count int
	var mu sync.Mutex
	onIngest := func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	}
	w := NewWatcher(dir, nil, onIngest, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "burst.txt")
	for i := 0; i < 5; i++ {
		if err := writeFile(path, "rev"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected writes to coalesce into 1 ingest, got %d", count)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.json", []string{"json"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		w := NewWatcher("/tmp", tt.extensions, nil)
		got := w.matchExtension(tt.path)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}

	var ingested []string
	var mu sync.Mutex
	onIngest := func(path string) {
		mu.Lock()
		ingested = append(ingested, path)
		mu.Unlock()
	}
	w := NewWatcher(dir, []string{".txt"}, onIngest)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExistingFiles()

	mu.Lock()
	defer mu.Unlock()
	if len(ingested) != 1 || !strings.HasSuffix(ingested[0], "a.txt") {
		t.Errorf("expected one ingested file a.txt, got %v", ingested)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "ingest", "drop")

	w := NewWatcher(root, []string{".txt"}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_RemoveCancelsPendingIngest(t *testing.T) {
	dir := t.TempDir()

	var count int
	var mu sync.Mutex
	onIngest := func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	}
	w := NewWatcher(dir, nil, onIngest, WithDebounce(300*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "gone.txt")
	if err := writeFile(path, "short-lived"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(600 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("expected pending ingest to be cancelled on remove, got %d", count)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
