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

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) add(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *recorder) has(suffix string) bool {
	for _, p := range r.list() {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.geojson", []string{".geojson"}, true},
		{"/a/b.GEOJSON", []string{"geojson"}, true},
		{"/a/b.json", []string{".geojson"}, false},
		{"/a/b", nil, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestWatcher_DebouncedChangeAndRemove(t *testing.T) {
	dir := t.TempDir()
	changed, removed := &recorder{}, &recorder{}
	w := New([]string{dir}, []string{".geojson"}, true, changed.add, removed.add, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "parker.geojson")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[]}`), 0600); err != nil {
			t.Fatal(err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600)
	time.Sleep(300 * time.Millisecond)

	got := changed.list()
	if len(got) != 1 || !strings.HasSuffix(got[0], "parker.geojson") {
		t.Errorf("changed = %v, want one parker.geojson", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if !removed.has("parker.geojson") {
		t.Errorf("removed = %v", removed.list())
	}
}

func TestWatcher_NewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	changed := &recorder{}
	w := New([]string{dir}, []string{".geojson"}, true, changed.add, nil, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "kommun")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "sjoar.geojson"), []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	if !changed.has("sjoar.geojson") {
		t.Errorf("changed = %v", changed.list())
	}
}

func TestWatcher_SyncAll(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.geojson"), []byte("{}"), 0600)
	_ = os.WriteFile(filepath.Join(dir, "ignore.xyz"), []byte("x"), 0600)
	changed := &recorder{}
	w := New([]string{dir}, []string{".geojson"}, true, changed.add, nil)
	w.SyncAll()
	got := changed.list()
	if len(got) != 1 || !strings.HasSuffix(got[0], "a.geojson") {
		t.Errorf("synced = %v", got)
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	w := New([]string{root}, nil, true, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should exist after Start: %v", err)
	}
}
