package templates

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"gocv.io/x/gocv"

	"jordanella.com/sortie-pilot/internal/cv"
)

// countingExtractor counts extractions and returns empty features
type countingExtractor struct {
	calls atomic.Int64
}

func (c *countingExtractor) Extract(gray gocv.Mat) (cv.Features, error) {
	c.calls.Add(1)
	return cv.Features{Descriptors: gocv.NewMat()}, nil
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*7 + y*13) % 256)})
		}
	}

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
	return path
}

func TestStoreExtractsOnce(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "combat/compass.png")

	ext := &countingExtractor{}
	store := NewStore(dir, ext)
	defer store.Close()

	first, err := store.Get("combat/compass.png")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := store.Get("combat/compass.png")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if again != first {
			t.Error("expected the cached template to be returned")
		}
	}

	if got := ext.calls.Load(); got != 1 {
		t.Errorf("expected 1 extraction, got %d", got)
	}

	stats := store.Stats()
	if stats.Loads != 1 || stats.Misses != 1 || stats.Hits != 5 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestStoreConcurrentGet(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png")
	writePNG(t, dir, "b.png")

	ext := &countingExtractor{}
	store := NewStore(dir, ext)
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "a.png"
			if i%2 == 1 {
				name = "b.png"
			}
			if _, err := store.Get(name); err != nil {
				t.Errorf("Get(%s) failed: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	if got := ext.calls.Load(); got != 2 {
		t.Errorf("expected 2 extractions, got %d", got)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 templates, got %d", store.Len())
	}
}

func TestStoreNotFound(t *testing.T) {
	dir := t.TempDir()
	ext := &countingExtractor{}
	store := NewStore(dir, ext)
	defer store.Close()

	_, err := store.Get("missing.png")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}

	// Failures are not cached; the file can appear later
	writePNG(t, dir, "missing.png")
	if _, err := store.Get("missing.png"); err != nil {
		t.Errorf("expected load after the file appeared, got %v", err)
	}

	stats := store.Stats()
	if stats.Failures != 1 || stats.Loads != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestStoreUndecodable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	store := NewStore(dir, &countingExtractor{})
	defer store.Close()

	if _, err := store.Get("broken.png"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestStoreResolve(t *testing.T) {
	dir := t.TempDir()
	abs := writePNG(t, dir, "common/next.png")

	ext := &countingExtractor{}
	store := NewStore(dir, ext)
	defer store.Close()

	if got := store.Resolve("common/next.png"); got != abs {
		t.Errorf("Resolve relative = %s, want %s", got, abs)
	}
	if got := store.Resolve(abs); got != abs {
		t.Errorf("Resolve absolute = %s, want %s", got, abs)
	}

	// Relative and absolute spellings share one entry
	if _, err := store.Get("common/next.png"); err != nil {
		t.Fatalf("Get relative failed: %v", err)
	}
	if _, err := store.Get(abs); err != nil {
		t.Fatalf("Get absolute failed: %v", err)
	}
	if got := ext.calls.Load(); got != 1 {
		t.Errorf("expected 1 extraction, got %d", got)
	}
	if paths := store.Paths(); len(paths) != 1 || paths[0] != abs {
		t.Errorf("unexpected paths: %v", paths)
	}
}

func TestStoreRelativeRoot(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	rel, err := filepath.Rel(wd, dir)
	if err != nil {
		t.Skipf("temp dir not reachable from working directory: %v", err)
	}

	ext := &countingExtractor{}
	store := NewStore(rel, ext)
	defer store.Close()

	if !filepath.IsAbs(store.Root()) {
		t.Errorf("Root = %s, want absolute", store.Root())
	}
	key := store.Resolve("a.png")
	if want := filepath.Join(dir, "a.png"); key != want {
		t.Errorf("Resolve = %s, want %s", key, want)
	}

	if _, err := store.Get("a.png"); err != nil {
		t.Fatalf("Get relative failed: %v", err)
	}
	if _, err := store.Get(filepath.Join(dir, "a.png")); err != nil {
		t.Fatalf("Get absolute failed: %v", err)
	}
	if got := ext.calls.Load(); got != 1 {
		t.Errorf("expected 1 extraction, got %d", got)
	}
}

func TestStorePreload(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png")
	writePNG(t, dir, "b.png")

	store := NewStore(dir, &countingExtractor{})
	defer store.Close()

	if err := store.Preload("a.png", "b.png"); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 templates, got %d", store.Len())
	}

	if err := store.Preload("a.png", "c.png"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}
