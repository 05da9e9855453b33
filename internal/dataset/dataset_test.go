package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/satindergrewal/genreid/internal/audio"
	"github.com/satindergrewal/genreid/internal/features"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "rock", "b.wav"))
	touch(t, filepath.Join(root, "rock", "a.MP3"))
	touch(t, filepath.Join(root, "rock", "notes.txt"))
	touch(t, filepath.Join(root, "rock", "live", "deep.wav"))
	touch(t, filepath.Join(root, "jazz", "c.flac"))
	touch(t, filepath.Join(root, "stray.wav"))

	items, err := Scan(root)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, it := range items {
		got = append(got, it.Label+"/"+filepath.Base(it.Path))
	}
	want := "jazz/c.flac,rock/a.MP3,rock/b.wav"
	if strings.Join(got, ",") != want {
		t.Errorf("Scan = %v, want %s", got, want)
	}
}

type fakeLoader struct {
	mu    sync.Mutex
	calls int
	fail  string
}

func (f *fakeLoader) Load(_ context.Context, path, _ string) (audio.Waveform, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if filepath.Base(path) == f.fail {
		return audio.Waveform{}, &audio.DecodeError{Path: path, Err: errors.New("invalid data found")}
	}
	rng := rand.New(rand.NewSource(int64(len(path))))
	s := make([]float32, audio.SampleRate/2)
	for i := range s {
		s[i] = float32(rng.Float64()*2 - 1)
	}
	return audio.Waveform{Samples: s, SampleRate: audio.SampleRate}, nil
}

func testItems() []Item {
	mt := time.Unix(1700000000, 0)
	return []Item{
		{Path: "/data/blues/one.wav", Label: "blues", Size: 10, ModTime: mt},
		{Path: "/data/blues/broken.wav", Label: "blues", Size: 10, ModTime: mt},
		{Path: "/data/rock/two.wav", Label: "rock", Size: 10, ModTime: mt},
	}
}

func TestRunWritesTable(t *testing.T) {
	loader := &fakeLoader{fail: "broken.wav"}
	var buf bytes.Buffer
	stats, err := NewExtractor(loader, WithWorkers(2)).Run(context.Background(), testItems(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 2 || stats.Failed != 1 || stats.Genres["blues"] != 1 || stats.Genres["rock"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if len(rows[0]) != features.Size+1 || rows[0][features.Size] != features.LabelColumn {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][features.Size] != "blues" || rows[2][features.Size] != "rock" {
		t.Errorf("labels = %s, %s; want blues, rock", rows[1][features.Size], rows[2][features.Size])
	}

	schema, err := features.ReadSchema(bytes.NewReader([]byte(strings.Join(rows[0], ",") + "\n")))
	if err != nil {
		t.Fatal(err)
	}
	if schema.Len() != features.Size {
		t.Errorf("schema round trip = %d columns, want %d", schema.Len(), features.Size)
	}
}

func TestRunUsesCache(t *testing.T) {
	cache, err := OpenCache("")
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	loader := &fakeLoader{}
	ex := NewExtractor(loader, WithCache(cache), WithWorkers(3))
	items := testItems()

	var first, second bytes.Buffer
	if _, err := ex.Run(context.Background(), items, &first); err != nil {
		t.Fatal(err)
	}
	calls := loader.calls
	stats, err := ex.Run(context.Background(), items, &second)
	if err != nil {
		t.Fatal(err)
	}
	if loader.calls != calls {
		t.Errorf("loader called %d more times on a cached run", loader.calls-calls)
	}
	if stats.Cached != len(items) {
		t.Errorf("cached = %d, want %d", stats.Cached, len(items))
	}
	if first.String() != second.String() {
		t.Error("cached run produced a different table")
	}

	// A touched file misses.
	items[0].ModTime = items[0].ModTime.Add(time.Second)
	if _, err := ex.Run(context.Background(), items, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if loader.calls != calls+1 {
		t.Errorf("loader calls = %d, want %d", loader.calls, calls+1)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExtractor(&fakeLoader{}).Run(ctx, testItems(), &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWriteManifest(t *testing.T) {
	var buf bytes.Buffer
	m := Manifest{
		Spec:      features.CurrentSpec(audio.SampleRate, 30),
		Root:      "/data",
		CreatedAt: time.Unix(0, 0).UTC(),
		Stats:     Stats{Files: 2, Genres: map[string]int{"rock": 2}},
	}
	if err := WriteManifest(&buf, m); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"version: 1", "n_fft: 2048", "root: /data", "files: 2", "rock: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("manifest missing %q:\n%s", want, out)
		}
	}
}
