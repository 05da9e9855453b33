package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/satindergrewal/genreid/internal/audio"
	"github.com/satindergrewal/genreid/internal/dataset"
	"github.com/satindergrewal/genreid/internal/features"
	"github.com/satindergrewal/genreid/internal/genre"
	"github.com/satindergrewal/genreid/internal/model"
	"github.com/satindergrewal/genreid/internal/storage"
)

func TestManifestPath(t *testing.T) {
	tests := map[string]string{
		"features.csv":      "features.yaml",
		"out/table.csv":     "out/table.yaml",
		"datasets/gtzan/v2": "datasets/gtzan/v2.yaml",
	}
	for in, want := range tests {
		if got := manifestPath(in); got != want {
			t.Errorf("manifestPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderResult(t *testing.T) {
	out := renderResult("song.mp3", &genre.Result{
		Genre:        "jazz",
		Top3:         []model.Score{{Genre: "jazz", Prob: 0.9}, {Genre: "blues", Prob: 0.08}, {Genre: "rock", Prob: 0.02}},
		Source:       audio.ModalityAudio,
		FeaturesUsed: 55,
	})
	for _, want := range []string{"jazz", "blues", "rock", "song.mp3", "90.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestSchemaCommand(t *testing.T) {
	t.Setenv("GENREID_LOG_LEVEL", "error")
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"schema"})
	defer rootCmd.SetArgs(nil)

	if err := Execute(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"sample_rate: 22050", "max_seconds: 30", "- zcr_mean"} {
		if !strings.Contains(out, want) {
			t.Errorf("schema output missing %q:\n%s", want, out)
		}
	}
}

func TestCompareSpec(t *testing.T) {
	want := features.CurrentSpec(audio.SampleRate, 30)
	if err := compareSpec(want, want); err != nil {
		t.Errorf("compareSpec(same) = %v", err)
	}

	older := want
	older.Version--
	if err := compareSpec(older, want); err == nil {
		t.Error("expected error for older schema version")
	}

	renamed := want
	renamed.Columns = append([]string{"x"}, want.Columns[1:]...)
	if err := compareSpec(renamed, want); err == nil {
		t.Error("expected error for differing columns")
	}
}

func seedTable(t *testing.T, content string) (*storage.Local, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "features.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	return store, path
}

func TestWriteTableKeepsPreviousOnFailure(t *testing.T) {
	const old = "0,1,label\n1,2,rock\n"
	store, path := seedTable(t, old)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := writeTable(ctx, store, "features.csv", true, func(w io.Writer) (dataset.Stats, error) {
		io.WriteString(w, "partial")
		return dataset.Stats{}, ctx.Err()
	})
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != old {
		t.Errorf("table = %q, want previous %q", got, old)
	}
}

func TestWriteTableReplacesOnSuccess(t *testing.T) {
	store, path := seedTable(t, "old\n")

	stats, err := writeTable(context.Background(), store, "features.csv", true, func(w io.Writer) (dataset.Stats, error) {
		io.WriteString(w, "new\n")
		return dataset.Stats{Files: 1}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 1 {
		t.Errorf("Files = %d, want 1", stats.Files)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "new\n" {
		t.Errorf("table = %q, want %q", got, "new\n")
	}
}

func TestWriteTableRefusesOverwrite(t *testing.T) {
	store, path := seedTable(t, "old\n")

	built := false
	_, err := writeTable(context.Background(), store, "features.csv", false, func(w io.Writer) (dataset.Stats, error) {
		built = true
		return dataset.Stats{}, nil
	})
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("err = %v, want overwrite refusal", err)
	}
	if built {
		t.Error("build ran although the table exists")
	}
	got, _ := os.ReadFile(path)
	if string(got) != "old\n" {
		t.Errorf("table = %q, want unchanged", got)
	}
}
