// Package dataset builds the training feature table from a labelled
// directory of clips laid out as <root>/<genre>/<file>.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"gopkg.in/yaml.v3"

	"github.com/satindergrewal/genreid/internal/audio"
	"github.com/satindergrewal/genreid/internal/features"
)

// Item is one labelled clip.
type Item struct {
	Path    string
	Label   string
	Size    int64
	ModTime time.Time
}

// Scan lists every supported clip under root. Each immediate
// subdirectory is a genre label; other files and deeper levels are
// ignored. Items are ordered by label, then file name.
func Scan(root string) ([]Item, error) {
	genres, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, g := range genres {
		if !g.IsDir() {
			continue
		}
		dir := filepath.Join(root, g.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, err := audio.ModalityOf(audio.ExtOf(e.Name())); err != nil {
				continue
			}
			info, err := e.Info()
			if err != nil {
				return nil, err
			}
			items = append(items, Item{
				Path:    filepath.Join(dir, e.Name()),
				Label:   g.Name(),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Label != items[j].Label {
			return items[i].Label < items[j].Label
		}
		return items[i].Path < items[j].Path
	})
	return items, nil
}

// Loader produces an analysis-ready waveform from a media file.
type Loader interface {
	Load(ctx context.Context, path, ext string) (audio.Waveform, error)
}

// Stats summarizes an extraction run.
type Stats struct {
	Files  int            `yaml:"files"`
	Cached int            `yaml:"cached"`
	Failed int            `yaml:"failed"`
	Genres map[string]int `yaml:"genres"`
}

// Extractor computes feature vectors for a set of items.
type Extractor struct {
	loader   Loader
	cache    *Cache
	workers  int
	progress io.Writer
	log      *logrus.Entry
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCache reuses vectors from c and stores new ones in it.
func WithCache(c *Cache) Option { return func(e *Extractor) { e.cache = c } }

// WithWorkers sets the number of concurrent decodes.
func WithWorkers(n int) Option { return func(e *Extractor) { e.workers = n } }

// WithProgress renders one progress bar per genre to w.
func WithProgress(w io.Writer) Option { return func(e *Extractor) { e.progress = w } }

// NewExtractor creates an Extractor.
func NewExtractor(loader Loader, opts ...Option) *Extractor {
	e := &Extractor{
		loader:  loader,
		workers: max(1, runtime.NumCPU()-1),
		log:     logrus.WithField("component", "dataset"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type result struct {
	vec    features.Vector
	cached bool
	err    error
}

// Run extracts every item and writes the feature table to w: a header of
// features.Columns() plus "label", then one row per successfully
// processed item in input order. Items that fail are logged and skipped.
func (e *Extractor) Run(ctx context.Context, items []Item, w io.Writer) (Stats, error) {
	results := make([]result, len(items))
	bars := e.bars(items)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for n := 0; n < e.workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.extract(ctx, items[i])
				bars.increment(items[i].Label)
			}
		}()
	}
feed:
	for i := range items {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	bars.wait()

	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	return e.write(w, items, results)
}

func (e *Extractor) extract(ctx context.Context, it Item) result {
	log := e.log.WithField("file", it.Path)
	if e.cache != nil {
		v, ok, err := e.cache.Get(it)
		if err != nil {
			log.WithError(err).Warn("cache read failed")
		}
		if ok {
			return result{vec: v, cached: true}
		}
	}

	w, err := e.loader.Load(ctx, it.Path, audio.ExtOf(it.Path))
	if err != nil {
		log.WithError(err).Warn("skipping file")
		return result{err: err}
	}
	v, err := features.Extract(w)
	if err != nil {
		log.WithError(err).Warn("skipping file")
		return result{err: err}
	}

	if e.cache != nil {
		if err := e.cache.Put(it, v); err != nil {
			log.WithError(err).Warn("cache write failed")
		}
	}
	return result{vec: v}
}

func (e *Extractor) write(w io.Writer, items []Item, results []result) (Stats, error) {
	stats := Stats{Genres: map[string]int{}}
	cw := csv.NewWriter(w)
	if err := cw.Write(append(features.Columns(), features.LabelColumn)); err != nil {
		return stats, err
	}

	row := make([]string, features.Size+1)
	for i, r := range results {
		if r.err != nil {
			stats.Failed++
			continue
		}
		if len(r.vec) != features.Size {
			return stats, fmt.Errorf("%s: got %d features, want %d", items[i].Path, len(r.vec), features.Size)
		}
		for j, x := range r.vec {
			row[j] = strconv.FormatFloat(float64(x), 'g', -1, 32)
		}
		row[features.Size] = items[i].Label
		if err := cw.Write(row); err != nil {
			return stats, err
		}
		stats.Files++
		stats.Genres[items[i].Label]++
		if r.cached {
			stats.Cached++
		}
	}
	cw.Flush()
	return stats, cw.Error()
}

// Manifest records how a feature table was produced.
type Manifest struct {
	features.Spec `yaml:",inline"`
	Root          string    `yaml:"root"`
	CreatedAt     time.Time `yaml:"created_at"`
	Stats         Stats     `yaml:"stats"`
}

// WriteManifest encodes m as YAML.
func WriteManifest(w io.Writer, m Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}

// progress wraps one mpb bar per genre.
type progress struct {
	p    *mpb.Progress
	bars map[string]*mpb.Bar
}

func (e *Extractor) bars(items []Item) *progress {
	out := e.progress
	if out == nil {
		out = io.Discard
	}
	counts := map[string]int{}
	var order []string
	for _, it := range items {
		if counts[it.Label] == 0 {
			order = append(order, it.Label)
		}
		counts[it.Label]++
	}

	pr := &progress{p: mpb.New(mpb.WithOutput(out), mpb.WithWidth(48)), bars: map[string]*mpb.Bar{}}
	for _, g := range order {
		pr.bars[g] = pr.p.AddBar(int64(counts[g]),
			mpb.PrependDecorators(
				decor.Name(g+" "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 30),
			),
		)
	}
	return pr
}

func (p *progress) increment(label string) {
	if b, ok := p.bars[label]; ok {
		b.Increment()
	}
}

// wait completes bars that were cut short by cancellation and waits for
// the final render.
func (p *progress) wait() {
	for _, b := range p.bars {
		if !b.Completed() {
			b.Abort(false)
		}
	}
	p.p.Wait()
}
