package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/genreid/internal/audio"
	"github.com/satindergrewal/genreid/internal/dataset"
	"github.com/satindergrewal/genreid/internal/features"
	"github.com/satindergrewal/genreid/internal/storage"
)

var (
	extractOut     string
	extractWorkers int
	extractNoCache bool
	extractForce   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <dataset-root>",
	Short: "Build a training feature table from a labelled dataset",
	Long: `Walk <dataset-root>/<genre>/<file>, extract features from every
supported clip and write a CSV table (55 feature columns plus "label").
A YAML manifest describing the extraction is written next to it.

Vectors are cached in cache_dir, keyed by path, size and modification time,
so reruns only decode new or changed files. Files that cannot be decoded
are logged and skipped. The output may be a local path or s3://bucket/key;
an existing table is only replaced with --force, and only once the run
completes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		root := args[0]

		items, err := dataset.Scan(root)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("no supported clips under %s", root)
		}

		opts := []dataset.Option{dataset.WithProgress(cmd.ErrOrStderr())}
		if extractWorkers > 0 {
			opts = append(opts, dataset.WithWorkers(extractWorkers))
		}
		if !extractNoCache {
			cache, err := dataset.OpenCache(cfg.CacheDir)
			if err != nil {
				return err
			}
			defer cache.Close()
			opts = append(opts, dataset.WithCache(cache))
		}

		store, path, err := storage.Open(ctx, extractOut, s3Options())
		if err != nil {
			return err
		}
		ex := dataset.NewExtractor(newLoader(), opts...)
		stats, err := writeTable(ctx, store, path, extractForce, func(w io.Writer) (dataset.Stats, error) {
			return ex.Run(ctx, items, w)
		})
		if err != nil {
			return err
		}

		mw, err := store.Write(ctx, manifestPath(path))
		if err != nil {
			return err
		}
		err = dataset.WriteManifest(mw, dataset.Manifest{
			Spec:      features.CurrentSpec(audio.SampleRate, int(audio.MaxDuration.Seconds())),
			Root:      root,
			CreatedAt: time.Now().UTC(),
			Stats:     stats,
		})
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"rows":   stats.Files,
			"cached": stats.Cached,
			"failed": stats.Failed,
			"genres": len(stats.Genres),
			"out":    extractOut,
		}).Info("feature table written")
		return nil
	},
}

// writeTable runs build into memory and stores the result at path only
// when it succeeds, so an interrupted run leaves the previous table intact.
// An existing table is kept unless force is set.
func writeTable(ctx context.Context, store storage.FileStore, path string, force bool, build func(io.Writer) (dataset.Stats, error)) (dataset.Stats, error) {
	if !force {
		ok, err := store.Exists(ctx, path)
		if err != nil {
			return dataset.Stats{}, err
		}
		if ok {
			return dataset.Stats{}, fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	var buf bytes.Buffer
	stats, err := build(&buf)
	if err != nil {
		return stats, err
	}

	w, err := store.Write(ctx, path)
	if err != nil {
		return stats, err
	}
	if _, err := buf.WriteTo(w); err != nil {
		w.Close()
		return stats, err
	}
	return stats, w.Close()
}

// manifestPath puts the manifest beside the table: features.csv becomes
// features.yaml.
func manifestPath(table string) string {
	return strings.TrimSuffix(table, ".csv") + ".yaml"
}

func init() {
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "features.csv", "output table (local path or s3://bucket/key)")
	extractCmd.Flags().IntVarP(&extractWorkers, "workers", "w", 0, "concurrent decodes (default: CPUs - 1)")
	extractCmd.Flags().BoolVar(&extractNoCache, "no-cache", false, "ignore and do not update the vector cache")
	extractCmd.Flags().BoolVarP(&extractForce, "force", "f", false, "overwrite an existing table")
	rootCmd.AddCommand(extractCmd)
}
