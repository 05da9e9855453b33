package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/genreid/internal/audio"
	"github.com/satindergrewal/genreid/internal/genre"
	"github.com/satindergrewal/genreid/internal/model"
)

var predictJSON bool

var predictCmd = &cobra.Command{
	Use:   "predict <file>...",
	Short: "Classify audio or video files",
	Long: `Classify one or more local files with the configured model.

Results are printed as styled text, or as one JSON object per line with
--json (the same body POST /predict returns).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		bundle, err := model.Load(ctx, cfg.ModelPath, cfg.SchemaPath, s3Options())
		if err != nil {
			return err
		}
		svc := genre.New(newLoader(), bundle)

		out := cmd.OutOrStdout()
		enc := json.NewEncoder(out)
		failed := 0
		for _, path := range args {
			res, err := svc.Classify(ctx, path, audio.ExtOf(path))
			if err != nil {
				failed++
				logrus.WithError(err).WithField("file", path).Error("classification failed")
				continue
			}
			if predictJSON {
				if err := enc.Encode(res); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(out, renderResult(filepath.Base(path), res))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "print JSON instead of styled text")
	rootCmd.AddCommand(predictCmd)
}
