package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/genreid/internal/genre"
	"github.com/satindergrewal/genreid/internal/model"
	"github.com/satindergrewal/genreid/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP classification API",
	Long: `Load the trained model and feature schema, then serve:

  GET  /                 service info and expected feature count
  POST /predict          multipart upload, form field "file"
  POST /predict_stream   same as /predict

The process exits if the model or schema cannot be loaded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		bundle, err := model.Load(ctx, cfg.ModelPath, cfg.SchemaPath, s3Options())
		if err != nil {
			logrus.WithError(err).Fatal("cannot start without a trained model")
		}
		svc := genre.New(newLoader(), bundle)

		srv := server.New(svc, server.Options{
			Addr:           cfg.Addr(),
			TempDir:        cfg.TempDir,
			MaxUploadBytes: cfg.MaxUploadBytes(),
			CORSOrigins:    cfg.CORSOrigins,
		})
		logrus.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"model":   cfg.ModelPath,
			"classes": len(svc.Classes()),
		}).Info("genreid serving")
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
