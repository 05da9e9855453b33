package commands

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/genreid/internal/audio"
	"github.com/satindergrewal/genreid/internal/config"
	"github.com/satindergrewal/genreid/internal/storage"
)

var (
	configFile string
	logLevel   string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "genreid",
	Short: "Music genre classification for audio and video clips",
	Long: `genreid - classify the musical genre of audio and video clips.

The first 30 seconds of audio are reduced to 55 acoustic features (40 MFCCs,
12 chroma bins, spectral centroid, roll-off and zero-crossing rate) and fed
to a trained support vector classifier.

Configuration comes from defaults, an optional YAML file (--config) and
GENREID_* environment variables, e.g. GENREID_MODEL_PATH.

Examples:
  # Serve the HTTP API
  genreid serve --config genreid.yaml

  # Classify a file from the terminal
  genreid predict song.mp3

  # Build features.csv from <root>/<genre>/<file>
  genreid extract ./genres -o features.csv`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		if err := setupLogging(c); err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func setupLogging(c config.Config) error {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)
	switch c.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("log format %q: want text or json", c.LogFormat)
	}
	return nil
}

func newLoader() *audio.Loader {
	return audio.NewLoader(audio.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath), cfg.TempDir)
}

func s3Options() storage.S3Options {
	return storage.S3Options{Region: cfg.S3Region, Endpoint: cfg.S3Endpoint}
}
