package commands

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/genreid/internal/audio"
	"github.com/satindergrewal/genreid/internal/features"
)

var schemaCheck string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the feature extraction spec as YAML",
	Long: `Print the feature extraction spec as YAML.

With --check, read the manifest written by "extract" and report whether
the feature table was produced by this build's extraction.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := features.CurrentSpec(audio.SampleRate, int(audio.MaxDuration.Seconds()))
		if schemaCheck == "" {
			return spec.WriteYAML(cmd.OutOrStdout())
		}

		f, err := os.Open(schemaCheck)
		if err != nil {
			return err
		}
		defer f.Close()
		got, err := features.ReadSpec(f)
		if err != nil {
			return err
		}
		if err := compareSpec(got, spec); err != nil {
			return fmt.Errorf("%s: %w", schemaCheck, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s matches schema version %d\n", schemaCheck, spec.Version)
		return nil
	},
}

func compareSpec(got, want features.Spec) error {
	switch {
	case got.Version != want.Version:
		return fmt.Errorf("schema version %d, this build extracts version %d", got.Version, want.Version)
	case got.SampleRate != want.SampleRate:
		return fmt.Errorf("sample rate %d, this build uses %d", got.SampleRate, want.SampleRate)
	case !slices.Equal(got.Columns, want.Columns):
		return fmt.Errorf("%d columns differ from this build's %d", len(got.Columns), len(want.Columns))
	}
	return nil
}

func init() {
	schemaCmd.Flags().StringVar(&schemaCheck, "check", "", "manifest to compare against this build")
	rootCmd.AddCommand(schemaCmd)
}
