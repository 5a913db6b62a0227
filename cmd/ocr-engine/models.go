package main

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ironsheep/ocr-engine/internal/refmodel"
)

// sampleFile is the name of the image written by models generate --sample.
const sampleFile = "sample.png"

func (c *cli) newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage model artifacts",
	}
	cmd.AddCommand(c.newModelsGenerateCmd())
	return cmd
}

func (c *cli) newModelsGenerateCmd() *cobra.Command {
	var outDir, sample string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the built-in reference models and dictionary",
		Long: `Write the reference detection model, recognition model and dictionary.

The reference models read printable ASCII rendered in a fixed 7x13 bitmap
font. They exist to try the engine end to end and to test integrations;
use trained models for real documents.`,
		Example: `  ocr-engine models generate --out models --sample "HELLO WORLD"
  ocr-engine recognize models/sample.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := refmodel.Write(outDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, paths.Det)
			fmt.Fprintln(out, paths.Rec)
			fmt.Fprintln(out, paths.Dict)

			if sample == "" {
				return nil
			}
			path := filepath.Join(outDir, sampleFile)
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := png.Encode(f, refmodel.RenderLine(sample, 4)); err != nil {
				f.Close()
				return fmt.Errorf("failed to write sample: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(out, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "models", "Output directory")
	cmd.Flags().StringVar(&sample, "sample", "", "Also render this text to "+sampleFile)
	return cmd
}
