package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/ocr-engine/internal/config"
	"github.com/ironsheep/ocr-engine/internal/logger"
)

// cli carries state shared by all subcommands.
type cli struct {
	configFile string
	cfg        config.Config

	det, rec, dict string
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: config.Default()}

	root := &cobra.Command{
		Use:   "ocr-engine",
		Short: "Detect and read text in images",
		Long: `ocr-engine finds text regions in images and reads them with a
detection model, a recognition model and a character dictionary.

Settings come from built-in defaults, an optional YAML file (--config) and
OCR_* environment variables. A .env file in the working directory is loaded
first.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "YAML configuration file")

	root.AddCommand(
		c.newRecognizeCmd(),
		c.newModelsCmd(),
		c.newServeCmd(),
		c.newVersionCmd(),
	)
	return root
}

// setup loads configuration and initializes logging before any command runs.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.cfg = *cfg

	log := logger.WithComponent("cmd")
	log.Debug().
		Str("command", cmd.Name()).
		Str("config", c.configFile).
		Str("version", Version).
		Msg("starting")
	return nil
}

// addModelFlags registers flags that override the configured model paths.
func (c *cli) addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.det, "det", "", "Detection model file (overrides models.det)")
	cmd.Flags().StringVar(&c.rec, "rec", "", "Recognition model file (overrides models.rec)")
	cmd.Flags().StringVar(&c.dict, "dict", "", "Dictionary file (overrides models.dict)")
}

// models returns the configured model paths with flag overrides applied.
func (c *cli) models() config.ModelPaths {
	m := c.cfg.Models
	if c.det != "" {
		m.Det = c.det
	}
	if c.rec != "" {
		m.Rec = c.rec
	}
	if c.dict != "" {
		m.Dict = c.dict
	}
	return m
}
