package main

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/ocr-engine/internal/logger"
	"github.com/ironsheep/ocr-engine/internal/server"
)

func (c *cli) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Long: `Run an MCP (Model Context Protocol) server over stdio exposing the
ocr_recognize, ocr_recognize_detailed, ocr_annotate and ocr_version tools.

Logs go to stderr; stdout carries the protocol. Configure it in your MCP
client as a stdio server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg
			cfg.Models = c.models()

			srv, err := server.New(cfg)
			if err != nil {
				return err
			}
			defer srv.Close()

			log := logger.WithComponent("serve")
			log.Info().
				Str("version", Version).
				Str("build_time", BuildTime).
				Str("commit", GitCommit).
				Msg("MCP server started")

			return srv.Run()
		},
	}
	c.addModelFlags(cmd)
	return cmd
}
