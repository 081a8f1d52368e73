// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the toolfuse command-line application.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toolfuse/toolfuse/pkg/fuse/config"
	fuseserver "github.com/toolfuse/toolfuse/pkg/fuse/server"
	"github.com/toolfuse/toolfuse/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "toolfuse",
	DisableAutoGenTag: true,
	Short:             "Composable MCP server - compose APIs and MCP servers into one endpoint",
	Long: `toolfuse composes multiple component sources into a single MCP (Model Context
Protocol) server. It provides:

- OpenAPI-backed servers whose operations become tools and resources
- Mounting of remote MCP servers with namespace prefixes
- Unified routing of tool calls, resource reads, and prompt gets
- Middleware for logging and authorization

The composed server is exposed over stdio or streamable HTTP.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the toolfuse CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to toolfuse configuration file")
	err = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	if err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the composed MCP server",
		Long: `Start the composed MCP server described by the configuration file.

The server builds every configured OpenAPI child, mounts every configured
remote server, and exposes the composed view over the configured transport.`,
		RunE: runServe,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display version information for toolfuse",
		Run: func(_ *cobra.Command, _ []string) {
			logger.Infof("toolfuse version: %s", getVersion())
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validate the toolfuse configuration file for syntax and semantic errors.

This command checks:
- YAML syntax validity
- Required fields presence
- Route map pattern correctness
- Mount transport validity`,
		RunE: func(_ *cobra.Command, _ []string) error {
			configPath := viper.GetString("config")
			if configPath == "" {
				return fmt.Errorf("no configuration file specified, use --config flag")
			}

			logger.Infof("Validating configuration: %s", configPath)

			cfg, err := config.Load(configPath)
			if err != nil {
				logger.Errorf("Configuration validation failed: %v", err)
				return fmt.Errorf("validation failed: %w", err)
			}

			logger.Infof("Configuration is valid")
			logger.Infof("  Name: %s", cfg.Name)
			logger.Infof("  Transport: %s", transportName(cfg))
			logger.Infof("  OpenAPI servers: %d", len(cfg.OpenAPI))
			logger.Infof("  Remote mounts: %d", len(cfg.Mounts))
			return nil
		},
	}
}

func transportName(cfg *config.Config) string {
	if cfg.Transport.Type == "" {
		return config.TransportStdio
	}
	return cfg.Transport.Type
}

// getVersion returns the version string (will be set at build time)
func getVersion() string {
	return "dev"
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	configPath := viper.GetString("config")

	if configPath == "" {
		return fmt.Errorf("no configuration file specified, use --config flag")
	}

	logger.Infof("Loading configuration from: %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Errorf("Failed to load configuration: %v", err)
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	logger.Infof("Configuration loaded and validated successfully")
	logger.Infof("  Name: %s", cfg.Name)
	logger.Infof("  OpenAPI servers: %d", len(cfg.OpenAPI))
	logger.Infof("  Remote mounts: %d", len(cfg.Mounts))

	root, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build composition: %w", err)
	}

	srv, err := fuseserver.New(ctx, root, fuseserver.Config{
		Host:         cfg.Transport.Host,
		Port:         cfg.Transport.Port,
		EndpointPath: cfg.Transport.EndpointPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create transport server: %w", err)
	}

	if transportName(cfg) == config.TransportStreamableHTTP {
		return srv.ServeHTTP(ctx)
	}
	return srv.ServeStdio(ctx)
}
