package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chuanqi87/agent/internal/process"
	"github.com/chuanqi87/agent/internal/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway service",
	Long:  `Start the LLM gateway service in the foreground.`,
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, _ []string) error {
	// Setup logging
	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(verbose)

	// Load configuration; a missing file still yields a runnable
	// default config from the environment.
	cfg, err := cfgMgr.Load()
	if err != nil {
		return err
	}

	color.Green("Starting %s v%s...", AppName, Version)
	logger.Info("Starting server",
		"host", cfg.Host,
		"port", cfg.Port,
		"provider", cfg.Provider,
		"agent", cfg.Agent.Enabled,
	)

	// Setup process management
	procMgr := process.NewManager(baseDir)
	if err := procMgr.WritePID(); err != nil {
		return err
	}
	defer procMgr.CleanupPID()

	// Create and start server
	srv, err := server.New(cfgMgr, logger)
	if err != nil {
		return err
	}

	return srv.Start()
}
