package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/strix/internal/config"
	"firestige.xyz/strix/internal/log"
	"firestige.xyz/strix/internal/metrics"
	"firestige.xyz/strix/internal/pipeline"
	"firestige.xyz/strix/internal/sink"
	"firestige.xyz/strix/internal/source"

	// Registered sources and sinks.
	_ "firestige.xyz/strix/internal/sink/console"
	_ "firestige.xyz/strix/internal/sink/kafka"
	_ "firestige.xyz/strix/internal/source/file"
	_ "firestige.xyz/strix/internal/source/pcap"
	_ "firestige.xyz/strix/internal/source/tcp"
)

var shutdownTimeout time.Duration

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the agent",
	Long: `
Start the Strix stream deframing agent.

Examples:
  strix start                      # Start with the default config path
  strix start -c config.yml        # Start with config.yml
  strix start -c config.yml -t 1m  # Start with a 1m shutdown timeout
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		if err := run(cfg); err != nil {
			exitWithError("agent failed", err)
		}
	},
}

func init() {
	startCmd.Flags().DurationVarP(&shutdownTimeout, "timeout", "t", 5*time.Second,
		"graceful shutdown timeout")
	rootCmd.AddCommand(startCmd)
}

func run(cfg *config.Config) error {
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	logger := log.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := metricsSrv.Start(ctx); err != nil {
			return err
		}
	}

	snk, err := sink.New(cfg.Sink)
	if err != nil {
		return err
	}

	pipelines := func(streamID string) (*pipeline.Pipeline, error) {
		return pipeline.New(streamID, cfg.Source.Type, cfg.Parser, snk)
	}
	src, err := source.New(cfg.Source, pipelines)
	if err != nil {
		snk.Close()
		return err
	}

	logger.WithField("source", src.Name()).WithField("sink", snk.Name()).
		Info("strix agent starting")

	runErr := make(chan error, 1)
	go func() { runErr <- src.Run(ctx) }()

	var err2 error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err2 = <-runErr:
		// Finite sources (file, pcap) end here.
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if cerr := src.Close(); cerr != nil {
		logger.WithError(cerr).Warn("source close failed")
	}
	if cerr := snk.Close(); cerr != nil {
		logger.WithError(cerr).Warn("sink close failed")
	}
	if metricsSrv != nil {
		if cerr := metricsSrv.Stop(shutdownCtx); cerr != nil {
			logger.WithError(cerr).Warn("metrics server stop failed")
		}
	}

	logger.Info("strix agent stopped")
	return err2
}
