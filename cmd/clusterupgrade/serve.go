package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/api"
	"github.com/cuemby/clusterupgrade/pkg/config"
	"github.com/cuemby/clusterupgrade/pkg/log"
	"github.com/cuemby/clusterupgrade/pkg/manager"
	"github.com/cuemby/clusterupgrade/pkg/metrics"
	"github.com/cuemby/clusterupgrade/pkg/tasks"
	"github.com/cuemby/clusterupgrade/pkg/upgrade"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upgrade API server",
	Long: `Run the upgrade API server.

Settings are read from the file given with --config and overridden by the
flags that are set explicitly.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Configuration file")
	serveCmd.Flags().String("data-dir", "", "Data directory for the object store")
	serveCmd.Flags().String("api-addr", "", "Listen address of the API")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().Bool("log-json", false, "Log in JSON format")
	serveCmd.Flags().Bool("read-only", false, "Only serve GET requests")

	rootCmd.AddCommand(serveCmd)
}

// loadServeConfig reads the config file and applies the flags that were set
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("api-addr") {
		cfg.APIAddr, _ = flags.GetString("api-addr")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("read-only") {
		cfg.ReadOnly, _ = flags.GetBool("read-only")
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logging, err := cfg.Logging()
	if err != nil {
		return err
	}
	log.Init(logging)
	metrics.SetVersion(Version)
	logger := log.WithComponent("serve")

	mgr, err := manager.NewManager(&manager.Config{DataDir: cfg.DataDir})
	if err != nil {
		metrics.RegisterComponent(metrics.ComponentStorage, false, err.Error())
		return fmt.Errorf("failed to open store: %w", err)
	}
	metrics.RegisterComponent(metrics.ComponentStorage, true, "")

	taskManager := tasks.NewManager(mgr.Store(), mgr.GetEventBroker(), tasks.SimulatedProvisioner{Delay: cfg.ProvisionDelay})
	helper := upgrade.NewHelper(upgrade.Config{
		Objects:  mgr,
		Tasks:    taskManager,
		Settings: cfg.Transformations,
	})

	// Fail fast on transformer names that have no implementation
	if _, err := helper.Transformations(); err != nil {
		metrics.RegisterComponent(metrics.ComponentTransformations, false, err.Error())
		_ = mgr.Shutdown()
		return fmt.Errorf("failed to load transformations: %w", err)
	}
	metrics.RegisterComponent(metrics.ComponentTransformations, true, "")

	collector := metrics.NewCollector(mgr.Store())
	collector.Start()

	server := api.NewServer(api.Config{
		Objects:  mgr,
		Helper:   helper,
		ReadOnly: cfg.ReadOnly,
	})
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.APIAddr); err != nil {
			errCh <- fmt.Errorf("API server error: %w", err)
		}
	}()

	logger.Info().
		Str("data_dir", cfg.DataDir).
		Str("api_addr", cfg.APIAddr).
		Bool("read_only", cfg.ReadOnly).
		Msg("Upgrade service running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("API server stopped")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("API server did not stop cleanly")
	}
	collector.Stop()
	taskManager.Wait()
	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}

	logger.Info().Msg("Shutdown complete")
	return runErr
}
