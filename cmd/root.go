package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/chargesim/app"
	"github.com/kilianp07/chargesim/config"
	"github.com/kilianp07/chargesim/core/metrics"
	"github.com/kilianp07/chargesim/core/simulation"
	"github.com/kilianp07/chargesim/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "chargesim",
	Short:        "EV charge point demand estimator",
	RunE:         run,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and live feed",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

// openService loads the configuration and opens the configured store for
// one-shot commands. Logs go to stderr so command output stays parseable.
func openService(cmd *cobra.Command) (*simulation.Service, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	opts := cfg.Logging.Options()
	opts.Output = cmd.ErrOrStderr()
	logCloser, err := logger.Configure(opts)
	if err != nil {
		return nil, nil, err
	}
	svc, store, err := app.NewSimulationService(cfg, metrics.NopSink{})
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}
	cleanup := func() {
		closeQuietly(cmd.ErrOrStderr(), "store", store)
		closeQuietly(cmd.ErrOrStderr(), "log file", logCloser)
	}
	return svc, cleanup, nil
}

func closeQuietly(w io.Writer, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		fmt.Fprintf(w, "close %s: %v\n", what, err)
	}
}
