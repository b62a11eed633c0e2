// Package cli implements the slopectl command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"slopectl/internal/apperrors"
	"slopectl/internal/config"
	"slopectl/internal/observability"
	"slopectl/internal/poll"
	"slopectl/internal/slope"
	"slopectl/internal/workflow"
)

// app is the state shared by all commands of one invocation.
type app struct {
	cfg     *config.ClientConfig
	metrics *observability.Metrics
	server  *metricsServer

	apiURL       string
	lenientProbe bool
	metricsAddr  string
	output       string
}

// Execute runs slopectl and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd, a := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return apperrors.ExitCode(err)
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "slopectl",
		Short:         "Drive Slope projections from the command line",
		Long:          "Upload inputs, configure and run projections, and download reports through the Slope API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          noArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.Validation("flags", err.Error())
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", config.DefaultAPIURL, "Slope API base URL (env SLOPE_API_URL)")
	flags.BoolVar(&a.lenientProbe, "lenient-probe", false, "treat a failing running probe as a stopped projection (env SLOPE_LENIENT_RUNNING_PROBE)")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running (env METRICS_ADDR)")
	flags.StringVarP(&a.output, "output", "o", "table", "output format (table, json)")

	rootCmd.AddCommand(
		newRunCmd(a),
		newLoadTablesCmd(a),
		newListCmd(a),
		newDownloadCmd(a),
		newReportCmd(a),
		newWaitCmd(a),
	)
	return rootCmd, a
}

// setup resolves configuration (flag > env > default), installs the logger
// and starts the metrics server when requested.
func (a *app) setup(cmd *cobra.Command) error {
	// Missing required flags are usage errors.
	if err := cmd.ValidateRequiredFlags(); err != nil {
		return apperrors.Validation("flags", err.Error())
	}

	cfg := config.LoadClientConfig()
	if cmd.Flags().Changed("api-url") {
		cfg.APIURL = a.apiURL
	}
	if cmd.Flags().Changed("lenient-probe") {
		cfg.LenientProbe = a.lenientProbe
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	a.cfg = cfg

	if err := validateOutputFormat(a.output); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel})))

	metrics, handler, err := observability.NewMetrics(cmd.Context())
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}
	a.metrics = metrics

	if cfg.MetricsAddr != "" {
		server, err := startMetricsServer(cfg.MetricsAddr, handler)
		if err != nil {
			return err
		}
		a.server = server
	}
	return nil
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return apperrors.Validation("args", err.Error())
	}
	return nil
}

func (a *app) close() {
	if a.server != nil {
		a.server.shutdown()
	}
}

// session validates the credentials and authorizes against the API.
func (a *app) session(ctx context.Context) (*slope.Session, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return slope.Authorize(ctx, slope.Options{
		BaseURL:       a.cfg.APIURL,
		HTTPClient:    &http.Client{Timeout: a.cfg.HTTPTimeout},
		StorageClient: &http.Client{Timeout: a.cfg.TransferTimeout},
		RateLimit:     a.cfg.RateLimit,
		Metrics:       a.metrics,
	}, a.cfg.APIKey, a.cfg.APISecret)
}

func (a *app) runWait() slope.ProjectionWaitConfig {
	return slope.ProjectionWaitConfig{
		Interval:     a.cfg.RunPollInterval,
		Timeout:      a.cfg.RunTimeout,
		LenientProbe: a.cfg.LenientProbe,
	}
}

func (a *app) reportWait() poll.Config {
	return poll.Config{Interval: a.cfg.ReportPollInterval, Timeout: a.cfg.ReportTimeout}
}

func (a *app) waitConfig() workflow.WaitConfig {
	return workflow.WaitConfig{Run: a.runWait(), Report: a.reportWait()}
}

func (a *app) print(w io.Writer, v any, headers []string, rows [][]string) error {
	if a.output == "json" {
		return printJSON(w, v)
	}
	return printTable(w, headers, rows)
}
