package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/soundcharts-client/internal/config"
	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/Sternrassler/soundcharts-client/pkg/logging"
	"github.com/Sternrassler/soundcharts-client/pkg/metrics"
	"github.com/Sternrassler/soundcharts-client/pkg/soundcharts"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds everything a subcommand needs. It is populated in
// PersistentPreRunE and torn down after RunE, whether RunE failed or not.
type app struct {
	out io.Writer

	configFile  string
	logLevel    string
	metricsAddr string

	logger zerolog.Logger
	client *client.Client
	api    *soundcharts.API

	stopMetrics context.CancelFunc
	metricsDone chan error
	closeStore  func() error
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:           "soundcharts",
		Short:         "Query the Soundcharts music analytics API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: fmt.Sprintf(`soundcharts fetches artist, song and playlist data from the Soundcharts API.

Paginated listings are followed to the end and date ranges longer than 90 days
are split into windows transparently. Results are printed as JSON.

Configuration is read from %s/config.yaml or ./config.yaml and
SOUNDCHARTS_* environment variables.`, config.Dir()),
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: config.yaml in the config directory)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	rootCmd.AddCommand(
		newFollowersCmd(a),
		newStreamsCmd(a),
		newAudienceCmd(a),
		newSearchCmd(a),
		newTopArtistsCmd(a),
		newCountriesCmd(a),
		newQuotaCmd(a),
	)
	for _, sub := range rootCmd.Commands() {
		sub.RunE = a.withTeardown(sub.RunE)
	}

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.metricsAddr != "" {
		cfg.MetricsAddr = a.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.logger = logging.Setup(cfg.Logging())

	store, closeStore, err := cfg.QuotaStore(cmd.Context())
	if err != nil {
		return err
	}
	a.closeStore = closeStore

	c, err := client.New(cfg.ClientConfig(store, &a.logger))
	if err != nil {
		closeStore()
		return fmt.Errorf("create client: %w", err)
	}
	a.client = c

	apiConfig := soundcharts.DefaultConfig()
	apiConfig.Logger = &a.logger
	a.api = soundcharts.NewWithConfig(c, apiConfig)

	if cfg.MetricsAddr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		a.metricsDone = make(chan error, 1)
		go func() {
			a.metricsDone <- metrics.Serve(ctx, cfg.MetricsAddr, a.logger)
		}()
	}

	return nil
}

// withTeardown releases the resources of setup after run returns. Cobra skips
// post-run hooks when RunE fails, so this cannot live in PersistentPostRunE.
func (a *app) withTeardown(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if terr := a.teardown(); err == nil {
			err = terr
		}
		return err
	}
}

func (a *app) teardown() error {
	if a.stopMetrics != nil {
		a.stopMetrics()
		if err := <-a.metricsDone; err != nil {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.closeStore != nil {
		return a.closeStore()
	}
	return nil
}

// print writes v as indented JSON.
func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDate parses an optional YYYY-MM-DD flag value. Empty yields the zero
// time, which lets the service pick its default range.
func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}

// dateRange binds --start and --end to a command.
type dateRange struct {
	start, end string
}

func (d *dateRange) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.start, "start", "", "first day (YYYY-MM-DD, default: 90 days before --end)")
	cmd.Flags().StringVar(&d.end, "end", "", "last day (YYYY-MM-DD, default: today)")
}

func (d *dateRange) parse() (time.Time, time.Time, error) {
	start, err := parseDate("start", d.start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("end", d.end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
