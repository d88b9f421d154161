package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/api"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/config"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/metrics"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/transport"
)

// Command datasource-kit pulls time series out of Grafana datasources in
// bounded pages.
//
// Usage:
//
//	datasource-kit [command] [flags]
//
// The commands are:
//
//	fetch   fetch ranges of one or more metrics and print them as JSON
//	stream  stream a range of one metric as CSV
//	sync    periodically copy every metric into TimescaleDB
//	health  probe the Grafana gateway
//
// Every command reads -config (default "config.yaml").
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every command needs once the configuration is loaded
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	registry *prometheus.Registry
	fetcher  *api.Fetcher
	cache    *api.CachedFetcher
}

func newRootCmd() *cobra.Command {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:           "datasource-kit",
		Short:         "Page time series out of Grafana datasources",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(
		newFetchCmd(a),
		newStreamCmd(a),
		newSyncCmd(a),
		newHealthCmd(a),
	)
	return root
}

func (a *app) init(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	clientMetrics, err := transport.NewMetrics(registry)
	if err != nil {
		return err
	}

	client := transport.NewClient(transport.ClientConfig{
		Timeout:        cfg.Grafana.Timeout,
		RateLimit:      cfg.Grafana.RateLimit,
		RateLimitBurst: cfg.Grafana.RateLimitBurst,
	}, logger, clientMetrics)

	return a.wire(cfg, logger, registry, client)
}

// wire builds the fetchers shared by every command of one process.
func (a *app) wire(cfg *config.Config, logger *logrus.Logger, registry *prometheus.Registry, t api.Transport) error {
	a.cfg = cfg
	a.logger = logger
	a.registry = registry
	a.fetcher = api.NewFetcher(t, logger, api.WithPageSize(cfg.Grafana.PageSize))

	cache, err := api.NewCachedFetcher(a.fetcher, cfg.Grafana.CacheSize)
	if err != nil {
		return fmt.Errorf("invalid cache size: %w", err)
	}
	a.cache = cache
	return nil
}

// Initialize structured logger
func newLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

func (a *app) metric(name string) (*metrics.SQLMetric, string, error) {
	mc, ok := a.cfg.Metric(name)
	if !ok {
		return nil, "", fmt.Errorf("unknown metric %q", name)
	}
	m := metrics.NewSQLMetric(mc.Name, models.Datasource{Type: mc.DatasourceType, UID: mc.DatasourceUID}, mc.SQL)
	m.OrgID = mc.OrgID
	return m, mc.TimeColumn, nil
}

// rangeFlags are shared by fetch and stream
type rangeFlags struct {
	from  string
	to    string
	since time.Duration
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "range start (RFC3339), defaults to --to minus --since")
	cmd.Flags().StringVar(&r.to, "to", "", "range end (RFC3339), defaults to now")
	cmd.Flags().DurationVar(&r.since, "since", time.Hour, "range length when --from is not set")
}

func (r *rangeFlags) resolve(now time.Time) (time.Time, time.Time, error) {
	to := now
	if r.to != "" {
		t, err := time.Parse(time.RFC3339, r.to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		to = t
	}

	from := to.Add(-r.since)
	if r.from != "" {
		t, err := time.Parse(time.RFC3339, r.from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		from = t
	}
	return from, to, nil
}

// parseRange parses "FROM/TO" with both ends in RFC3339.
func parseRange(s string) (time.Time, time.Time, error) {
	fromStr, toStr, ok := strings.Cut(s, "/")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --range %q: want FROM/TO", s)
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --range %q: %w", s, err)
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --range %q: %w", s, err)
	}
	return from, to, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
