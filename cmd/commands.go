package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/database"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/scheduler"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		r      rangeFlags
		names  []string
		ranges []string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch ranges of one or more metrics and print them as JSON",
		Long: `Fetch every --metric over every --range (or the single range given by
--from, --to and --since) and print the results as a JSON array. Repeated
queries are answered from the result cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := fetchQueries(names, ranges, r, time.Now())
			if err != nil {
				return err
			}
			out, err := a.fetchAll(commandContext(cmd), queries)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	r.register(cmd)
	cmd.Flags().StringArrayVar(&names, "metric", nil, "name of a configured metric, repeatable")
	cmd.Flags().StringArrayVar(&ranges, "range", nil, "range as FROM/TO in RFC3339, repeatable")
	cmd.MarkFlagRequired("metric")
	return cmd
}

type fetchQuery struct {
	metric   string
	from, to time.Time
}

// fetchQueries crosses every metric with every range.
func fetchQueries(names, ranges []string, r rangeFlags, now time.Time) ([]fetchQuery, error) {
	type span struct{ from, to time.Time }
	var spans []span
	for _, s := range ranges {
		from, to, err := parseRange(s)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span{from, to})
	}
	if len(spans) == 0 {
		from, to, err := r.resolve(now)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span{from, to})
	}

	queries := make([]fetchQuery, 0, len(names)*len(spans))
	for _, name := range names {
		for _, sp := range spans {
			queries = append(queries, fetchQuery{metric: name, from: sp.from, to: sp.to})
		}
	}
	return queries, nil
}

type fetchOutput struct {
	Metric string    `json:"metric"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	jsonResult
}

// fetchAll runs the queries through the shared result cache.
func (a *app) fetchAll(ctx context.Context, queries []fetchQuery) ([]fetchOutput, error) {
	out := make([]fetchOutput, 0, len(queries))
	for _, q := range queries {
		metric, _, err := a.metric(q.metric)
		if err != nil {
			return nil, err
		}
		result, err := a.cache.FetchAggregate(ctx, metric, a.cfg.Grafana.URL, q.from, q.to, a.cfg.Grafana.APIKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.metric, err)
		}
		out = append(out, fetchOutput{
			Metric:     q.metric,
			From:       q.from,
			To:         q.to,
			jsonResult: nullableResult(result),
		})
	}
	return out, nil
}

// jsonResult is an aggregate with null cells as JSON nulls
type jsonResult struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

func nullableResult(r *models.AggregateResult) jsonResult {
	out := jsonResult{Columns: r.Columns, Values: make([][]*float64, len(r.Values))}
	for i, row := range r.Values {
		cells := make([]*float64, len(row))
		for j := range row {
			if !math.IsNaN(row[j]) {
				cells[j] = &row[j]
			}
		}
		out.Values[i] = cells
	}
	return out
}

func newStreamCmd(a *app) *cobra.Command {
	var (
		r     rangeFlags
		name  string
		batch int
	)
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream a range of one metric as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if batch < 1 {
				return fmt.Errorf("--batch must be at least 1, got %d", batch)
			}
			metric, _, err := a.metric(name)
			if err != nil {
				return err
			}
			from, to, err := r.resolve(time.Now())
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			stream, err := a.fetcher.OpenStream(ctx, metric, a.cfg.Grafana.URL, from, to, a.cfg.Grafana.APIKey)
			if err != nil {
				return err
			}

			w := csv.NewWriter(cmd.OutOrStdout())
			header := false
			for {
				points, err := stream.Pull(ctx, batch)
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				for _, p := range points {
					if !header {
						w.Write(p.Columns)
						header = true
					}
					row := make([]string, len(p.Values))
					for i, v := range p.Values {
						row[i] = strconv.FormatFloat(v, 'f', -1, 64)
					}
					w.Write(row)
				}
				w.Flush()
				if err := w.Error(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	r.register(cmd)
	cmd.Flags().StringVar(&name, "metric", "", "name of a configured metric")
	cmd.Flags().IntVar(&batch, "batch", 1000, "points pulled per read")
	cmd.MarkFlagRequired("metric")
	return cmd
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the Grafana gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.fetcher.Health(commandContext(cmd), a.cfg.Grafana.URL, a.cfg.Grafana.APIKey)
			if err != nil {
				return err
			}
			a.logger.WithFields(logrus.Fields{
				"version":  h.Version,
				"database": h.Database,
				"commit":   h.Commit,
			}).Info("Gateway is healthy")
			return nil
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Periodically copy every configured metric into TimescaleDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSync(commandContext(cmd), once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single sync and exit")
	return cmd
}

func (a *app) runSync(parent context.Context, once bool) error {
	repo, err := database.NewPostgresRepo(a.cfg.Database.ConnString(), a.cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()

	// Create a context that will be canceled on shutdown
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	jobs := make([]scheduler.Job, 0, len(a.cfg.Metrics))
	for _, mc := range a.cfg.Metrics {
		metric, timeColumn, err := a.metric(mc.Name)
		if err != nil {
			return err
		}
		jobs = append(jobs, scheduler.Job{Metric: metric, TimeColumn: timeColumn})
	}

	s := scheduler.NewScheduler(ctx, a.fetcher, repo, jobs, scheduler.Config{
		BaseURL:    a.cfg.Grafana.URL,
		APIKey:     a.cfg.Grafana.APIKey,
		Schedule:   a.cfg.Sync.Schedule,
		Window:     a.cfg.Sync.Window,
		BatchSize:  a.cfg.Sync.BatchSize,
		MaxRetries: a.cfg.Sync.MaxRetries,
	}, a.logger)

	if once {
		return s.RunOnce(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.Sync.MetricsAddr, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", srv.Addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	if err := s.Start(); err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"schedule": a.cfg.Sync.Schedule,
		"metrics":  len(jobs),
	}).Info("Scheduler started")

	handleShutdown(ctx, errChan, a.logger)

	// Perform graceful shutdown
	cancel()
	s.Stop()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Metrics server did not stop cleanly")
	}
	a.logger.Info("Sync stopped")

	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}

// handleShutdown blocks until a signal arrives, ctx is canceled or a
// background service fails.
func handleShutdown(ctx context.Context, errChan chan error, logger *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		logger.Println("Context canceled, initiating shutdown")
	case sig := <-sigChan:
		logger.Printf("Received signal %v, initiating shutdown", sig)
	case err := <-errChan:
		logger.WithError(err).Error("Service error, initiating shutdown")
		// Put it back for the caller.
		errChan <- err
	}
}
