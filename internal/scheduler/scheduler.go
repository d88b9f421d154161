package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jpillora/backoff"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/api"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/database"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
)

// Job is one metric to keep in sync.
type Job struct {
	Metric     api.Metric
	TimeColumn string
}

// Config controls what is synced and how often
type Config struct {
	BaseURL    string
	APIKey     string
	Schedule   string        // cron expression
	Window     time.Duration // how far back a sync reaches when nothing is stored
	BatchSize  int           // points pulled from the stream per insert
	MaxRetries int           // retries of retryable failures per metric and run
	RetryMin   time.Duration
	RetryMax   time.Duration
	RunTimeout time.Duration
}

type Scheduler struct {
	ctx     context.Context
	fetcher *api.Fetcher
	repo    database.TimeSeriesRepository
	jobs    []Job
	cfg     Config
	logger  *logrus.Logger
	cron    *cron.Cron
	now     func() time.Time
}

func NewScheduler(
	ctx context.Context,
	fetcher *api.Fetcher,
	repo database.TimeSeriesRepository,
	jobs []Job,
	cfg Config,
	logger *logrus.Logger,
) *Scheduler {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = fetcher.PageSize()
	}
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = time.Second
	}
	if cfg.RetryMax < cfg.RetryMin {
		cfg.RetryMax = 30 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	return &Scheduler{
		ctx:     ctx,
		fetcher: fetcher,
		repo:    repo,
		jobs:    jobs,
		cfg:     cfg,
		logger:  logger,
		cron:    cron.New(),
		now:     time.Now,
	}
}

// Start the scheduler
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, s.collectData)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop the scheduler and wait for a running sync to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// collectData syncs every job and logs the outcome
func (s *Scheduler) collectData() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RunTimeout)
	defer cancel()

	if err := s.RunOnce(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to sync data")
	}
}

// RunOnce syncs every job once. A failing job does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		if err := s.syncWithRetry(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Metric.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) syncWithRetry(ctx context.Context, job Job) error {
	b := &backoff.Backoff{
		Min:    s.cfg.RetryMin,
		Max:    s.cfg.RetryMax,
		Factor: 2,
		Jitter: true,
	}

	for {
		err := s.syncMetric(ctx, job)
		if err == nil {
			return nil
		}

		var apiErr *api.Error
		if !errors.As(err, &apiErr) || !apiErr.Retryable() || int(b.Attempt()) >= s.cfg.MaxRetries {
			return err
		}

		wait := b.Duration()
		s.logger.WithFields(logrus.Fields{
			"metric":  job.Metric.Name(),
			"attempt": int(b.Attempt()),
			"wait":    wait,
		}).WithError(err).Warn("Sync failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// syncMetric streams the range since the last stored sample into the
// repository, one batch at a time.
func (s *Scheduler) syncMetric(ctx context.Context, job Job) error {
	name := job.Metric.Name()
	to := s.now()
	from := to.Add(-s.cfg.Window)

	latest, ok, err := s.repo.LatestTime(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to read latest sample: %w", err)
	}
	if ok && latest.After(from) && latest.Before(to) {
		from = latest
	}

	stream, err := s.fetcher.OpenStream(ctx, job.Metric, s.cfg.BaseURL, from, to, s.cfg.APIKey)
	if err != nil {
		return err
	}

	total := 0
	for {
		points, err := stream.Pull(ctx, s.cfg.BatchSize)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		samples := models.SamplesFromPoints(name, job.TimeColumn, points)
		if err := s.repo.BatchInsertSamples(ctx, samples); err != nil {
			return fmt.Errorf("failed to insert samples: %w", err)
		}
		total += len(samples)
	}

	s.logger.WithFields(logrus.Fields{
		"metric":  name,
		"from":    from,
		"to":      to,
		"samples": total,
	}).Info("Synced metric")
	return nil
}
