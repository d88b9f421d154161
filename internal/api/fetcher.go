//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/transport.go -package=mocks . Transport

// Package api implements the paging engine that pulls time series out of a
// Grafana gateway.
//
// A (from, to) range is fetched as a sequence of bounded pages. Each page is
// requested with the running offset of the rows seen so far, and a page with
// fewer rows than the page size ends the sequence. Results are returned
// either merged (FetchAggregate) or as a pull-based Stream that never holds
// more than one page of unconsumed points.
//
// Example usage:
//
//	fetcher := api.NewFetcher(client, logger)
//	result, err := fetcher.FetchAggregate(ctx, metric, dashboardURL, from, to, apiKey)
//	if errors.Is(err, api.ErrUnauthorized) {
//	    // rotate the key
//	}
package api

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/transport"
)

// Transport executes a resolved request. Failures should be *transport.Error.
type Transport interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Metric builds page requests for one query and parses their responses.
type Metric interface {
	// Name identifies the metric in logs and cache keys.
	Name() string

	// Datasource describes the backend the query targets.
	Datasource() models.Datasource

	// GetQuery returns the request for the page starting at offset.
	GetQuery(from, to time.Time, pageSize, offset int) (*models.PageRequest, error)

	// GetResults extracts the page carried by a response.
	GetResults(resp *transport.Response) (*models.Page, error)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithPageSize overrides models.DefaultPageSize. Non-positive values are ignored.
func WithPageSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.pageSize = n
		}
	}
}

// Fetcher runs paged queries. It holds no per-query state and is safe for
// concurrent use.
type Fetcher struct {
	transport Transport
	logger    *logrus.Logger
	pageSize  int
}

func NewFetcher(t Transport, logger *logrus.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	f := &Fetcher{
		transport: t,
		logger:    logger,
		pageSize:  models.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PageSize returns the number of rows requested per round-trip.
func (f *Fetcher) PageSize() int {
	return f.pageSize
}

// FetchAggregate retrieves every page of the range and returns them merged.
// Nothing is returned if any page fails.
func (f *Fetcher) FetchAggregate(
	ctx context.Context,
	metric Metric,
	baseURL string,
	from, to time.Time,
	apiKey string,
) (*models.AggregateResult, error) {
	producer, err := f.newProducer(metric, baseURL, from, to, apiKey)
	if err != nil {
		return nil, err
	}

	result := &models.AggregateResult{Values: [][]float64{}}
	for {
		page, ok, err := producer.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		result.Append(page)
	}

	f.logger.WithFields(logrus.Fields{
		"metric": metric.Name(),
		"pages":  producer.pages,
		"rows":   len(result.Values),
	}).Debug("Aggregate fetch completed")

	return result, nil
}

// OpenStream validates the range and returns a Stream over it. No request is
// made until the first Pull, and each round-trip runs under the context given
// to the Pull that triggers it. ctx is not retained, so canceling it later does
// not affect the stream.
func (f *Fetcher) OpenStream(
	ctx context.Context,
	metric Metric,
	baseURL string,
	from, to time.Time,
	apiKey string,
) (*Stream, error) {
	producer, err := f.newProducer(metric, baseURL, from, to, apiKey)
	if err != nil {
		return nil, err
	}
	return &Stream{producer: producer}, nil
}

func (f *Fetcher) newProducer(metric Metric, baseURL string, from, to time.Time, apiKey string) (*pageProducer, error) {
	endpoint := DeriveEndpoint(baseURL)
	ds := metric.Datasource()

	if err := ValidateRange(ds, endpoint, from, to); err != nil {
		return nil, err
	}
	if from.Equal(to) {
		f.logger.WithFields(logrus.Fields{
			"metric": metric.Name(),
			"from":   from,
			"to":     to,
		}).Warn("Query range is empty, from equals to")
	}

	return &pageProducer{
		transport: f.transport,
		logger:    f.logger,
		metric:    metric,
		endpoint:  endpoint,
		from:      from,
		to:        to,
		apiKey:    apiKey,
		pageSize:  f.pageSize,
	}, nil
}
