// Package datasourcekit pulls time series out of Grafana datasources
// through the Grafana HTTP API, one bounded page at a time.
//
// # Architecture
//
// The module is structured into several key packages:
//   - api: Paging engine, streams, error classification and result cache
//   - metrics: SQL metric definitions speaking the /api/ds/query protocol
//   - transport: Rate limited HTTP client with request metrics
//   - config: YAML and environment configuration
//   - database: TimescaleDB storage for synced samples
//   - scheduler: Periodic incremental sync from Grafana into TimescaleDB
//   - models: Shared data structures
//
// Key Features
//
//   - Bounded memory:
//     Large ranges are fetched page by page. A Stream holds at most one
//     page of unconsumed points and only fetches when the consumer asks.
//
//   - Typed failures:
//     Every failure is an *api.Error of a closed set of kinds, so callers
//     can tell an expired key from a backend outage with errors.Is.
//
//   - Incremental sync:
//     The scheduler resumes from the newest stored sample and retries
//     unavailable gateways or datasources with backoff.
//
// Example Usage
//
//	fetcher := api.NewFetcher(transport.NewClient(transport.DefaultClientConfig(), logger, nil), logger)
//	stream, err := fetcher.OpenStream(ctx, metric, "https://grafana.example.com/d/abc/energy", from, to, apiKey)
//	for {
//	    points, err := stream.Pull(ctx, 1000)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// For more information about specific packages, see their respective
// documentation.
package datasourcekit
