//go:build integration
// +build integration

package integration_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/api"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/database"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/metrics"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/scheduler"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/transport"
)

const (
	testAPIKey = "glsa_integration"
	testRows   = 120
	pageSize   = 25
)

var limitOffset = regexp.MustCompile(`LIMIT (\d+) OFFSET (\d+)`)

func connString() string {
	// Get database connection details from environment variables
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnvOrDefault("DB_HOST", "db"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "grafana"),
		getEnvOrDefault("DB_PASSWORD", "grafana"),
		getEnvOrDefault("DB_NAME", "grafana"),
	)
}

// Helper function to get environment variables with defaults
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupTestDB(t *testing.T) database.TimeSeriesRepository {
	repo, err := database.NewPostgresRepo(connString(), 5)
	require.NoError(t, err)
	require.NoError(t, repo.EnsureSchema(context.Background()))

	// Clean up any existing test data
	db, err := sql.Open("postgres", connString())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("TRUNCATE TABLE time_series_data")
	require.NoError(t, err)

	t.Cleanup(func() { repo.Close() })
	return repo
}

// setupMockGrafana serves /api/ds/query with testRows rows of random values
// spaced one minute apart, ending at end.
func setupMockGrafana(t *testing.T, end time.Time) *httptest.Server {
	values := make([]float64, testRows)
	for i := range values {
		values[i] = rand.Float64() * 100 // Random values between 0 and 100
	}
	start := end.Add(-testRows * time.Minute)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/grafana/api/ds/query" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var body struct {
			Queries []struct {
				RawSQL string `json:"rawSql"`
			} `json:"queries"`
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &body); err != nil || len(body.Queries) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m := limitOffset.FindStringSubmatch(body.Queries[0].RawSQL)
		if m == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(m[1])
		offset, _ := strconv.Atoi(m[2])

		times, vals := []float64{}, []float64{}
		for i := offset; i < offset+limit && i < testRows; i++ {
			times = append(times, float64(start.Add(time.Duration(i)*time.Minute).UnixMilli()))
			vals = append(vals, values[i])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": map[string]interface{}{
				"A": map[string]interface{}{
					"frames": []interface{}{map[string]interface{}{
						"schema": map[string]interface{}{"fields": []interface{}{
							map[string]interface{}{"name": "time"},
							map[string]interface{}{"name": "value"},
						}},
						"data": map[string]interface{}{"values": []interface{}{times, vals}},
					}},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupFetcher(t *testing.T) *api.Fetcher {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	clientMetrics, err := transport.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	client := transport.NewClient(transport.DefaultClientConfig(), logger, clientMetrics)
	return api.NewFetcher(client, logger, api.WithPageSize(pageSize))
}

func testMetric() *metrics.SQLMetric {
	return metrics.NewSQLMetric("energy",
		models.Datasource{Type: "grafana-postgresql-datasource", UID: "pg"},
		"SELECT time, value FROM energy WHERE $__timeFilter(time) ORDER BY time")
}

func TestFetchAggregateE2E(t *testing.T) {
	end := time.Now().Truncate(time.Minute)
	grafana := setupMockGrafana(t, end)
	fetcher := setupFetcher(t)

	result, err := fetcher.FetchAggregate(context.Background(), testMetric(),
		grafana.URL+"/grafana/d/uid/dashboard", end.Add(-3*time.Hour), end, testAPIKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "value"}, result.Columns)
	assert.Len(t, result.Values, testRows)
}

func TestStreamE2E(t *testing.T) {
	end := time.Now().Truncate(time.Minute)
	grafana := setupMockGrafana(t, end)
	fetcher := setupFetcher(t)
	ctx := context.Background()

	stream, err := fetcher.OpenStream(ctx, testMetric(),
		grafana.URL+"/grafana/d/uid/dashboard", end.Add(-3*time.Hour), end, testAPIKey)
	require.NoError(t, err)

	total := 0
	for {
		points, err := stream.Pull(ctx, 7)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.LessOrEqual(t, stream.Buffered(), pageSize)
		total += len(points)
	}
	assert.Equal(t, testRows, total)
}

func TestUnauthorizedE2E(t *testing.T) {
	end := time.Now()
	grafana := setupMockGrafana(t, end)
	fetcher := setupFetcher(t)

	_, err := fetcher.FetchAggregate(context.Background(), testMetric(),
		grafana.URL+"/grafana/d/uid/dashboard", end.Add(-time.Hour), end, "wrong")
	assert.True(t, errors.Is(err, api.ErrUnauthorized))
}

func TestSyncIntoTimescaleDB(t *testing.T) {
	repo := setupTestDB(t)
	end := time.Now().Truncate(time.Minute)
	grafana := setupMockGrafana(t, end)
	fetcher := setupFetcher(t)
	ctx := context.Background()

	s := scheduler.NewScheduler(ctx, fetcher, repo,
		[]scheduler.Job{{Metric: testMetric(), TimeColumn: "time"}},
		scheduler.Config{
			BaseURL:   grafana.URL + "/grafana/d/uid/dashboard",
			APIKey:    testAPIKey,
			Schedule:  "@every 1m",
			Window:    3 * time.Hour,
			BatchSize: 40,
		},
		logrus.New(),
	)
	require.NoError(t, s.RunOnce(ctx))

	latest, ok, err := repo.LatestTime(ctx, "energy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Equal(end.Add(-time.Minute)), "latest %v", latest)

	// A second run starts at the latest stored sample and must not duplicate rows.
	require.NoError(t, s.RunOnce(ctx))

	db, err := sql.Open("postgres", connString())
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(
		`SELECT count(*) FROM time_series_data WHERE series = 'energy.value'`,
	).Scan(&count))
	assert.Equal(t, testRows, count)

	_, ok, err = repo.LatestTime(ctx, "energ")
	require.NoError(t, err)
	assert.False(t, ok)
}
