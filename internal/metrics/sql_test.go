package metrics

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/transport"
)

var pg = models.Datasource{Type: "grafana-postgresql-datasource", UID: "pg1"}

func TestSQLMetricGetQuery(t *testing.T) {
	m := NewSQLMetric("cpu", pg, "SELECT time, value FROM cpu WHERE $__timeFilter(time) ORDER BY time;")
	m.OrgID = 2

	from := time.UnixMilli(1700000000000)
	to := time.UnixMilli(1700003600000)

	req, err := m.GetQuery(from, to, 500, 1000)
	require.NoError(t, err)

	assert.Equal(t, "/api/ds/query", req.Path)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "2", req.Headers["X-Grafana-Org-Id"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "1700000000000", body["from"])
	assert.Equal(t, "1700003600000", body["to"])

	queries := body["queries"].([]interface{})
	require.Len(t, queries, 1)
	q := queries[0].(map[string]interface{})
	assert.Equal(t, "A", q["refId"])
	assert.Equal(t, "table", q["format"])
	assert.Equal(t,
		"SELECT time, value FROM cpu WHERE $__timeFilter(time) ORDER BY time LIMIT 500 OFFSET 1000",
		q["rawSql"])
	assert.Equal(t, map[string]interface{}{"type": pg.Type, "uid": pg.UID}, q["datasource"])
}

func TestSQLMetricGetQueryMissingSQL(t *testing.T) {
	_, err := NewSQLMetric("empty", pg, "  ").GetQuery(time.Now(), time.Now(), 10, 0)
	assert.True(t, errors.Is(err, ErrMissingSQL))
}

func TestSQLMetricGetResults(t *testing.T) {
	data := `{
  "results": {
    "A": {
      "status": 200,
      "frames": [{
        "schema": {"fields": [{"name": "time", "type": "time"}, {"name": "value", "type": "number"}]},
        "data": {"values": [[1000, 2000, 3000], [1.5, null, 3.5]]}
      }]
    }
  }
}`
	m := NewSQLMetric("cpu", pg, "SELECT 1")
	page, err := m.GetResults(&transport.Response{Status: http.StatusOK, Data: []byte(data)})
	require.NoError(t, err)

	assert.Equal(t, []string{"time", "value"}, page.Columns)
	require.Equal(t, 3, page.Len())
	assert.Equal(t, []float64{1000, 1.5}, page.Values[0])
	assert.True(t, math.IsNaN(page.Values[1][1]))
	assert.Equal(t, []float64{3000, 3.5}, page.Values[2])
}

func TestSQLMetricGetResultsErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name:    "no result for ref id",
			data:    `{"results": {"B": {}}}`,
			wantErr: ErrNoResult,
		},
		{
			name:    "query error",
			data:    `{"results": {"A": {"error": "relation \"cpu\" does not exist", "status": 400}}}`,
			wantErr: ErrQueryFailed,
		},
		{
			name: "field count mismatch",
			data: `{"results": {"A": {"frames": [{"schema": {"fields": [{"name": "time"}]},
				"data": {"values": [[1], [2]]}}]}}}`,
			wantErr: ErrFrameInvalid,
		},
		{
			name: "ragged columns",
			data: `{"results": {"A": {"frames": [{"schema": {"fields": [{"name": "time"}, {"name": "v"}]},
				"data": {"values": [[1, 2], [2]]}}]}}}`,
			wantErr: ErrFrameInvalid,
		},
	}

	m := NewSQLMetric("cpu", pg, "SELECT 1")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.GetResults(&transport.Response{Data: []byte(tt.data)})
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestSQLMetricGetResultsNoFrames(t *testing.T) {
	m := NewSQLMetric("cpu", pg, "SELECT 1")
	page, err := m.GetResults(&transport.Response{Data: []byte(`{"results": {"A": {"frames": []}}}`)})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Len())
}

func TestSQLMetricGetResultsBadJSON(t *testing.T) {
	m := NewSQLMetric("cpu", pg, "SELECT 1")
	_, err := m.GetResults(&transport.Response{Data: []byte(`nope`)})
	assert.Error(t, err)
}
