// Package metrics holds the query builders the paging engine runs.
//
// SQLMetric targets any SQL datasource configured in Grafana (PostgreSQL,
// TimescaleDB, MySQL, MSSQL) through the unified /api/ds/query endpoint. The
// raw SQL is paged by appending LIMIT/OFFSET, and the table-format data
// frame in the response is turned into row-major pages.
package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/transport"
)

const (
	queryPath = "/api/ds/query"
	refID     = "A"
)

var (
	ErrMissingSQL   = errors.New("metric has no sql")
	ErrNoResult     = errors.New("response has no result for query")
	ErrQueryFailed  = errors.New("datasource reported a query error")
	ErrFrameInvalid = errors.New("malformed data frame")
)

// SQLMetric pages a raw SQL query through Grafana.
type SQLMetric struct {
	MetricName string
	Source     models.Datasource
	SQL        string
	OrgID      int64
}

func NewSQLMetric(name string, ds models.Datasource, sql string) *SQLMetric {
	return &SQLMetric{
		MetricName: name,
		Source:     ds,
		SQL:        strings.TrimRight(strings.TrimSpace(sql), ";"),
	}
}

func (m *SQLMetric) Name() string {
	return m.MetricName
}

func (m *SQLMetric) Datasource() models.Datasource {
	return m.Source
}

type dsQueryRequest struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Queries []dsQuery `json:"queries"`
}

type dsQuery struct {
	RefID      string            `json:"refId"`
	Datasource models.Datasource `json:"datasource"`
	RawSQL     string            `json:"rawSql"`
	Format     string            `json:"format"`
	RawQuery   bool              `json:"rawQuery"`
}

// GetQuery builds the /api/ds/query request for one page.
func (m *SQLMetric) GetQuery(from, to time.Time, pageSize, offset int) (*models.PageRequest, error) {
	if m.SQL == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingSQL, m.MetricName)
	}

	body, err := json.Marshal(dsQueryRequest{
		From: strconv.FormatInt(from.UnixMilli(), 10),
		To:   strconv.FormatInt(to.UnixMilli(), 10),
		Queries: []dsQuery{{
			RefID:      refID,
			Datasource: m.Source,
			RawSQL:     fmt.Sprintf("%s LIMIT %d OFFSET %d", m.SQL, pageSize, offset),
			Format:     "table",
			RawQuery:   true,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if m.OrgID > 0 {
		headers["X-Grafana-Org-Id"] = strconv.FormatInt(m.OrgID, 10)
	}

	return &models.PageRequest{
		Path:    queryPath,
		Method:  http.MethodPost,
		Headers: headers,
		Body:    body,
	}, nil
}

type dsQueryResponse struct {
	Results map[string]struct {
		Error  string  `json:"error"`
		Status int     `json:"status"`
		Frames []frame `json:"frames"`
	} `json:"results"`
}

type frame struct {
	Schema struct {
		Fields []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
	} `json:"schema"`
	Data struct {
		Values [][]*float64 `json:"values"`
	} `json:"data"`
}

// GetResults converts the column-major frame of the response into a page.
// Null cells become NaN.
func (m *SQLMetric) GetResults(resp *transport.Response) (*models.Page, error) {
	var out dsQueryResponse
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result, ok := out.Results[refID]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoResult, refID)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrQueryFailed, result.Error)
	}
	if len(result.Frames) == 0 {
		return &models.Page{Values: [][]float64{}}, nil
	}

	f := result.Frames[0]
	columns := make([]string, len(f.Schema.Fields))
	for i, field := range f.Schema.Fields {
		columns[i] = field.Name
	}
	if len(f.Data.Values) != 0 && len(f.Data.Values) != len(columns) {
		return nil, fmt.Errorf("%w: %d fields but %d value columns",
			ErrFrameInvalid, len(columns), len(f.Data.Values))
	}

	rows := 0
	if len(f.Data.Values) > 0 {
		rows = len(f.Data.Values[0])
	}
	values := make([][]float64, rows)
	for r := range values {
		row := make([]float64, len(columns))
		for c, col := range f.Data.Values {
			if r >= len(col) {
				return nil, fmt.Errorf("%w: column %q is shorter than %d rows", ErrFrameInvalid, columns[c], rows)
			}
			if col[r] == nil {
				row[c] = math.NaN()
			} else {
				row[c] = *col[r]
			}
		}
		values[r] = row
	}

	return &models.Page{Columns: columns, Values: values}, nil
}
