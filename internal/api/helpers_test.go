package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/transport"
)

var testDatasource = models.Datasource{Type: "grafana-postgresql-datasource", UID: "pg1"}

// pagedMetric encodes the paging window in the query string and decodes
// pages serialized as models.Page.
type pagedMetric struct {
	headers map[string]string
}

func (m *pagedMetric) Name() string { return "paged" }

func (m *pagedMetric) Datasource() models.Datasource { return testDatasource }

func (m *pagedMetric) GetQuery(from, to time.Time, pageSize, offset int) (*models.PageRequest, error) {
	return &models.PageRequest{
		Path:    fmt.Sprintf("/api/ds/query?limit=%d&offset=%d", pageSize, offset),
		Method:  http.MethodPost,
		Headers: m.headers,
	}, nil
}

func (m *pagedMetric) GetResults(resp *transport.Response) (*models.Page, error) {
	var page models.Page
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// pagedBackend answers the n-th request with a page of sizes[n] rows. Row i
// of a page at offset o is {o+i, 2*(o+i)}. Requests past the end of sizes
// fail with failWith when set, or get an empty page.
type pagedBackend struct {
	mu       sync.Mutex
	sizes    []int
	failWith error
	requests []*transport.Request
}

func (b *pagedBackend) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	call := len(b.requests)
	b.requests = append(b.requests, req)

	size := 0
	if call < len(b.sizes) {
		size = b.sizes[call]
	} else if b.failWith != nil {
		return nil, b.failWith
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	offset, _ := strconv.Atoi(u.Query().Get("offset"))

	page := models.Page{Columns: []string{"time", "value"}, Values: make([][]float64, size)}
	for i := range page.Values {
		page.Values[i] = []float64{float64(offset + i), float64(2 * (offset + i))}
	}
	data, err := json.Marshal(page)
	if err != nil {
		return nil, err
	}
	return &transport.Response{Status: http.StatusOK, Data: data}, nil
}

func (b *pagedBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func statusError(status int, body string) *transport.Error {
	return &transport.Error{
		Response: &transport.Response{
			Status: status,
			Data:   []byte(body),
			Header: http.Header{"Content-Type": []string{"text/plain"}},
		},
		Err: fmt.Errorf("%d %s", status, http.StatusText(status)),
	}
}
