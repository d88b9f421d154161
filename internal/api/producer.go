package api

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/transport"
)

// pageProducer walks a range one page per call to Next. Only the page being
// returned is ever held in memory.
type pageProducer struct {
	transport Transport
	logger    *logrus.Logger
	metric    Metric
	endpoint  string
	from, to  time.Time
	apiKey    string
	pageSize  int

	offset int
	pages  int
	done   bool
}

// Next fetches the next page. It returns ok == false once a short page has
// been seen. After an error the producer is exhausted.
func (p *pageProducer) Next(ctx context.Context) (*models.Page, bool, error) {
	if p.done {
		return nil, false, nil
	}

	ds := p.metric.Datasource()
	q, err := p.metric.GetQuery(p.from, p.to, p.pageSize, p.offset)
	if err != nil {
		p.done = true
		return nil, false, classify(p.logger, err, ds, "", p.endpoint)
	}

	url := resolveURL(p.endpoint, q.Path)
	resp, err := p.transport.Do(ctx, p.request(q, url))
	if err != nil {
		p.done = true
		return nil, false, classify(p.logger, err, ds, q.Path, url)
	}

	page, err := p.metric.GetResults(resp)
	if err != nil {
		p.done = true
		return nil, false, classify(p.logger, err, ds, q.Path, url)
	}

	p.pages++
	if page.Len() < p.pageSize {
		p.done = true
	} else {
		p.offset += page.Len()
	}

	p.logger.WithFields(logrus.Fields{
		"metric": p.metric.Name(),
		"page":   p.pages,
		"rows":   page.Len(),
		"offset": p.offset,
	}).Debug("Fetched page")

	return page, true, nil
}

// request merges the metric's headers with the bearer credential, which is
// always set last.
func (p *pageProducer) request(q *models.PageRequest, url string) *transport.Request {
	header := make(map[string]string, len(q.Headers)+1)
	for k, v := range q.Headers {
		if strings.EqualFold(k, "Authorization") {
			continue
		}
		header[k] = v
	}
	header["Authorization"] = "Bearer " + p.apiKey

	return &transport.Request{
		URL:    url,
		Method: q.Method,
		Header: header,
		Body:   q.Body,
	}
}
