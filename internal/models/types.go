package models

import (
	"math"
	"time"
)

// DefaultPageSize is the number of rows requested per backend round-trip.
const DefaultPageSize = 50000

// Datasource identifies the backend behind the gateway. Used as error context only.
type Datasource struct {
	Type string `json:"type"`
	UID  string `json:"uid"`
}

// PageRequest is what a metric asks the transport to execute for one page.
// Path is relative to the derived API endpoint.
type PageRequest struct {
	Path    string
	Method  string
	Headers map[string]string
	Body    []byte
}

// Page is one bounded batch of rows returned by a single round-trip
type Page struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Len returns the number of rows in the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Values)
}

// Points flattens the page into points sharing its column layout.
func (p *Page) Points() []Point {
	points := make([]Point, len(p.Values))
	for i, row := range p.Values {
		points[i] = Point{Columns: p.Columns, Values: row}
	}
	return points
}

// Point is a single row paired with the column layout of the page it came from.
type Point struct {
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

// Value returns the value of the named column.
func (p Point) Value(column string) (float64, bool) {
	for i, c := range p.Columns {
		if c == column && i < len(p.Values) {
			return p.Values[i], true
		}
	}
	return 0, false
}

// AggregateResult is the concatenation of every page of a non-streaming query.
type AggregateResult struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Append adds the rows of a page and adopts its column layout.
func (r *AggregateResult) Append(p *Page) {
	r.Columns = p.Columns
	r.Values = append(r.Values, p.Values...)
}

// Sample represents a single stored time series value
type Sample struct {
	Time   time.Time `json:"time"`
	Series string    `json:"series"`
	Value  float64   `json:"value"`
}

// SamplesFromPoints converts points into samples, one per non-time column.
// Points without the time column, and NaN values, are skipped. The time
// column is expected to hold epoch milliseconds.
func SamplesFromPoints(prefix, timeColumn string, points []Point) []Sample {
	var samples []Sample
	for _, p := range points {
		ts, ok := p.Value(timeColumn)
		if !ok {
			continue
		}
		t := time.UnixMilli(int64(ts)).UTC()
		for i, c := range p.Columns {
			if c == timeColumn || i >= len(p.Values) || math.IsNaN(p.Values[i]) {
				continue
			}
			samples = append(samples, Sample{
				Time:   t,
				Series: prefix + "." + c,
				Value:  p.Values[i],
			})
		}
	}
	return samples
}
