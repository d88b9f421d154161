package api

import (
	"context"
	"io"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
)

// Stream hands out the points of a range in the order the backend produced
// them. A new page is fetched only when the buffer cannot satisfy a Pull, so
// between pulls the buffer holds fewer points than one page.
//
// A Stream must not be used from more than one goroutine.
type Stream struct {
	producer *pageProducer
	buffer   []models.Point
	err      error
}

// Pull returns up to n points. It returns io.EOF once every point has been
// delivered. Any other error is terminal and is returned by every later call.
func (s *Stream) Pull(ctx context.Context, n int) ([]models.Point, error) {
	if s.err != nil {
		return nil, s.err
	}
	if n <= 0 {
		return nil, nil
	}

	for len(s.buffer) < n && !s.producer.done {
		page, ok, err := s.producer.Next(ctx)
		if err != nil {
			s.err = err
			s.buffer = nil
			return nil, err
		}
		if !ok {
			break
		}
		s.buffer = append(s.buffer, page.Points()...)
	}

	if len(s.buffer) == 0 {
		return nil, io.EOF
	}

	k := min(n, len(s.buffer))
	out := make([]models.Point, k)
	copy(out, s.buffer[:k])

	if k == len(s.buffer) {
		s.buffer = nil
	} else {
		s.buffer = s.buffer[k:]
	}
	return out, nil
}

// Collect drains the stream.
func (s *Stream) Collect(ctx context.Context) ([]models.Point, error) {
	var all []models.Point
	for {
		points, err := s.Pull(ctx, s.producer.pageSize)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, points...)
	}
}

// Buffered returns the number of fetched but unconsumed points.
func (s *Stream) Buffered() int {
	return len(s.buffer)
}

// Err returns the error that terminated the stream, if any.
func (s *Stream) Err() error {
	return s.err
}
