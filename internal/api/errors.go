package api

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/transport"
)

// ErrorKind is the closed set of failures the fetcher reports.
type ErrorKind int

const (
	KindInvalidRange ErrorKind = iota
	KindGatewayUnavailable
	KindUnauthorized
	KindDatasourceUnavailable
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRange:
		return "invalid range"
	case KindGatewayUnavailable:
		return "grafana unavailable"
	case KindUnauthorized:
		return "unauthorized"
	case KindDatasourceUnavailable:
		return "datasource unavailable"
	case KindInternal:
		return "internal error"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is returned by every fetch operation. Use errors.Is against the
// sentinels below to match on Kind.
type Error struct {
	Kind           ErrorKind
	Message        string
	DatasourceType string
	DatasourceURL  string
	Err            error
}

var (
	ErrInvalidRange          = &Error{Kind: KindInvalidRange}
	ErrGatewayUnavailable    = &Error{Kind: KindGatewayUnavailable}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrDatasourceUnavailable = &Error{Kind: KindDatasourceUnavailable}
	ErrInternal              = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.DatasourceType != "" || e.DatasourceURL != "" {
		msg += fmt.Sprintf(" (datasource type=%q url=%q)", e.DatasourceType, e.DatasourceURL)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether repeating the call later may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindGatewayUnavailable, KindDatasourceUnavailable:
		return true
	case KindInvalidRange, KindUnauthorized, KindInternal:
		return false
	}
	return false
}

// classify logs a failed round-trip and converts it into an *Error.
func classify(logger *logrus.Logger, err error, ds models.Datasource, path, url string) *Error {
	var terr *transport.Error
	errors.As(err, &terr)

	fields := logrus.Fields{
		"path":            path,
		"url":             url,
		"datasource_type": ds.Type,
	}
	if terr != nil && terr.Response != nil {
		fields["status"] = terr.Response.Status
		fields["body"] = string(terr.Response.Data)
		fields["headers"] = terr.Response.Header
	}
	logger.WithFields(fields).WithError(err).Error("Datasource request failed")

	switch {
	case errors.Is(err, syscall.ECONNREFUSED) || (terr != nil && terr.Errno == syscall.ECONNREFUSED):
		return &Error{
			Kind:    KindGatewayUnavailable,
			Message: "connection refused, check that grafana is running and the url is correct",
			Err:     err,
		}
	case terr != nil && terr.Response != nil && terr.Response.Status == http.StatusUnauthorized:
		return &Error{
			Kind:    KindUnauthorized,
			Message: "authentication failed, check the API key",
			Err:     err,
		}
	case terr != nil && terr.Response != nil && terr.Response.Status == http.StatusBadGateway:
		return &Error{
			Kind:           KindDatasourceUnavailable,
			Message:        "the datasource behind grafana is not reachable",
			DatasourceType: ds.Type,
			DatasourceURL:  url,
			Err:            err,
		}
	}
	return &Error{
		Kind:    KindInternal,
		Message: err.Error(),
		Err:     err,
	}
}
