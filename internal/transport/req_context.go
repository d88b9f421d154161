package transport

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the id that correlates client and gateway logs.
const RequestIDHeader = "X-Request-ID"

// withRequestID sets a request id unless the caller already supplied one.
func withRequestID(h http.Header) string {
	if id := h.Get(RequestIDHeader); id != "" {
		return id
	}
	id := generateRequestID()
	h.Set(RequestIDHeader, id)
	return id
}

func generateRequestID() string {
	return uuid.NewString()
}
