package middleware

import (
	"context"
	"net/http"

	"github.com/rs/xid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 64

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestID tags every request with an id. A client id is kept when it is
// at most 64 bytes of printable ASCII; otherwise a new xid is generated. The
// id is echoed back in the response header and stored in the request context.
//
// WHY NOT chimiddleware.RequestID?
// chi's version only reads X-Request-Id and builds "host/random-000001"
// ids. We want short, sortable xids, and we never want a client to smuggle
// control characters or newlines into our log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = xid.New().String()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID accepts non-empty ids of printable ASCII (0x21-0x7e), no
// longer than maxRequestIDLength.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// RequestIDFromContext returns the request id, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
