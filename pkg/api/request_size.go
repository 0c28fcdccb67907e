package api

import (
	"errors"
	"io"
	"net/http"
)

// requestBodySizeLimitMiddleware rejects request bodies larger than
// maxBytes. Requests that declare an oversized Content-Length are refused
// up front; requests that lie about it are cut off by http.MaxBytesReader
// during the handler's read, and the handler's resulting 400 is rewritten
// to a 413.
func requestBodySizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(&bodySizeResponseWriter{ResponseWriter: w, body: r.Body}, r)
		})
	}
}

// bodySizeResponseWriter turns a handler's 400 into a 413 when the body
// limit was the actual cause of the failure.
type bodySizeResponseWriter struct {
	http.ResponseWriter
	body        io.ReadCloser
	wroteHeader bool
}

func (b *bodySizeResponseWriter) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true

	if status == http.StatusBadRequest && exceededBodyLimit(b.body) {
		b.ResponseWriter.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}
	b.ResponseWriter.WriteHeader(status)
}

func (b *bodySizeResponseWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.ResponseWriter.Write(p)
}

// exceededBodyLimit probes the body reader; http.MaxBytesReader keeps
// returning its error once the limit has been hit.
func exceededBodyLimit(body io.ReadCloser) bool {
	var maxBytesErr *http.MaxBytesError
	_, err := body.Read(make([]byte, 1))
	return errors.As(err, &maxBytesErr)
}
