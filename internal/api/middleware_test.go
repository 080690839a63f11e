package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggingMiddleware_PreservesHijacker(t *testing.T) {
	var hijackable, flushable bool
	handler := LoggingMiddleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hijackable = w.(http.Hijacker)
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusNoContent)
	}))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if !hijackable {
		t.Error("response writer lost http.Hijacker through the middleware")
	}
	if !flushable {
		t.Error("response writer lost http.Flusher through the middleware")
	}
}
