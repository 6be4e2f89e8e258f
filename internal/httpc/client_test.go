package httpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	data, err := Fetch(context.Background(), server.URL+"/glasses.png")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("got %q, want %q", data, "png-bytes")
	}

	_, err = Fetch(context.Background(), server.URL+"/missing")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", statusErr.StatusCode)
	}
}

func TestFetch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Fetch(ctx, "http://127.0.0.1:1/never"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
