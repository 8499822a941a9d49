package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"NAMN":"Storgatan 1"}]`))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	var out []map[string]interface{}
	if err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0]["NAMN"] != "Storgatan 1" {
		t.Errorf("out = %v", out)
	}
}

func TestClient_statusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	_, err := c.GetBytes(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", se.StatusCode)
	}
	if se.Error() != "server returned 502" {
		t.Errorf("message = %q", se.Error())
	}
}

func TestClient_decodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	var out interface{}
	if err := NewClient(0).GetJSON(context.Background(), srv.URL, &out); err == nil {
		t.Error("expected decode error")
	}
}

func TestClient_rateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := NewClient(time.Second, WithRateLimit(0.001, 1))
	if _, err := c.GetBytes(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.GetBytes(ctx, srv.URL); err == nil {
		t.Error("second request should be refused by the limiter")
	}
}
