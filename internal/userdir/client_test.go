package userdir

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/store"
)

func TestLookupUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/alice":
			if r.Header.Get("X-Service-Key") != "k" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"alice","elo":1337,"walletAddress":"0xA11CE"}`))
		case "/users/bob":
			_, _ = w.Write([]byte(`{"id":"bob"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHeaderProvider(func() map[string]string { return map[string]string{"X-Service-Key": "k"} }))
	u, err := c.LookupUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("LookupUser: %v", err)
	}
	if u.Rating != 1337 || u.Wallet != "0xA11CE" {
		t.Fatalf("unexpected user %+v", u)
	}
	u, err = c.LookupUser(context.Background(), "bob")
	if err != nil || u.Rating != store.DefaultRating {
		t.Fatalf("default rating not applied: %+v %v", u, err)
	}
	if _, err := c.LookupUser(context.Background(), "carol"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupUserRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"dave","rating":1500}`))
	}))
	defer srv.Close()

	u, err := NewClient(srv.URL, WithRetry(3)).LookupUser(context.Background(), "dave")
	if err != nil {
		t.Fatalf("LookupUser: %v", err)
	}
	if u.Rating != 1500 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("rating=%d calls=%d", u.Rating, calls)
	}
}

func TestLookupUserDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithRetry(3)).LookupUser(context.Background(), "erin")
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		full := min(100*time.Millisecond<<(attempt-1), 2*time.Second)
		for i := 0; i < 20; i++ {
			d := backoff(attempt)
			if d < full/2 || d > full {
				t.Fatalf("backoff(%d) = %s outside [%s,%s]", attempt, d, full/2, full)
			}
		}
	}
}
