package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/contactbook-backend/pkg/errors"
)

type fakeRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateLimiter() *fakeRateLimiter {
	return &fakeRateLimiter{counts: make(map[string]int64)}
}

func (f *fakeRateLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	limiter := newFakeRateLimiter()
	policy := NewRateLimitPolicy("Import", time.Minute, 2)
	handler := RateLimit(policy, limiter, nil)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/contacts/import", nil)
		req.RemoteAddr = "10.0.0.1:5678"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		switch {
		case i < 2 && rec.Code != http.StatusOK:
			t.Fatalf("expected success before limit, got %d", rec.Code)
		case i == 2:
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429 after limit, got %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") != "60" {
				t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
			}
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code %s", payload.Error.Code)
			}
		}
	}

	if limiter.counts["import:10.0.0.1"] != 3 {
		t.Fatalf("expected scope keyed by policy and ip, got %v", limiter.counts)
	}
}

func TestRateLimitSeparatesClients(t *testing.T) {
	limiter := newFakeRateLimiter()
	handler := RateLimit(NewRateLimitPolicy("import", time.Minute, 1), limiter, nil)(okHandler())

	for _, forwarded := range []string{"1.1.1.1", "2.2.2.2, 10.0.0.1"} {
		req := httptest.NewRequest(http.MethodPost, "/api/contacts/import", nil)
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected first request from %s to pass, got %d", forwarded, rec.Code)
		}
	}
	if _, ok := limiter.counts["import:2.2.2.2"]; !ok {
		t.Fatalf("expected first forwarded hop to be used, got %v", limiter.counts)
	}
}

func TestRateLimitDisabledOrFailing(t *testing.T) {
	disabled := RateLimit(NewRateLimitPolicy("import", 0, 5), newFakeRateLimiter(), nil)(okHandler())
	rec := httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("disabled policy should pass, got %d", rec.Code)
	}

	noLimiter := RateLimit(NewRateLimitPolicy("import", time.Minute, 5), nil, nil)(okHandler())
	rec = httptest.NewRecorder()
	noLimiter.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("missing limiter should pass, got %d", rec.Code)
	}

	limiter := newFakeRateLimiter()
	limiter.err = errors.New("redis down")
	failing := RateLimit(NewRateLimitPolicy("import", time.Minute, 5), limiter, nil)(okHandler())
	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when limiter fails, got %d", rec.Code)
	}
}
