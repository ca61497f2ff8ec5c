package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/tkariuki-dev/sokohub-backend/pkg/errors"
)

type fakeWindowStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeWindowStore() *fakeWindowStore {
	return &fakeWindowStore{counts: map[string]int64{}}
}

func (f *fakeWindowStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func TestRateLimitByIPAllowsUnderLimit(t *testing.T) {
	store := newFakeWindowStore()
	policy := NewRateLimitPolicy("webhook", time.Minute, 2)
	handler := RateLimitByIP(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", nil)
	req.RemoteAddr = "203.0.113.5:4411"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimitByIPBlocksOverLimit(t *testing.T) {
	store := newFakeWindowStore()
	policy := NewRateLimitPolicy("webhook", time.Minute, 2)
	handler := RateLimitByIP(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", nil)
		req.RemoteAddr = "203.0.113.5:4411"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected success before limit, got %d", i, rec.Code)
		}
		if i == 2 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code: %s", payload.Error.Code)
			}
		}
	}
}

func TestRateLimitByUserSeparatesUsers(t *testing.T) {
	store := newFakeWindowStore()
	policy := NewRateLimitPolicy("payments", time.Minute, 1)
	handler := RateLimitByUser(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, userID := range []string{"buyer-1", "buyer-2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/", nil)
		req = req.WithContext(WithUserID(req.Context(), userID))
		req.RemoteAddr = "203.0.113.5:4411"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("user %s: expected 200, got %d", userID, rec.Code)
		}
	}

	// Same user again goes over the per-user limit.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/", nil)
	req = req.WithContext(WithUserID(req.Context(), "buyer-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for repeat user, got %d", rec.Code)
	}
}

func TestRateLimitDisabledWithoutStore(t *testing.T) {
	policy := NewRateLimitPolicy("webhook", time.Minute, 1)
	handler := RateLimitByIP(policy, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected passthrough without store, got %d", rec.Code)
		}
	}
}
