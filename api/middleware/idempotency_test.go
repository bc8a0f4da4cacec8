package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func paymentRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pads/p1/payments", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}

func TestIdempotencyRequiresHeaderForPayments(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil, PaymentPolicy)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	for _, key := range []string{"", "has spaces"} {
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, paymentRequest(key, `{"amount":"10"}`))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("key %q: expected 400 got %d", key, resp.Code)
		}
	}
	if handlerCalled {
		t.Fatalf("handler should not run without a usable idempotency key")
	}
}

func TestIdempotencyOptionalHeaderPassesThrough(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil, PadWritePolicy)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pads/items", strings.NewReader(`{"table":5}`))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected both requests to reach the handler, got %d", calls)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil, PaymentPolicy)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("abc", `{"amount":"10"}`))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}
	if resp.Header().Get(ReplayedHeader) != "" {
		t.Fatalf("first response must not be marked as replay")
	}
	for key, ttl := range store.ttls {
		if ttl != PaymentPolicy.TTL {
			t.Fatalf("%s: expected payment ttl, got %v", key, ttl)
		}
	}

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, paymentRequest("abc", `{"amount":"10"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" || rec.Header().Get(ReplayedHeader) != "true" {
		t.Fatalf("unexpected replay headers %v", rec.Header())
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyRejectsRepeatWhileInFlight(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil, PaymentPolicy)

	var inner *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			mw(http.NotFoundHandler()).ServeHTTP(inner, paymentRequest("dup", `{"amount":"10"}`))
		}
		w.WriteHeader(http.StatusCreated)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), paymentRequest("dup", `{"amount":"10"}`))
	if inner == nil || inner.Code != http.StatusConflict {
		t.Fatalf("expected concurrent repeat to get 409, got %+v", inner)
	}
	if code := errorCode(t, inner); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil, PaymentPolicy)
	status := http.StatusInternalServerError
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), paymentRequest("retry", `{"amount":"10"}`))
	if len(store.data) != 0 {
		t.Fatalf("expected claim released after 500, got %v", store.data)
	}

	status = http.StatusCreated
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("retry", `{"amount":"10"}`))
	if resp.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("expected retry to run the handler, code=%d calls=%d", resp.Code, calls)
	}
}

func TestIdempotencyScopesByDevice(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil, PaymentPolicy)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for _, device := range []string{"kitchen", "bar-tablet"} {
		req := paymentRequest("same", `{"amount":"10"}`)
		req = req.WithContext(WithDeviceID(req.Context(), device))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected one call per device, got %d", calls)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil, PaymentPolicy)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), paymentRequest("xyz", `{"amount":"10"}`))

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("xyz", `{"amount":"12"}`))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, code)
	}
}

func TestIdempotencyWithoutStore(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	mw := Idempotency(nil, nil, PaymentPolicy)
	mw(handler).ServeHTTP(httptest.NewRecorder(), paymentRequest("", `{}`))
	if calls != 1 {
		t.Fatalf("expected passthrough without a store")
	}
}
