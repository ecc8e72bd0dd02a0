package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/contactbook-backend/pkg/errors"
)

type fakeStore struct {
	data   map[string]string
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "fake:" + scope + ":" + id
}

// sendIdempotent runs one request through the middleware with chi's route
// pattern set the way the router would set it.
func sendIdempotent(h http.Handler, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{path}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func countingHandler(calls *int, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		// The body must still be readable after the middleware hashed it.
		_, _ = io.ReadAll(r.Body)
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		method  string
		pattern string
		ok      bool
	}{
		{http.MethodPost, "/api/contacts", true},
		{http.MethodPost, "/api/contacts/", true},
		{http.MethodPost, "/api/contacts/import", true},
		{http.MethodPost, "/api/contacts/import/file", true},
		{http.MethodPatch, "/api/contacts/{id}", false},
		{http.MethodGet, "/api/contacts", false},
		{http.MethodPost, "", false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		require.Equal(t, tt.ok, ok, "%s %s", tt.method, tt.pattern)
		if ok {
			require.Equal(t, defaultIdempotencyTTL, ttl)
		}
	}
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(countingHandler(&calls, http.StatusCreated, ""))

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, sendIdempotent(h, "/api/contacts", "", `{"name":"a"}`).Code)
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store.data)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	calls := 0
	h := Idempotency(newFakeStore(), nil)(countingHandler(&calls, http.StatusCreated, `{"data":{"id":1}}`))

	first := sendIdempotent(h, "/api/contacts", "abc", `{"name":"a","phone":"1"}`)
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get(replayedHeader))

	again := sendIdempotent(h, "/api/contacts", "abc", `{"name":"a","phone":"1"}`)
	require.Equal(t, http.StatusCreated, again.Code)
	require.Equal(t, "true", again.Header().Get(replayedHeader))
	require.Equal(t, "application/json", again.Header().Get("Content-Type"))
	require.Equal(t, `{"data":{"id":1}}`, again.Body.String())
	require.Equal(t, 1, calls)
}

func TestIdempotencyKeysAreScopedByPath(t *testing.T) {
	calls := 0
	h := Idempotency(newFakeStore(), nil)(countingHandler(&calls, http.StatusOK, `{}`))

	sendIdempotent(h, "/api/contacts", "same", `{}`)
	sendIdempotent(h, "/api/contacts/import", "same", `{}`)
	require.Equal(t, 2, calls)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	calls := 0
	h := Idempotency(newFakeStore(), nil)(countingHandler(&calls, http.StatusOK, ""))

	sendIdempotent(h, "/api/contacts/import", "xyz", `{"data":[]}`)
	resp := sendIdempotent(h, "/api/contacts/import", "xyz", `{"data":[{}]}`)

	require.Equal(t, http.StatusConflict, resp.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
	require.Equal(t, 1, calls)
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(countingHandler(&calls, http.StatusServiceUnavailable, ""))

	for i := 0; i < 2; i++ {
		sendIdempotent(h, "/api/contacts", "retry-me", `{}`)
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store.data)
}

func TestIdempotencyStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("redis down")
	calls := 0
	h := Idempotency(store, nil)(countingHandler(&calls, http.StatusCreated, ""))

	resp := sendIdempotent(h, "/api/contacts", "k", `{}`)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.Zero(t, calls)
}

func TestIdempotencyNilStoreIsNoop(t *testing.T) {
	calls := 0
	next := countingHandler(&calls, http.StatusCreated, "")
	h := Idempotency(nil, nil)(next)

	require.Equal(t, http.StatusCreated, sendIdempotent(h, "/api/contacts", "k", `{}`).Code)
	require.Equal(t, 1, calls)
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	prev := maxIdempotentBody
	maxIdempotentBody = 8
	t.Cleanup(func() { maxIdempotentBody = prev })

	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(countingHandler(&calls, http.StatusCreated, ""))

	require.Equal(t, http.StatusCreated, sendIdempotent(h, "/api/contacts", "fits", `{"a":12}`).Code)

	resp := sendIdempotent(h, "/api/contacts", "big", `{"a":123}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Equal(t, string(pkgerrors.CodeValidation), payload.Error.Code)
	require.Equal(t, 1, calls)
	require.Len(t, store.data, 1)
}
