package tikhub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"mediagrab/pkg/config"
)

func newTestClient(baseURLs []string, pool *Pool) *Client {
	cfg := &config.APIConfig{
		BaseURLs:          baseURLs,
		Timeout:           5 * time.Second,
		RequestsPerMinute: 10000,
	}
	return NewClient(cfg, 5*time.Second, pool, nil)
}

func TestGetJSONSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		w.Write([]byte(`{"code":200,"message":"ok","data":{"value":42}}`))
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, NewPool("test-key"))

	data, err := client.GetJSON(context.Background(), "/api/v1/test", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.Value != 42 {
		t.Errorf("expected value 42, got %d", payload.Value)
	}
}

func TestGetJSONQueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("username"); got != "natgeo" {
			t.Errorf("expected username=natgeo, got %q", got)
		}
		w.Write([]byte(`{"code":200,"data":{}}`))
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, NewPool("k"))

	params := url.Values{}
	params.Set("username", "natgeo")
	if _, err := client.GetJSON(context.Background(), "/api/v1/user", params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetJSONRotatesOn402(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") == "Bearer exhausted-key" {
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		w.Write([]byte(`{"code":200,"data":{"ok":true}}`))
	}))
	defer server.Close()

	pool := NewPool("exhausted-key", "backup-key")
	client := newTestClient([]string{server.URL}, pool)

	if _, err := client.GetJSON(context.Background(), "/api/v1/test", nil); err != nil {
		t.Fatalf("expected success with backup key, got %v", err)
	}

	// Primary must now be flagged and the backup must be current
	key, err := pool.Current()
	if err != nil || key != "backup-key" {
		t.Errorf("expected backup-key to be current, got %q (err %v)", key, err)
	}

	// Subsequent requests use the backup directly
	before := atomic.LoadInt32(&calls)
	if _, err := client.GetJSON(context.Background(), "/api/v1/test", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != before+1 {
		t.Errorf("expected exactly one additional request, got %d", atomic.LoadInt32(&calls)-before)
	}
}

func TestGetJSONQuotaExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, NewPool("k1", "k2"))

	_, err := client.GetJSON(context.Background(), "/api/v1/test", nil)
	if err == nil {
		t.Fatal("expected error when all keys return 402")
	}
	if !IsQuotaExhausted(err) {
		t.Errorf("expected quota exhausted error, got %v", err)
	}
}

func TestGetJSONBaseURLFailover(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":{"ok":true}}`))
	}))
	defer good.Close()

	client := newTestClient([]string{bad.URL, good.URL}, NewPool("k"))

	if _, err := client.GetJSON(context.Background(), "/api/v1/test", nil); err != nil {
		t.Fatalf("expected failover to second base URL, got %v", err)
	}
}

func TestGetJSONUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, NewPool("k"))

	_, err := client.GetJSON(context.Background(), "/api/v1/test", nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Type != ErrorTypeUpstream {
		t.Errorf("expected upstream error, got %v", err)
	}
	if IsQuotaExhausted(err) {
		t.Error("upstream error must not be classified as quota exhaustion")
	}
}

func TestGetJSONEnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":400,"message":"invalid user_id"}`))
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, NewPool("k"))

	_, err := client.GetJSON(context.Background(), "/api/v1/test", nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Type != ErrorTypeUpstream {
		t.Errorf("expected upstream error for envelope code 400, got %v", err)
	}
}

func TestFetchBytes(t *testing.T) {
	payload := []byte("binary media payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("media fetch must not carry API credentials")
		}
		w.Write(payload)
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, NewPool("k"))

	data, err := client.FetchBytes(context.Background(), server.URL+"/media.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("unexpected payload: %q", data)
	}
}

func TestFetchBytesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, NewPool("k"))

	_, err := client.FetchBytes(context.Background(), server.URL+"/missing.jpg")
	if err == nil {
		t.Fatal("expected error for 404 media fetch")
	}
}

func TestResolveRedirect(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landing"))
	}))
	defer final.Close()

	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/user/profile/abc123", http.StatusFound)
	}))
	defer short.Close()

	client := newTestClient([]string{short.URL}, NewPool("k"))

	resolved, err := client.ResolveRedirect(context.Background(), short.URL+"/m/xyz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != final.URL+"/user/profile/abc123" {
		t.Errorf("unexpected resolved URL: %s", resolved)
	}
}
