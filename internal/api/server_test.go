package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/procpool/internal/events"
	"github.com/smazurov/procpool/internal/pool"
)

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()

	manager, err := pool.NewCommandManager(`sh -c 'while read line; do echo "$line"; done'`,
		pool.WithManagerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("NewCommandManager failed: %v", err)
	}
	p, err := pool.New(manager.Factory(), pool.Config{
		MinSize: 1,
		MaxSize: 2,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("pool.New failed: %v", err)
	}
	t.Cleanup(func() {
		p.ForceShutdown()
		if !p.AwaitTermination(5 * time.Second) {
			t.Error("pool did not terminate")
		}
	})

	opts.Pool = p
	if opts.Bus == nil {
		opts.Bus = events.New()
	}
	server := NewServer(&opts)

	ts := httptest.NewServer(server.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body HealthData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestPoolStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/pool")
	if err != nil {
		t.Fatalf("GET /api/pool failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var status PoolStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if status.Total != 1 || status.MaxSize != 2 {
		t.Errorf("pool status = %+v, want total 1, max 2", status)
	}
}

func TestListExecutorsEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/executors")
	if err != nil {
		t.Fatalf("GET /api/executors failed: %v", err)
	}
	defer resp.Body.Close()

	var list ExecutorList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(list.Executors) != 1 {
		t.Fatalf("got %d executors, want 1", len(list.Executors))
	}
	if list.Executors[0].State != string(pool.StateIdle) {
		t.Errorf("executor state = %q, want idle", list.Executors[0].State)
	}
}

func TestRunSubmissionEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	body := `{"commands": [{"instruction": "hello", "wait_for": "hello"}]}`
	resp, err := http.Post(ts.URL+"/api/submissions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/submissions failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}
	var result SubmissionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if result.Outcome != string(pool.OutcomeSucceeded) {
		t.Errorf("outcome = %q, want succeeded", result.Outcome)
	}
	if len(result.Commands) != 1 || len(result.Commands[0].Stdout) == 0 {
		t.Fatalf("missing captured output: %+v", result)
	}
	if result.Commands[0].Stdout[0] != "hello" {
		t.Errorf("stdout = %v, want [hello]", result.Commands[0].Stdout)
	}
}

func TestRunSubmissionRejectsEmptyCommands(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, err := http.Post(ts.URL+"/api/submissions", "application/json", strings.NewReader(`{"commands": []}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestBasicAuth(t *testing.T) {
	ts := newTestServer(t, Options{AuthUsername: "admin", AuthPassword: "secret"})

	resp, err := http.Get(ts.URL + "/api/pool")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/pool", nil)
	req.SetBasicAuth("admin", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authenticated GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", resp.StatusCode)
	}

	// Health stays open without credentials.
	resp, err = http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}
