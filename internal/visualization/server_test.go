package visualization

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestServer_ServesHTML(t *testing.T) {
	srv := NewServer(newTestModel(t, nil), 0.5, 2, Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}

	notFound, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	notFound.Body.Close()
	if notFound.StatusCode != http.StatusNotFound {
		t.Errorf("GET /nope status = %d, want 404", notFound.StatusCode)
	}
}

func TestServer_StepEndpoint(t *testing.T) {
	m := newTestModel(t, nil)
	srv := NewServer(m, 0.5, 2, Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/step")
	if err != nil {
		t.Fatalf("GET /api/step: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Sim-Steps"); got != "2" {
		t.Errorf("X-Sim-Steps = %q, want 2", got)
	}

	resp, err = http.Get(ts.URL + "/api/step?n=3")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got, _ := strconv.ParseFloat(resp.Header.Get("X-Sim-Time"), 64); got != 2.5 {
		t.Errorf("X-Sim-Time = %v, want 2.5", got)
	}
	if m.Steps() != 5 {
		t.Errorf("model steps = %d, want 5", m.Steps())
	}
}

func TestServer_StepEndpoint_InvalidN(t *testing.T) {
	srv := NewServer(newTestModel(t, nil), 0.5, 1, Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, q := range []string{"0", "-1", "abc"} {
		resp, err := http.Get(ts.URL + "/api/step?n=" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("n=%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestServer_SceneEndpoint(t *testing.T) {
	srv := NewServer(newTestModel(t, nil), 0.5, 1, Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/scene")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var s Scene
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(s.Particles) != 5 {
		t.Errorf("got %d particles, want 5", len(s.Particles))
	}
}

func TestServer_CleanShutdown(t *testing.T) {
	srv := NewServer(newTestModel(t, nil), 0.5, 1, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	waitForServer(t, srv, 2*time.Second)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("unexpected error on shutdown: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down within 3 seconds")
	}
}

// waitForServer polls the server until it's ready or the timeout is reached.
func waitForServer(t *testing.T, srv *Server, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		addr := srv.Addr()
		if addr == "" {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		resp, err := http.Get("http://" + addr + "/api/scene")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not start within timeout")
}
