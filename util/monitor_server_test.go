package util

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func boundPort(t *testing.T, s *MonitorServer) int {
	t.Helper()
	addr := s.Addr()
	if addr == nil {
		t.Fatal("server has no address")
	}
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatalf("bad address %v: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("bad port %s: %v", portStr, err)
	}
	return port
}

func TestNewMonitorServer(t *testing.T) {
	server := NewMonitorServer()

	if server == nil {
		t.Fatal("NewMonitorServer should return non-nil server")
	}
	if server.running == nil {
		t.Error("NewMonitorServer should initialize running mutex")
	}
	if server.Router() == nil {
		t.Error("NewMonitorServer should initialize the router")
	}
	if server.Addr() != nil {
		t.Error("Addr should be nil before Start")
	}
}

func TestMonitorServer_AddHandler(t *testing.T) {
	server := NewMonitorServer()

	server.AddHandler("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response")) //nolint:errcheck // test helper
	})
	server.AddRawHandler("/raw", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	if w.Code != http.StatusOK || w.Body.String() != "test response" {
		t.Errorf("GET /test = %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest("GET", "/raw", nil))
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestMonitorServer_StartStopRestart(t *testing.T) {
	Config.Set("details_port", 0)
	server := NewMonitorServer()
	server.AddHandler("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("healthy")) //nolint:errcheck // test helper
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	if err := server.Start(); err == nil {
		t.Error("Start() should return error when already running")
	}

	get := func() string {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", boundPort(t, server)))
		if err != nil {
			t.Fatalf("GET /health failed: %v", err)
		}
		defer func() { _ = resp.Body.Close() }() //nolint:errcheck // test cleanup
		body, _ := io.ReadAll(resp.Body)
		return string(body)
	}

	if body := get(); body != "healthy" {
		t.Errorf("GET /health = %q", body)
	}

	server.Restart()
	if body := get(); body != "healthy" {
		t.Errorf("GET /health after restart = %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	server.Stop(ctx)
	if !server.running.TryLock() {
		t.Fatal("server should not be running after Stop")
	}
	server.running.Unlock()

	server.Stop(ctx)
}

func TestMonitorServer_ListenError(t *testing.T) {
	Config.Set("details_port", 0)
	first := NewMonitorServer()
	if err := first.Start(); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	defer first.Stop(context.Background())

	second := NewMonitorServer()
	second.port = boundPort(t, first)
	if err := second.Start(); err == nil {
		second.Stop(context.Background())
		t.Fatal("Start() on a busy port should fail")
	}
	if !second.running.TryLock() {
		t.Error("failed Start should release the running lock")
	} else {
		second.running.Unlock()
	}
}
