package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// MonitorServer serves the HTTP monitor. Start binds synchronously and serves in
// the background; Restart rebinds with the current config, keeping the routes.
type MonitorServer struct {
	running *sync.Mutex // held while serving
	router  chi.Router
	srv     *http.Server
	addr    net.Addr
	srvMu   sync.RWMutex // protects srv and addr
	port    int          // overrides details_port when set
}

func NewMonitorServer() *MonitorServer {
	var s MonitorServer
	s.running = &sync.Mutex{}
	s.router = chi.NewRouter()
	s.srv = &http.Server{}
	return &s
}

func (s *MonitorServer) Router() chi.Router {
	return s.router
}

func (s *MonitorServer) listenAddr() string {
	port := s.port
	if port == 0 {
		port = Config.GetInt("details_port")
	}
	return fmt.Sprintf(":%d", port)
}

// Addr is the bound address of the running server, nil when stopped.
func (s *MonitorServer) Addr() net.Addr {
	s.srvMu.RLock()
	defer s.srvMu.RUnlock()
	return s.addr
}

func (s *MonitorServer) Start() error {
	if !s.running.TryLock() {
		return fmt.Errorf("already running")
	}
	ln, err := net.Listen("tcp", s.listenAddr())
	if err != nil {
		s.running.Unlock()
		return fmt.Errorf("monitor server listen: %w", err)
	}
	newSrv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	s.srvMu.Lock()
	s.srv = newSrv
	s.addr = ln.Addr()
	s.srvMu.Unlock()

	Logger.Info().Msgf("monitor server listening on %v", ln.Addr())
	go func() {
		defer s.running.Unlock()
		if err := newSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			Logger.Warn().Msgf("Problem running monitor server: %v", err)
		}
		s.srvMu.Lock()
		s.addr = nil
		s.srvMu.Unlock()
		Logger.Debug().Msg("monitor server shutdown")
	}()
	return nil
}

func (s *MonitorServer) AddHandler(path string, handler func(http.ResponseWriter, *http.Request)) {
	s.router.HandleFunc(path, handler)
}

func (s *MonitorServer) AddRawHandler(path string, handler http.Handler) {
	s.router.Handle(path, handler)
}

// Stop shuts the server down and waits until it has stopped serving.
func (s *MonitorServer) Stop(ctx context.Context) {
	if s.running.TryLock() {
		s.running.Unlock()
		return
	}
	s.srvMu.RLock()
	currentSrv := s.srv
	s.srvMu.RUnlock()
	if err := currentSrv.Shutdown(ctx); err != nil {
		Logger.Error().Msgf("Error shutting down monitor server: %v", err)
	}
	s.running.Lock()
	s.running.Unlock()
}

func (s *MonitorServer) Restart() {
	Logger.Debug().Msg("restarting monitor server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	if err := s.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
}
