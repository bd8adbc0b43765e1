package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// SocketService serves the API over a unix domain socket. It implements
// the runtime Service contract.
type SocketService struct {
	socketPath string
	apiServer  *APIServer

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewSocketService binds the API server to the given socket path.
func NewSocketService(socketPath string, apiServer *APIServer) *SocketService {
	return &SocketService{
		socketPath: socketPath,
		apiServer:  apiServer,
	}
}

// Start creates the unix socket and begins serving requests.
func (s *SocketService) Start(ctx context.Context) error {
	if s.socketPath == "" {
		return fmt.Errorf("socket path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create unix socket: %w", err)
	}

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	httpServer := &http.Server{Handler: s.apiServer.Handler()}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "control socket serve error: %v\n", err)
		}
	}()

	return nil
}

// Shutdown stops the HTTP server and removes the socket file.
func (s *SocketService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			httpServer.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove socket: %w", err)
	}

	return nil
}
