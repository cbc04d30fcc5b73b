package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// HTTPServer is the API listener.
type HTTPServer struct {
	Server *http.Server
}

// NewHTTPServer returns an HTTPServer serving handler on addr.
func NewHTTPServer(addr string, handler http.Handler, logger *log.Logger) *HTTPServer {
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPServer{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
			ErrorLog:          logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}),
		},
	}
}

// ListenAndServe starts the listener. It returns http.ErrServerClosed after Shutdown.
func (s *HTTPServer) ListenAndServe() error {
	return s.Server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx is done.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

// Close closes the listener immediately.
func (s *HTTPServer) Close() error {
	return s.Server.Close()
}
