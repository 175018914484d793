package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server with WebSocket support.
type Server struct {
	session     SessionInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// ServerConfig holds the optional parts of a Server.
type ServerConfig struct {
	Events        EventStatsSource
	CORSOrigins   []string
	PreviewWidth  int
	PreviewHeight int
}

// NewServer creates an API server over sess.
//
// Background workers do not start until Start is called, so tests can
// construct the server and use Router() without listeners or goroutines
// beyond the rate limiter's cleanup.
func NewServer(sess SessionInterface, cfg ServerConfig) *Server {
	origins := cfg.CORSOrigins
	if origins == nil {
		origins = DefaultCORSOrigins
	}

	s := &Server{
		session:     sess,
		wsHub:       NewWebSocketHub(NewOriginMatcher(origins)),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}

	s.router = NewRouter(RouterConfig{
		Session:       sess,
		Events:        cfg.Events,
		RateLimiter:   s.rateLimiter,
		CORSOrigins:   origins,
		PreviewWidth:  cfg.PreviewWidth,
		PreviewHeight: cfg.PreviewHeight,
	})
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start runs the hub and the broadcast loop, then serves addr until
// Shutdown.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.session)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🌀 HUD: http://localhost%s/hud", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
//
//	server := api.NewServer(sess, api.ServerConfig{})
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops the listener and the background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
