// Package server implements an MginDB-compatible WebSocket server backed by
// the in-memory store and write-ahead log. It answers the same command
// texts as the real server and is used by the package tests, the demo
// server and the benchmark.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loganszeto/mgindb-go/internal/logger"
	"github.com/loganszeto/mgindb-go/internal/persistence"
	"github.com/loganszeto/mgindb-go/internal/stats"
	"github.com/loganszeto/mgindb-go/internal/store"
)

const defaultRouteWait = 2 * time.Second

type Options struct {
	// Username and Password are required from every session when either
	// is set.
	Username string
	Password string

	// Welcome is sent after a successful login when non-empty.
	Welcome string

	// RouteWait bounds how long a per-command connection waits for the
	// session named in its handshake header to authenticate.
	RouteWait time.Duration
}

type Server struct {
	addr  string
	st    store.Store
	wal   *persistence.WAL
	stats *stats.Stats
	opts  Options

	hub      *hub
	indices  *indexRegistry
	schedule *scheduleRegistry
	upgrader websocket.Upgrader
}

// New builds a server. wal may be nil, in which case mutations are not
// logged. Every mutating command ends with a wal Commit.
func New(addr string, st store.Store, wal *persistence.WAL, stats *stats.Stats, opts Options) *Server {
	if opts.RouteWait <= 0 {
		opts.RouteWait = defaultRouteWait
	}
	return &Server{
		addr:     addr,
		st:       st,
		wal:      wal,
		stats:    stats,
		opts:     opts,
		hub:      newHub(),
		indices:  newIndexRegistry(),
		schedule: newScheduleRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/", s.handleWS)
	return mux
}

// ListenAndServe serves until ctx is done, then closes every session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           withLogging(s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.closeAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Err("shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Trace("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) Stats() *stats.Stats {
	return s.stats
}
