package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/logger"
	"github.com/ironsheep/yail-server/internal/metrics"
	"github.com/ironsheep/yail-server/internal/session"
	"github.com/ironsheep/yail-server/internal/source"
)

// Default limits applied by New for zero Options fields.
const (
	DefaultMaxConnections  = 64
	DefaultIdleTimeout     = 300 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultGenerateTimeout = 120 * time.Second
	DefaultSearchTimeout   = 30 * time.Second
	DefaultFetchTimeout    = 30 * time.Second
	DefaultCameraTimeout   = 10 * time.Second
	DefaultMaxLineBytes    = 8 * 1024
)

// Sources are the collaborators a server draws images from. Any of them may
// be nil; commands that need a missing source answer source.not_available.
type Sources struct {
	Files     source.ImageSource
	URLs      source.ImageSource
	Generator source.Generator
	Gemini    source.Generator
	Searcher  source.Searcher
	Camera    source.Camera
}

// Options tunes limits and timeouts. Zero values select the defaults.
type Options struct {
	MaxConnections  int
	MaxEncodes      int
	IdleTimeout     time.Duration
	WriteTimeout    time.Duration
	GenerateTimeout time.Duration
	SearchTimeout   time.Duration
	FetchTimeout    time.Duration
	CameraTimeout   time.Duration
	MaxLineBytes    int
	Retry           source.RetryPolicy
	Metrics         *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.MaxConnections <= 0 {
		o.MaxConnections = DefaultMaxConnections
	}
	if o.MaxEncodes <= 0 {
		o.MaxEncodes = runtime.NumCPU()
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = DefaultGenerateTimeout
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = DefaultSearchTimeout
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.CameraTimeout <= 0 {
		o.CameraTimeout = DefaultCameraTimeout
	}
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = DefaultMaxLineBytes
	}
	if o.Retry.MaxTries == 0 {
		o.Retry = source.DefaultRetryPolicy
	}
	return o
}

// Server accepts client connections and serves each one on its own
// goroutine. The session state and generation settings are shared by all
// connections.
type Server struct {
	state    *session.State
	settings *source.GenSettings
	sources  Sources
	opts     Options
	encodes  *semaphore.Weighted

	wg       sync.WaitGroup
	mu       sync.Mutex
	listener net.Listener
	conns    map[*conn]struct{}
	closed   bool
}

// New creates a server. A nil state or settings gets a fresh one.
func New(state *session.State, settings *source.GenSettings, sources Sources, opts Options) *Server {
	if state == nil {
		state = session.New()
	}
	if settings == nil {
		settings = source.NewGenSettings()
	}
	opts = opts.withDefaults()
	return &Server{
		state:    state,
		settings: settings,
		sources:  sources,
		opts:     opts,
		encodes:  semaphore.NewWeighted(int64(opts.MaxEncodes)),
		conns:    make(map[*conn]struct{}),
	}
}

// State returns the shared session state.
func (s *Server) State() *session.State {
	return s.state
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or Close is called,
// then waits for every connection goroutine to finish. It returns nil after
// an orderly stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return net.ErrClosed
	}
	s.listener = ln
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	logger.Info("server listening", "addr", ln.Addr().String(),
		"max_connections", s.opts.MaxConnections, "max_encodes", s.opts.MaxEncodes)

	var acceptErr error
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.isClosed() && !errors.Is(err, net.ErrClosed) {
				acceptErr = fmt.Errorf("accept: %w", err)
			}
			break
		}

		if n := s.state.RegisterConnection(); n > s.opts.MaxConnections {
			s.state.UnregisterConnection()
			s.reject(nc)
			continue
		}

		c := newConn(s, nc)
		if !s.track(c, true) {
			s.state.UnregisterConnection()
			nc.Close()
			break
		}
		s.wg.Add(1)
		go s.handle(ctx, c)
	}

	s.Close()
	s.wg.Wait()
	logger.Info("server stopped", "addr", ln.Addr().String())
	return acceptErr
}

// handle runs one connection. It owns the connection's registration in the
// session state and releases it exactly once.
func (s *Server) handle(ctx context.Context, c *conn) {
	defer s.wg.Done()
	defer s.track(c, false)
	defer func() {
		left := s.state.UnregisterConnection()
		s.opts.Metrics.ConnectionClosed()
		c.log.Info("client disconnected", "connections", left)
	}()
	defer c.nc.Close()

	s.opts.Metrics.ConnectionOpened()
	snap := s.state.Snapshot()
	c.log.Info("client connected", "remote", c.nc.RemoteAddr().String(),
		"connections", snap.Connections, "files", snap.Filenames, "last_model", snap.LastModel)
	c.serve(ctx)
}

func (s *Server) reject(nc net.Conn) {
	defer nc.Close()
	s.opts.Metrics.ConnectionRejected()
	logger.Warn("connection rejected, server full", "remote", nc.RemoteAddr().String(), "max_connections", s.opts.MaxConnections)
	_ = nc.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = nc.Write(errorLine(apperrors.CodeServerBusy, "too many connections, try again later"))
}

// track adds or removes c from the set of live connections. Adding fails once
// the server is closed.
func (s *Server) track(c *conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.closed {
			return false
		}
		s.conns[c] = struct{}{}
		return true
	}
	delete(s.conns, c)
	return true
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting connections and closes every live connection. It is
// safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for c := range s.conns {
		c.nc.Close()
	}
	return err
}
