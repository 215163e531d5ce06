package echo

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/harmony-one/abool"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wtask/netube/internal/echo/registry"
	"github.com/wtask/netube/pkg/background"
)

// DefaultBufferSize - size of read buffer of every session.
const DefaultBufferSize = 4096

// Server - echo server over TCP.
// Every accepted connection is served in its own goroutine, the number of
// sessions is not limited.
type Server struct {
	ids        *idSequence
	logger     zerolog.Logger
	bufSize    int
	limiter    *rate.Limiter
	registerer prometheus.Registerer
	metrics    *metrics

	running *abool.AtomicBool
	scope   *background.Scope
	clients *registry.Registry
	done    chan struct{}

	mu       sync.Mutex
	listener net.Listener
	err      error
}

// NewServer - creates new server in running state, ready to serve single listener.
func NewServer(options ...serverOption) (*Server, error) {
	scope, cancelScope := background.NewScope()
	s := &Server{
		ids:     &idSequence{},
		logger:  zerolog.Nop(),
		bufSize: DefaultBufferSize,
		running: abool.NewBool(true),
		scope:   scope,
		clients: registry.New(),
		done:    make(chan struct{}),
	}
	if err := setup(s, options...); err != nil {
		cancelScope()
		return nil, err
	}
	if s.registerer == nil {
		s.registerer = prometheus.NewRegistry()
	}
	m, err := newMetrics(s.registerer)
	if err != nil {
		cancelScope()
		return nil, errors.Wrap(err, "echo.NewServer: can't register metrics")
	}
	s.metrics = m
	return s, nil
}

// Start - binds TCP listener on host and port and serves it in background.
// Empty host or "::" listens on all IPv6 and IPv4 addresses.
// Zero port lets the system choose a free one, see Addr.
func (s *Server) Start(host string, port int) error {
	if !s.running.IsSet() {
		return ErrUnderStopCondition
	}
	node := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", node)
	if err != nil {
		s.logger.Error().Err(err).Str("address", node).Msg("Unable to listen TCP")
		return errors.Wrapf(err, "echo.Server: unable to listen %s", node)
	}
	if err := s.attach(listener); err != nil {
		listener.Close()
		return err
	}
	s.logger.Info().
		Int("port", listenPort(listener.Addr())).
		Str("address", listener.Addr().String()).
		Msg("Listening")

	s.scope.Go(func(context.Context) {
		if err := s.serve(listener); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			s.Shutdown()
		}
	})
	return nil
}

// Serve - accepts connections from listener until Shutdown or accept failure.
// Returns nil when stopped by Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	if listener == nil {
		return errors.New("echo.Server: listener is nil")
	}
	if err := s.attach(listener); err != nil {
		return err
	}
	s.scope.Add(1)
	defer s.scope.Done()
	return s.serve(listener)
}

func (s *Server) attach(listener net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.IsSet() {
		return ErrUnderStopCondition
	}
	if s.listener != nil {
		return ErrAlreadyStarted
	}
	s.listener = listener
	return nil
}

func (s *Server) serve(listener net.Listener) error {
	ctx := s.scope.Context()
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				if !s.running.IsSet() {
					return nil
				}
				return errors.Wrap(err, "echo.Server: accept limiter failed")
			}
		}
		// Shutdown closes listener to stop this loop.
		conn, err := listener.Accept()
		if err != nil {
			if !s.running.IsSet() {
				return nil
			}
			s.logger.Error().Err(err).Msg("Accept failed")
			return errors.Wrap(err, "echo.Server: accept failed")
		}
		s.connect(conn)
	}
}

func (s *Server) connect(conn net.Conn) {
	h := registry.NewHandle(s.ids.next(), conn)
	logger := connLogger(s.logger, h)
	s.metrics.accepted.Inc()
	if err := s.clients.Register(h); err != nil {
		// registry is closed already, the server is stopping
		logger.Debug().Err(err).Msg("Connection rejected")
		h.Close()
		return
	}
	logger.Info().Msg("Accepted connection")
	s.metrics.active.Inc()
	s.scope.Go(func(context.Context) {
		newSession(s, h, logger).run()
	})
}

// Shutdown - stops the server: closes every registered connection and the listener.
// Only the first call has effect. It does not wait for sessions to return, so it is
// safe to call from a session; use Done and Wait to follow the stop.
func (s *Server) Shutdown() {
	if !s.running.SetToIf(true, false) {
		return
	}
	s.logger.Info().Msg("Shutdown in progress...")
	s.scope.Stop()
	closed := s.clients.CloseAll()

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		if err := listener.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Listener close")
		}
	}
	close(s.done)
	s.logger.Info().Int("connections", closed).Msg("Connections closed")
}

// Done - returns channel which is closed when shutdown has begun.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Running - reports whether server was not stopped yet.
func (s *Server) Running() bool {
	return s.running.IsSet()
}

// Wait - waits for the accept loop and all sessions to return.
// Returns duration of time spent. This time is about the given timeout at most.
func (s *Server) Wait(timeout time.Duration) time.Duration {
	from := time.Now()
	if !s.scope.Wait(timeout) {
		s.logger.Warn().Dur("timeout", timeout).Msg("Some sessions are still running")
	}
	return time.Since(from)
}

// Err - returns the reason the accept loop failed, if it did.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Addr - returns listening address or nil if server was not started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Registry - returns directory of currently served connections.
func (s *Server) Registry() *registry.Registry {
	return s.clients
}

func listenPort(a net.Addr) int {
	if tcp, ok := a.(*net.TCPAddr); ok {
		return tcp.Port
	}
	_, p, err := net.SplitHostPort(a.String())
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(p)
	return port
}
