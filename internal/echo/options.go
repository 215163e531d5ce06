package echo

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type serverOption func(s *Server) error

func setup(s *Server, options ...serverOption) error {
	if s == nil {
		return nil
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger - attach logger, Server is silent by default.
func WithLogger(logger zerolog.Logger) serverOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithRegisterer - registers server metrics with given prometheus registerer.
// By default metrics are kept in private registry.
func WithRegisterer(registerer prometheus.Registerer) serverOption {
	return func(s *Server) error {
		if registerer == nil {
			return errors.New("echo.WithRegisterer: registerer is nil")
		}
		s.registerer = registerer
		return nil
	}
}

// WithBufferSize - overwrites default size of read buffer of every session.
func WithBufferSize(size int) serverOption {
	return func(s *Server) error {
		if size <= 0 {
			return errors.Errorf("echo.WithBufferSize: invalid size (%d)", size)
		}
		s.bufSize = size
		return nil
	}
}

// WithAcceptRate - limits the rate of accepting new connections, per second.
// Zero limit keeps accepting unlimited.
func WithAcceptRate(limit float64, burst int) serverOption {
	return func(s *Server) error {
		if limit < 0 {
			return errors.Errorf("echo.WithAcceptRate: invalid limit (%v)", limit)
		}
		if limit == 0 {
			s.limiter = nil
			return nil
		}
		if burst < 1 {
			return errors.Errorf("echo.WithAcceptRate: invalid burst (%d)", burst)
		}
		s.limiter = rate.NewLimiter(rate.Limit(limit), burst)
		return nil
	}
}
