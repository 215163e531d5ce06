package echo

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/wtask/netube/internal/echo/message"
	"github.com/wtask/netube/internal/echo/registry"
)

// session - serves single connection for its lifetime:
// greets the client, then reads, classifies and answers received text
// until EOF, quit command, shutdown command or I/O failure.
type session struct {
	server *Server
	handle *registry.Handle
	logger zerolog.Logger
	buf    []byte
}

func newSession(s *Server, h *registry.Handle, logger zerolog.Logger) *session {
	return &session{
		server: s,
		handle: h,
		logger: logger,
		buf:    make([]byte, s.bufSize),
	}
}

func (s *session) run() {
	s.close(s.serve())
}

func (s *session) serve() closeReason {
	if err := s.write(message.Greeting()); err != nil {
		return s.fail(err)
	}
	conn := s.handle.Conn()
	for {
		n, err := conn.Read(s.buf)
		if n > 0 {
			if reason, done := s.process(s.buf[:n]); done {
				return reason
			}
		}
		if err == nil {
			continue
		}
		if err == io.EOF {
			if !s.server.Running() {
				return reasonShutdown
			}
			return reasonEOF
		}
		return s.fail(err)
	}
}

// process - handles one received chunk. Returns true when session must end.
func (s *session) process(p []byte) (closeReason, bool) {
	text, err := message.Decode(p)
	if err != nil {
		// chunk is dropped, connection stays open
		s.logger.Warn().Err(err).Msg("Error decoding message")
		s.server.metrics.decodeErrors.Inc()
		return 0, false
	}

	switch message.Classify(text) {
	case message.CommandQuit:
		return reasonQuit, true
	case message.CommandShutdown:
		s.logger.Info().Msg("Shutdown requested")
		s.server.Shutdown()
		return reasonShutdown, true
	default:
		s.logger.Debug().Str("text", text).Msg("Server received")
		if err := s.write(message.Reply(text)); err != nil {
			return s.fail(err), true
		}
		s.server.metrics.echoed.Inc()
		return 0, false
	}
}

func (s *session) write(text string) error {
	_, err := io.WriteString(s.handle.Conn(), text)
	return err
}

// fail - reports I/O error unless it is caused by shutdown.
func (s *session) fail(err error) closeReason {
	if !s.server.Running() {
		return reasonShutdown
	}
	s.logger.Error().Err(err).Msg("Connection error")
	return reasonError
}

func (s *session) close(reason closeReason) {
	if err := s.handle.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("Connection close")
	}
	s.server.clients.Unregister(s.handle.ID)
	s.server.metrics.active.Dec()
	s.server.metrics.closed.WithLabelValues(reason.String()).Inc()
	s.logger.Info().Str("reason", reason.String()).Msg("Connection closed")
}
