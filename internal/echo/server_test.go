package echo

import (
	"bufio"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtask/netube/internal/echo/message"
)

const waitFor = 2 * time.Second

func startServer(test *testing.T, options ...serverOption) *Server {
	s, err := NewServer(options...)
	require.NoError(test, err)
	require.NoError(test, s.Start("127.0.0.1", 0))
	require.NotNil(test, s.Addr())
	test.Cleanup(func() {
		s.Shutdown()
		s.Wait(waitFor)
	})
	return s
}

type client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// dial - connects to server and consumes greeting.
func dial(test *testing.T, s *Server) *client {
	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(test, err)
	test.Cleanup(func() { conn.Close() })
	require.NoError(test, conn.SetDeadline(time.Now().Add(5*time.Second)))
	c := &client{conn, bufio.NewReader(conn)}
	greeting, err := c.reader.ReadString('\n')
	require.NoError(test, err)
	require.Equal(test, message.Greeting(), greeting)
	return c
}

func (c *client) send(test *testing.T, p []byte) {
	_, err := c.conn.Write(p)
	require.NoError(test, err)
}

// reply - reads labeled echo reply, returns echoed text.
func (c *client) reply(test *testing.T) string {
	label, err := c.reader.ReadString('\n')
	require.NoError(test, err)
	require.Equal(test, message.ReplyLabel, label)
	text, err := c.reader.ReadString('\n')
	require.NoError(test, err)
	return text
}

// closed - checks server has closed connection without sending anything else.
func (c *client) closed(test *testing.T) {
	b, err := c.reader.ReadByte()
	require.Error(test, err, "unexpected byte %q", b)
	if err != io.EOF {
		var netErr net.Error
		require.True(test, errors.As(err, &netErr), "unexpected error %v", err)
		require.False(test, netErr.Timeout(), "connection is still open")
	}
}

func closedWith(s *Server, reason closeReason) float64 {
	return testutil.ToFloat64(s.metrics.closed.WithLabelValues(reason.String()))
}

func TestServer_EchoThenQuit(test *testing.T) {
	s := startServer(test)
	c := dial(test, s)
	assert.Equal(test, 1, s.Registry().Len(), "connection must be registered while served")
	assert.True(test, s.Registry().Contains(1))

	c.send(test, []byte("hello\n"))
	assert.Equal(test, "hello\n", c.reply(test))

	c.send(test, []byte("Mixed CASE stays\n"))
	assert.Equal(test, "Mixed CASE stays\n", c.reply(test))

	c.send(test, []byte(":quit\n"))
	c.closed(test)

	require.Eventually(test, func() bool { return closedWith(s, reasonQuit) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(test, 0, s.Registry().Len())
	assert.False(test, s.Registry().Contains(1))
	assert.True(test, s.Running(), "quit must not stop the server")
	assert.Equal(test, float64(2), testutil.ToFloat64(s.metrics.echoed))
}

func TestServer_QuitIsCaseInsensitive(test *testing.T) {
	s := startServer(test)
	c := dial(test, s)
	c.send(test, []byte(":QuIt\r\n"))
	c.closed(test)
}

func TestServer_QuitDoesNotAffectOthers(test *testing.T) {
	s := startServer(test)
	a := dial(test, s)
	b := dial(test, s)
	assert.Equal(test, 2, s.Registry().Len())

	a.send(test, []byte(":quit\n"))
	a.closed(test)
	require.Eventually(test, func() bool { return s.Registry().Len() == 1 }, waitFor, 5*time.Millisecond)

	b.send(test, []byte("still here\n"))
	assert.Equal(test, "still here\n", b.reply(test))
}

func TestServer_CommandLookalikesAreEchoed(test *testing.T) {
	s := startServer(test)
	c := dial(test, s)
	for _, text := range []string{":quit now\n", "please :off\n", ":offline\n"} {
		c.send(test, []byte(text))
		assert.Equal(test, text, c.reply(test))
	}
	assert.True(test, s.Running())
}

func TestServer_EOF(test *testing.T) {
	s := startServer(test)
	c := dial(test, s)
	require.NoError(test, c.conn.(*net.TCPConn).CloseWrite())
	c.closed(test)
	require.Eventually(test, func() bool { return closedWith(s, reasonEOF) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(test, 0, s.Registry().Len())
	assert.Equal(test, float64(0), testutil.ToFloat64(s.metrics.active))
}

func TestServer_InvalidTextKeepsSession(test *testing.T) {
	s := startServer(test)
	c := dial(test, s)

	c.send(test, []byte{'b', 'a', 'd', 0xff, 0xfe, '\n'})
	require.Eventually(test, func() bool {
		return testutil.ToFloat64(s.metrics.decodeErrors) == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(test, 1, s.Registry().Len())

	c.send(test, []byte("ok\n"))
	assert.Equal(test, "ok\n", c.reply(test), "dropped bytes must not leak into next message")
}

func TestServer_Shutdown(test *testing.T) {
	s := startServer(test)
	a := dial(test, s)
	b := dial(test, s)
	addr := s.Addr().String()

	a.send(test, []byte(":off\n"))

	select {
	case <-s.Done():
	case <-time.After(waitFor):
		test.Fatal("server is not stopped")
	}
	a.closed(test)
	b.closed(test)

	assert.False(test, s.Running())
	assert.Equal(test, 0, s.Registry().Len())
	assert.True(test, s.Wait(waitFor) < waitFor, "sessions and accept loop must return")
	assert.NoError(test, s.Err(), "accept failure after shutdown is expected")

	_, err := net.DialTimeout("tcp", addr, time.Second)
	assert.Error(test, err, "listener must be closed")

	assert.Equal(test, ErrUnderStopCondition, s.Start("127.0.0.1", 0))
}

func TestServer_ShutdownTwice(test *testing.T) {
	s := startServer(test)
	c := dial(test, s)
	s.Shutdown()
	s.Shutdown()
	c.closed(test)
	<-s.Done()
	s.Wait(waitFor)
	assert.Equal(test, float64(1), closedWith(s, reasonShutdown))
}

func TestServer_Start_BindFailure(test *testing.T) {
	s := startServer(test)
	port := s.Addr().(*net.TCPAddr).Port

	other, err := NewServer()
	require.NoError(test, err)
	assert.Error(test, other.Start("127.0.0.1", port))
	assert.Nil(test, other.Addr())
	assert.True(test, other.Running(), "failed start keeps server usable")
}

func TestServer_Start_Twice(test *testing.T) {
	s := startServer(test)
	assert.Equal(test, ErrAlreadyStarted, s.Start("127.0.0.1", 0))
}

func TestServer_Start_AcceptFailure(test *testing.T) {
	s := startServer(test)
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	// listener breaks while the server is still running
	require.NoError(test, listener.Close())

	select {
	case <-s.Done():
	case <-time.After(waitFor):
		test.Fatal("server is not stopped after accept failure")
	}
	assert.Error(test, s.Err())
	assert.False(test, s.Running())
	assert.True(test, s.Wait(waitFor) < waitFor)
}

type failingListener struct {
	net.Listener
	err error
}

func (l failingListener) Accept() (net.Conn, error) {
	return nil, l.err
}

func (l failingListener) Close() error {
	return nil
}

func TestServer_Serve_AcceptFailure(test *testing.T) {
	s, err := NewServer()
	require.NoError(test, err)
	failure := errors.New("accept is broken")

	err = s.Serve(failingListener{err: failure})
	require.Error(test, err)
	assert.True(test, errors.Is(err, failure))
	assert.True(test, s.Running(), "Serve caller decides whether to stop the server")

	s.Shutdown()
	assert.Equal(test, ErrUnderStopCondition, s.Serve(failingListener{err: failure}))
}

func TestServer_AcceptRate(test *testing.T) {
	s := startServer(test, WithAcceptRate(1000, 1))
	for i := 0; i < 3; i++ {
		c := dial(test, s)
		c.send(test, []byte("ping\n"))
		assert.Equal(test, "ping\n", c.reply(test))
	}
	assert.Equal(test, float64(3), testutil.ToFloat64(s.metrics.accepted))
}

func TestServer_SmallBuffer(test *testing.T) {
	s := startServer(test, WithBufferSize(64))
	c := dial(test, s)
	c.send(test, []byte("short\n"))
	assert.Equal(test, "short\n", c.reply(test))
}

func TestNewServer_Options(test *testing.T) {
	cases := []struct {
		name   string
		option serverOption
	}{
		{"buffer", WithBufferSize(0)},
		{"negative rate", WithAcceptRate(-1, 1)},
		{"burst", WithAcceptRate(5, 0)},
		{"registerer", WithRegisterer(nil)},
	}
	for _, c := range cases {
		_, err := NewServer(c.option)
		assert.Error(test, err, c.name)
	}

	s, err := NewServer(WithAcceptRate(0, 0), nil)
	require.NoError(test, err)
	assert.Nil(test, s.limiter)
	assert.Equal(test, DefaultBufferSize, s.bufSize)
}

func TestNewServer_SharedRegisterer(test *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewServer(WithRegisterer(registry))
	require.NoError(test, err)
	second, err := NewServer(WithRegisterer(registry))
	require.NoError(test, err)
	assert.Same(test, first.metrics.closed, second.metrics.closed)
}
