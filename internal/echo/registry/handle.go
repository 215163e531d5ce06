package registry

import (
	"net"
	"strconv"

	"github.com/harmony-one/abool"
)

// ID - unique identifier of accepted connection.
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Handle - represents one accepted connection.
// The session owning the handle is the only reader and writer,
// registry is only allowed to close it.
type Handle struct {
	ID         ID
	RemoteHost string
	RemotePort int

	conn   net.Conn
	closed *abool.AtomicBool
}

// NewHandle - wraps connection with given identifier.
func NewHandle(id ID, conn net.Conn) *Handle {
	h := &Handle{
		ID:     id,
		conn:   conn,
		closed: abool.NewBool(false),
	}
	if conn != nil && conn.RemoteAddr() != nil {
		h.RemoteHost, h.RemotePort = splitAddress(conn.RemoteAddr())
	}
	return h
}

// Conn - returns underlying network connection.
func (h *Handle) Conn() net.Conn {
	return h.conn
}

// Remote - returns remote address in host:port form for logging purposes.
func (h *Handle) Remote() string {
	return net.JoinHostPort(h.RemoteHost, strconv.Itoa(h.RemotePort))
}

// Closed - reports the handle was closed.
func (h *Handle) Closed() bool {
	return h.closed.IsSet()
}

// Close - closes underlying connection. Only the first call closes it,
// next calls return nil.
func (h *Handle) Close() error {
	if !h.closed.SetToIf(false, true) {
		return nil
	}
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}

func splitAddress(a net.Addr) (host string, port int) {
	if tcp, ok := a.(*net.TCPAddr); ok {
		return tcp.IP.String(), tcp.Port
	}
	host, p, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String(), 0
	}
	port, _ = strconv.Atoi(p)
	return host, port
}
