// Package transport wraps the single TCP connection a run is measured over.
// It owns connect/accept, full writes, reads and idempotent close; every
// failure is classified into the bench error taxonomy.
package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/caleb-hansolo/lanbench/bench"
)

// Endpoint is one side of a live, ordered, reliable byte-stream connection.
// It is owned by the engine that created it and never reused across runs.
type Endpoint struct {
	conn      net.Conn
	closeOnce sync.Once
	closeErr  error
}

// NewEndpoint wraps an established connection. Used directly by tests; real
// runs obtain endpoints from Connect or Listener.Accept.
func NewEndpoint(conn net.Conn) *Endpoint {
	return &Endpoint{conn: conn}
}

// Connect establishes the sender's outbound connection. The timeout bounds
// connection establishment; expiry is a TimeoutError, refusal or
// unreachability a ConnectError.
func Connect(ctx context.Context, addr string, timeout time.Duration) (*Endpoint, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classify(bench.KindConnect, "transport.connect", err)
	}
	tuneConn(conn)
	log.Debug("connected", "remote", conn.RemoteAddr())
	return &Endpoint{conn: conn}, nil
}

// Send writes the whole buffer, looping until the stream has accepted every
// byte or an error occurs.
func (e *Endpoint) Send(b []byte) error {
	for len(b) > 0 {
		n, err := e.conn.Write(b)
		if err != nil {
			return classify(bench.KindWrite, "transport.send", err)
		}
		b = b[n:]
	}
	return nil
}

// Receive reads up to len(b) bytes, returning the number actually read.
// Graceful peer closure is reported as io.EOF with a zero count; abnormal
// closure is a ReadError.
func (e *Endpoint) Receive(b []byte) (int, error) {
	n, err := e.conn.Read(b)
	if err == io.EOF {
		return n, io.EOF
	}
	if err != nil {
		return n, classify(bench.KindRead, "transport.receive", err)
	}
	return n, nil
}

// ReceiveFull reads exactly len(b) bytes. A connection that closes before
// the record is complete is a ReadError.
func (e *Endpoint) ReceiveFull(b []byte) error {
	if _, err := io.ReadFull(e.conn, b); err != nil {
		return classify(bench.KindRead, "transport.receive", err)
	}
	return nil
}

// CloseWrite half-closes the sending direction so the peer observes EOF
// while the receiving direction stays open for the acknowledgment.
func (e *Endpoint) CloseWrite() error {
	if tc, ok := e.conn.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			return classify(bench.KindWrite, "transport.close-write", err)
		}
		return nil
	}
	// Non-TCP connections (test pipes) have no half-close; the session
	// layer's completion marker still delimits the stream.
	return nil
}

// SetReadDeadline bounds subsequent reads. The zero time clears it.
func (e *Endpoint) SetReadDeadline(t time.Time) error {
	return e.conn.SetReadDeadline(t)
}

// Close releases the connection. Safe to call more than once and from a
// cancellation goroutine.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}

func (e *Endpoint) LocalAddr() net.Addr  { return e.conn.LocalAddr() }
func (e *Endpoint) RemoteAddr() net.Addr { return e.conn.RemoteAddr() }

// KernelRTT reports the kernel's smoothed round-trip estimate for the
// connection where the platform exposes it.
func (e *Endpoint) KernelRTT() (time.Duration, error) {
	return kernelRTT(e.conn)
}

// Listener binds the receiver's port and accepts exactly one connection
// per run.
type Listener struct {
	l         net.Listener
	closeOnce sync.Once
	closeErr  error
}

// NewListener binds addr. Failure to bind is a BindError.
func NewListener(addr string) (*Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, bench.WrapError(bench.KindBind, "transport.listen", err)
	}
	log.Debug("listening", "addr", l.Addr())
	return &Listener{l: l}, nil
}

// Addr is the bound address, useful when the configuration requested an
// ephemeral port.
func (l *Listener) Addr() net.Addr { return l.l.Addr() }

// Accept blocks until one peer connects, the timeout expires, or the
// context is canceled. The listener is closed after a successful accept;
// one connection per run.
func (l *Listener) Accept(ctx context.Context, timeout time.Duration) (*Endpoint, error) {
	if timeout > 0 {
		if tl, ok := l.l.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(timeout))
		}
	}
	// The watcher only unblocks the accept call; it never touches the
	// connection itself.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-stop:
		}
	}()

	conn, err := l.l.Accept()
	if err != nil {
		return nil, classify(bench.KindAccept, "transport.accept", err)
	}
	tuneConn(conn)
	l.Close()
	log.Debug("accepted", "remote", conn.RemoteAddr())
	return &Endpoint{conn: conn}, nil
}

// Close releases the listening socket. Idempotent.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.l.Close()
	})
	return l.closeErr
}

// tuneConn disables Nagle so small records (probes, marker, ack) are not
// delayed behind the bulk stream.
func tuneConn(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
}

// classify maps timeouts to TimeoutError and everything else to the kind
// the call site expects.
func classify(kind bench.Kind, op string, err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return bench.WrapError(bench.KindTimeout, op, err)
	}
	return bench.WrapError(kind, op, err)
}
