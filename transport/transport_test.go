package transport_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/m-lab/go/rtx"
	"golang.org/x/net/nettest"

	"github.com/caleb-hansolo/lanbench/bench"
	"github.com/caleb-hansolo/lanbench/transport"
)

func TestConnectRefused(t *testing.T) {
	// Find a port with no listener by binding one and closing it.
	l, err := nettest.NewLocalListener("tcp")
	rtx.Must(err, "cannot create local listener")
	addr := l.Addr().String()
	l.Close()

	_, err = transport.Connect(context.Background(), addr, time.Second)
	if err == nil {
		t.Fatal("expected connect to a closed port to fail")
	}
	if kind := bench.KindOf(err); kind != bench.KindConnect {
		t.Fatalf("error kind = %v, want ConnectError", kind)
	}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	l, err := transport.NewListener("127.0.0.1:0")
	rtx.Must(err, "cannot bind listener")
	defer l.Close()

	type acceptResult struct {
		ep  *transport.Endpoint
		err error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		ep, err := l.Accept(context.Background(), time.Second)
		acceptCh <- acceptResult{ep, err}
	}()

	client, err := transport.Connect(context.Background(), l.Addr().String(), time.Second)
	rtx.Must(err, "cannot connect")
	defer client.Close()

	ar := <-acceptCh
	rtx.Must(ar.err, "accept failed")
	server := ar.ep
	defer server.Close()

	payload := bytes.Repeat([]byte{0xab}, 4096)
	if err := client.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := make([]byte, len(payload))
	if err := server.ReceiveFull(got); err != nil {
		t.Fatalf("ReceiveFull: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload corrupted in transit")
	}

	// Half-close: the server observes EOF once the client's write side is
	// gone, while the reverse direction stays usable.
	rtx.Must(client.CloseWrite(), "CloseWrite failed")
	buf := make([]byte, 16)
	if n, err := server.Receive(buf); err != io.EOF || n != 0 {
		t.Fatalf("Receive after peer CloseWrite = (%d, %v), want (0, EOF)", n, err)
	}
	if err := server.Send([]byte("ack")); err != nil {
		t.Fatalf("Send on the surviving direction: %v", err)
	}
	if err := client.ReceiveFull(buf[:3]); err != nil {
		t.Fatalf("client read after CloseWrite: %v", err)
	}
}

func TestAcceptTimeout(t *testing.T) {
	l, err := transport.NewListener("127.0.0.1:0")
	rtx.Must(err, "cannot bind listener")
	defer l.Close()

	_, err = l.Accept(context.Background(), 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected accept to time out")
	}
	if kind := bench.KindOf(err); kind != bench.KindTimeout {
		t.Fatalf("error kind = %v, want TimeoutError", kind)
	}
}

func TestAcceptCanceled(t *testing.T) {
	l, err := transport.NewListener("127.0.0.1:0")
	rtx.Must(err, "cannot bind listener")
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = l.Accept(ctx, 0)
	if err == nil {
		t.Fatal("expected accept to fail after cancellation")
	}
	if kind := bench.KindOf(err); kind != bench.KindAccept {
		t.Fatalf("error kind = %v, want AcceptError", kind)
	}
}

func TestBindErrorOnBusyPort(t *testing.T) {
	first, err := transport.NewListener("127.0.0.1:0")
	rtx.Must(err, "cannot bind first listener")
	defer first.Close()

	_, err = transport.NewListener(first.Addr().String())
	if err == nil {
		t.Fatal("expected binding a busy port to fail")
	}
	if kind := bench.KindOf(err); kind != bench.KindBind {
		t.Fatalf("error kind = %v, want BindError", kind)
	}
}

func TestCloseIdempotent(t *testing.T) {
	l, err := transport.NewListener("127.0.0.1:0")
	rtx.Must(err, "cannot bind listener")

	go func() {
		c, err := transport.Connect(context.Background(), l.Addr().String(), time.Second)
		if err == nil {
			c.Close()
			c.Close()
		}
	}()
	ep, err := l.Accept(context.Background(), time.Second)
	rtx.Must(err, "accept failed")

	first := ep.Close()
	second := ep.Close()
	if first != second {
		t.Fatalf("repeated Close must return the same result: %v vs %v", first, second)
	}
	if err := l.Close(); err != nil {
		// Accept already closed the listener; a second close must still be
		// safe.
		t.Fatalf("listener re-close: %v", err)
	}
}
