package session_test

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/caleb-hansolo/lanbench/bench"
	"github.com/caleb-hansolo/lanbench/session"
	"github.com/caleb-hansolo/lanbench/transport"
)

// pipeEndpoints returns the two ends of an in-memory connection wrapped as
// transport endpoints.
func pipeEndpoints() (*transport.Endpoint, *transport.Endpoint) {
	a, b := net.Pipe()
	return transport.NewEndpoint(a), transport.NewEndpoint(b)
}

func TestHelloExchange(t *testing.T) {
	a, b := pipeEndpoints()
	defer a.Close()
	defer b.Close()

	want := session.Hello{Probes: 10, TotalBytes: 10000000, ChunkSize: 65536}
	errCh := make(chan error, 1)
	go func() { errCh <- session.WriteHello(a, want) }()

	got, err := session.ReadHello(b)
	if err != nil {
		t.Fatalf("ReadHello: %v", err)
	}
	if got != want {
		t.Fatalf("hello round trip: got %+v, want %+v", got, want)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteHello: %v", err)
	}

	go func() { errCh <- session.WriteHelloReply(b) }()
	if err := session.ReadHelloReply(a); err != nil {
		t.Fatalf("ReadHelloReply: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteHelloReply: %v", err)
	}
}

func TestReadHelloRejectsForeignMagic(t *testing.T) {
	a, b := pipeEndpoints()
	defer a.Close()
	defer b.Close()

	go func() {
		var buf [session.HelloSize]byte
		binary.BigEndian.PutUint32(buf[0:4], 0xdeadbeef)
		a.Send(buf[:])
	}()
	_, err := session.ReadHello(b)
	if err == nil {
		t.Fatal("expected an error for a foreign hello magic")
	}
	if kind := bench.KindOf(err); kind != bench.KindRead {
		t.Fatalf("error kind = %v, want ReadError", kind)
	}
}

func TestProbeEcho(t *testing.T) {
	a, b := pipeEndpoints()
	defer a.Close()
	defer b.Close()

	want := session.Probe{Seq: 7, Nonce: 0x1234}
	go func() {
		p, _ := session.ReadProbe(b)
		session.WriteProbe(b, p)
	}()
	if err := session.WriteProbe(a, want); err != nil {
		t.Fatalf("WriteProbe: %v", err)
	}
	got, err := session.ReadProbe(a)
	if err != nil {
		t.Fatalf("ReadProbe: %v", err)
	}
	if got != want {
		t.Fatalf("probe echo: got %+v, want %+v", got, want)
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	a, b := pipeEndpoints()
	defer a.Close()
	defer b.Close()

	go session.WriteMarker(a, 123456)

	tail := make([]byte, session.MarkerSize)
	if err := b.ReceiveFull(tail); err != nil {
		t.Fatalf("reading marker: %v", err)
	}
	n, ok := session.ParseMarker(tail)
	if !ok {
		t.Fatal("ParseMarker rejected a valid marker")
	}
	if n != 123456 {
		t.Fatalf("marker bytes = %d, want 123456", n)
	}
}

func TestParseMarkerRejectsPayloadTail(t *testing.T) {
	if _, ok := session.ParseMarker(make([]byte, session.MarkerSize)); ok {
		t.Fatal("a zero tail must not parse as a marker")
	}
	if _, ok := session.ParseMarker([]byte{1, 2, 3}); ok {
		t.Fatal("a short tail must not parse as a marker")
	}
}

func TestAckRoundTrip(t *testing.T) {
	a, b := pipeEndpoints()
	defer a.Close()
	defer b.Close()

	want := session.Ack{ReceivedBytes: 10000000, Elapsed: 1500 * time.Millisecond}
	go session.WriteAck(b, want)

	got, err := session.ReadAck(a)
	if err != nil {
		t.Fatalf("ReadAck: %v", err)
	}
	if got != want {
		t.Fatalf("ack round trip: got %+v, want %+v", got, want)
	}
}

func TestReadAckTruncated(t *testing.T) {
	a, b := pipeEndpoints()
	defer a.Close()

	go func() {
		b.Send(make([]byte, session.AckSize/2))
		b.Close()
	}()
	if _, err := session.ReadAck(a); err == nil {
		t.Fatal("expected an error for a truncated acknowledgment")
	}
}
