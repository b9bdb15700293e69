package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ifpj/netwatch/internal/types"
)

func intPtr(v int) *int { return &v }

func TestRegistry_RegisterAndProbe(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewTCPExecutor()); err != nil {
		t.Fatalf("register tcp: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	target := types.Target{
		ID:        "t1",
		Protocol:  types.ProtocolTCP,
		Host:      host,
		Port:      intPtr(port),
		IntervalS: 10,
		TimeoutS:  2,
		Threshold: 3,
	}

	outcome := r.Probe(context.Background(), target)
	if !outcome.Success {
		t.Fatalf("expected success, got failure: %s", outcome.Message)
	}
}

func TestRegistry_UnregisteredProtocol(t *testing.T) {
	r := NewRegistry()
	target := types.Target{ID: "t1", Protocol: types.ProtocolDNS, Host: "example.com", IntervalS: 10, TimeoutS: 2}
	outcome := r.Probe(context.Background(), target)
	if outcome.Success {
		t.Fatalf("expected failure for unregistered protocol")
	}
}

func TestHTTPExecutor_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	e := NewHTTPExecutor()
	target := types.Target{
		Host:      host,
		Port:      intPtr(port),
		TimeoutS:  2,
		IntervalS: 10,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	outcome := e.Probe(ctx, target)
	if !outcome.Success {
		t.Fatalf("expected success, got: %s", outcome.Message)
	}
}

func TestTCPExecutor_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() // immediately close so the port refuses connections

	host, portStr, _ := net.SplitHostPort(addr)
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	e := NewTCPExecutor()
	target := types.Target{Host: host, Port: intPtr(port), TimeoutS: 1, IntervalS: 10}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	outcome := e.Probe(ctx, target)
	if outcome.Success {
		t.Fatalf("expected failure against a closed port")
	}
}
