package probe

import (
	"context"
	"net"
	"time"

	"github.com/ifpj/netwatch/internal/types"
)

// TCPExecutor probes reachability by opening a TCP connection to host:port.
type TCPExecutor struct {
	Dialer net.Dialer
}

func NewTCPExecutor() *TCPExecutor { return &TCPExecutor{} }

func (e *TCPExecutor) Protocol() types.Protocol { return types.ProtocolTCP }

// CheckDependency is a no-op: TCP dialing needs nothing beyond the stdlib
// network stack, unlike ICMP's external ping binary.
func (e *TCPExecutor) CheckDependency() error { return nil }

func (e *TCPExecutor) Probe(ctx context.Context, target types.Target) types.ProbeOutcome {
	start := nowUTC()
	addr := target.Address()

	conn, err := e.Dialer.DialContext(ctx, "tcp", addr)
	latency := time.Since(start).Seconds() * 1000

	if err != nil {
		return types.ProbeOutcome{
			Success:   false,
			LatencyMs: 0,
			Message:   err.Error(),
			Timestamp: start,
		}
	}
	defer conn.Close()

	return types.ProbeOutcome{
		Success:   true,
		LatencyMs: latency,
		Timestamp: start,
	}
}
