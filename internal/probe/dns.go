package probe

import (
	"context"
	"net"
	"time"

	"github.com/ifpj/netwatch/internal/types"
)

// DNSExecutor resolves Target.Host as an A record against the system
// resolver, per §4.1.
type DNSExecutor struct {
	Resolver *net.Resolver
}

func NewDNSExecutor() *DNSExecutor {
	return &DNSExecutor{Resolver: net.DefaultResolver}
}

func (e *DNSExecutor) Protocol() types.Protocol { return types.ProtocolDNS }

func (e *DNSExecutor) CheckDependency() error { return nil }

func (e *DNSExecutor) Probe(ctx context.Context, target types.Target) types.ProbeOutcome {
	start := nowUTC()

	addrs, err := e.Resolver.LookupIP(ctx, "ip4", target.Host)
	latency := time.Since(start).Seconds() * 1000

	if err != nil {
		return types.ProbeOutcome{
			Success:   false,
			Message:   err.Error(),
			Timestamp: start,
		}
	}
	if len(addrs) == 0 {
		return types.ProbeOutcome{
			Success:   false,
			Message:   "no records returned",
			Timestamp: start,
		}
	}

	return types.ProbeOutcome{
		Success:   true,
		LatencyMs: latency,
		Timestamp: start,
	}
}
