package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/ifpj/netwatch/internal/types"
)

// HTTPExecutor handles both HTTP and HTTPS targets: it builds the scheme
// from target.Protocol and shares a single http.Client with redirect
// following and TLS verification enabled, per §4.1.
type HTTPExecutor struct {
	client *http.Client
}

func NewHTTPExecutor() *HTTPExecutor {
	return &HTTPExecutor{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > 3 {
					return http.ErrUseLastResponse
				}
				return nil
			},
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: false},
			},
		},
	}
}

// Protocol reports HTTP; a second registration under HTTPS is performed
// by the caller via NewHTTPSExecutor, since Registry keys on one protocol
// per executor.
func (e *HTTPExecutor) Protocol() types.Protocol { return types.ProtocolHTTP }

func (e *HTTPExecutor) CheckDependency() error { return nil }

func (e *HTTPExecutor) Probe(ctx context.Context, target types.Target) types.ProbeOutcome {
	return e.probe(ctx, target, "http")
}

func (e *HTTPExecutor) probe(ctx context.Context, target types.Target, scheme string) types.ProbeOutcome {
	start := nowUTC()
	url := fmt.Sprintf("%s://%s/", scheme, target.Address())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.ProbeOutcome{Success: false, Message: err.Error(), Timestamp: start}
	}

	resp, err := e.client.Do(req)
	latency := time.Since(start).Seconds() * 1000
	if err != nil {
		return types.ProbeOutcome{Success: false, Message: err.Error(), Timestamp: start}
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode < 400
	msg := ""
	if !success {
		msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	return types.ProbeOutcome{
		Success:   success,
		LatencyMs: latency,
		Message:   msg,
		Timestamp: start,
	}
}

// HTTPSExecutor reuses HTTPExecutor's client but always dials with the
// https scheme.
type HTTPSExecutor struct {
	inner *HTTPExecutor
}

func NewHTTPSExecutor() *HTTPSExecutor {
	return &HTTPSExecutor{inner: NewHTTPExecutor()}
}

func (e *HTTPSExecutor) Protocol() types.Protocol { return types.ProtocolHTTPS }

func (e *HTTPSExecutor) CheckDependency() error { return nil }

func (e *HTTPSExecutor) Probe(ctx context.Context, target types.Target) types.ProbeOutcome {
	return e.inner.probe(ctx, target, "https")
}
