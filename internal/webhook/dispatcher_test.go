package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ifpj/netwatch/internal/eventbus"
	"github.com/ifpj/netwatch/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRender_DefaultJSONPayload(t *testing.T) {
	target := types.Target{Name: "api", Host: "example.com"}
	transition := types.Transition{Target: target, To: true, Timestamp: time.Now().UTC()}

	body, contentType := render(types.Webhook{}, transition)
	if contentType != "application/json" {
		t.Fatalf("expected application/json, got %s", contentType)
	}
	if !bytesContain(body, `"status":"UP"`) {
		t.Fatalf("expected UP status in payload, got %s", body)
	}
}

func TestRender_LiteralTemplateSubstitution(t *testing.T) {
	target := types.Target{Name: "api", Host: "example.com"}
	transition := types.Transition{Target: target, To: false, Message: "connection refused", Timestamp: time.Now().UTC()}

	webhookCfg := types.Webhook{Template: `{"text":"{{TARGET}} is {{STATUS}}: {{MESSAGE}}"}`}
	body, _ := render(webhookCfg, transition)

	want := `{"text":"api is DOWN: connection refused"}`
	if string(body) != want {
		t.Fatalf("got %s, want %s", body, want)
	}
}

func bytesContain(b []byte, s string) bool {
	return len(b) > 0 && (string(b) != "" && containsStr(string(b), s))
}

func containsStr(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// TestDispatcher_RetriesOnServerErrorThenSucceeds grounds scenario S5:
// a webhook that returns 503 twice then 200 should see exactly 3 POSTs.
func TestDispatcher_RetriesOnServerErrorThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New()
	d := New(discardLogger())
	d.client.Timeout = 2 * time.Second

	d.SetWebhooks([]types.Webhook{{ID: "w1", Enabled: true, URL: srv.URL}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx, bus)

	bus.PublishTransition(types.Transition{
		Target:    types.Target{Name: "api"},
		To:        true,
		Timestamp: time.Now().UTC(),
	})

	deadline := time.After(6 * time.Second)
	for {
		if atomic.LoadInt32(&calls) >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 3 POSTs, got %d", atomic.LoadInt32(&calls))
		case <-time.After(50 * time.Millisecond):
		}
	}

	// Give the worker a beat to settle so no fourth POST sneaks in.
	time.Sleep(200 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected exactly 3 POSTs, got %d", got)
	}
}

func TestDispatcher_FourXXIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	bus := eventbus.New()
	d := New(discardLogger())
	d.SetWebhooks([]types.Webhook{{ID: "w1", Enabled: true, URL: srv.URL}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx, bus)

	bus.PublishTransition(types.Transition{Target: types.Target{Name: "api"}, To: true, Timestamp: time.Now().UTC()})

	time.Sleep(500 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 POST for a terminal 4xx, got %d", got)
	}
}
