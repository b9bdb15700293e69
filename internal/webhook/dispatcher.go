// Package webhook implements the templated-POST fan-out with bounded
// retry and per-webhook isolation from SPEC_FULL.md §4.7.
package webhook

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ifpj/netwatch/internal/eventbus"
	"github.com/ifpj/netwatch/internal/types"
)

// queueDepth is the per-webhook bounded queue size from §5: "Webhook
// Dispatcher uses a per-webhook bounded queue (e.g., 64)".
const queueDepth = 64

// backoffSchedule is the fixed exponential backoff from §4.7: 1s, 3s, 9s.
var backoffSchedule = []time.Duration{time.Second, 3 * time.Second, 9 * time.Second}

// Dispatcher owns one worker goroutine per enabled webhook, fed by a
// shared subscription to the Event Bus's transitions topic. A failing or
// slow webhook cannot block delivery to any other webhook or back up into
// the probing loop, per §4.7's isolation requirement.
type Dispatcher struct {
	logger *slog.Logger
	client *http.Client

	mu      sync.Mutex
	workers map[string]*worker
	sub     *eventbus.Subscription[types.Transition]

	wg sync.WaitGroup
}

// New creates a Dispatcher that will subscribe to bus once Start is called.
func New(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:  logger,
		client:  &http.Client{Timeout: 10 * time.Second},
		workers: make(map[string]*worker),
	}
}

// SetWebhooks replaces the set of active webhooks. Workers for removed or
// disabled webhooks are stopped; workers for new enabled webhooks are
// started; unchanged webhooks keep their queue (undelivered transitions
// are not lost across a config reload).
func (d *Dispatcher) SetWebhooks(webhooks []types.Webhook) {
	d.mu.Lock()
	defer d.mu.Unlock()

	wanted := make(map[string]types.Webhook, len(webhooks))
	for _, w := range webhooks {
		if w.Enabled {
			wanted[w.ID] = w
		}
	}

	for id, w := range d.workers {
		if _, ok := wanted[id]; !ok {
			w.stop()
			delete(d.workers, id)
		}
	}

	for id, cfg := range wanted {
		if w, ok := d.workers[id]; ok {
			w.updateConfig(cfg)
			continue
		}
		w := newWorker(cfg, d.client, d.logger)
		d.workers[id] = w
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			w.run()
		}()
	}
}

// Start subscribes to bus's transitions topic and fans each confirmed
// transition out to every active webhook worker's queue.
func (d *Dispatcher) Start(ctx context.Context, bus *eventbus.Bus) {
	d.mu.Lock()
	d.sub = bus.SubscribeTransitions()
	d.mu.Unlock()

	go func() {
		defer d.sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-d.sub.Events():
				if !ok {
					return
				}
				if msg.Lag {
					d.logger.Warn("webhook dispatcher lagged, some transitions may have been missed upstream")
				}
				d.fanOut(msg.Value)
			}
		}
	}()
}

func (d *Dispatcher) fanOut(t types.Transition) {
	d.mu.Lock()
	workers := make([]*worker, 0, len(d.workers))
	for _, w := range d.workers {
		workers = append(workers, w)
	}
	d.mu.Unlock()

	for _, w := range workers {
		w.enqueue(t)
	}
}

// Stop halts every webhook worker once it has attempted delivery of the
// transitions still in its queue. Callers should bound this with a
// context deadline (§4.9: "flush webhook dispatcher queue up to 5 s").
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	for _, w := range d.workers {
		w.stop()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// worker owns delivery for exactly one webhook, so a slow or failing
// receiver never affects any other webhook.
type worker struct {
	logger *slog.Logger
	client *http.Client

	mu      sync.Mutex
	cfg     types.Webhook
	limiter *rate.Limiter

	queue chan types.Transition
	done  chan struct{}
	once  sync.Once
}

func newWorker(cfg types.Webhook, client *http.Client, logger *slog.Logger) *worker {
	w := &worker{
		logger: logger,
		client: client,
		cfg:    cfg,
		queue:  make(chan types.Transition, queueDepth),
		done:   make(chan struct{}),
	}
	w.limiter = limiterFor(cfg)
	return w
}

func limiterFor(cfg types.Webhook) *rate.Limiter {
	if cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60.0), 1)
}

func (w *worker) updateConfig(cfg types.Webhook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg = cfg
	w.limiter = limiterFor(cfg)
}

func (w *worker) currentConfig() (types.Webhook, *rate.Limiter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg, w.limiter
}

// enqueue drops the oldest queued transition on overflow, per §5's
// backpressure policy: "availability of monitoring is preferred over
// alert completeness under severe pressure".
func (w *worker) enqueue(t types.Transition) {
	select {
	case w.queue <- t:
		return
	default:
	}
	select {
	case <-w.queue:
	default:
	}
	select {
	case w.queue <- t:
	default:
	}
	w.logger.Warn("webhook queue overflow, oldest transition dropped", "webhook", w.cfg.ID)
}

func (w *worker) stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *worker) run() {
	for {
		select {
		case <-w.done:
			// Flush what is still queued before exiting. Once done is
			// closed, deliver makes a single attempt per transition.
			for {
				select {
				case t := <-w.queue:
					cfg, _ := w.currentConfig()
					w.deliver(cfg, t)
				default:
					return
				}
			}
		case t := <-w.queue:
			cfg, limiter := w.currentConfig()
			if limiter != nil {
				_ = limiter.Wait(context.Background())
			}
			w.deliver(cfg, t)
		}
	}
}

func (w *worker) deliver(cfg types.Webhook, t types.Transition) {
	body, contentType := render(cfg, t)

	for attempt := 0; attempt < len(backoffSchedule)+1; attempt++ {
		req, err := http.NewRequest(http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			w.logger.Error("webhook request construction failed", "webhook", cfg.ID, "error", err)
			return
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := w.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 400 {
				return
			}
			if resp.StatusCode < 500 {
				w.logger.Warn("webhook delivery rejected, not retrying", "webhook", cfg.ID, "status", resp.StatusCode)
				return
			}
		} else {
			w.logger.Warn("webhook delivery failed", "webhook", cfg.ID, "error", err)
		}

		if attempt < len(backoffSchedule) {
			select {
			case <-time.After(backoffSchedule[attempt]):
			case <-w.done:
				return
			}
		}
	}

	w.logger.Error("webhook delivery exhausted retries", "webhook", cfg.ID)
}
