// Package types holds the data model shared across netwatch's probing,
// persistence, and HTTP layers.
package types

import (
	"fmt"
	"time"
)

// Protocol identifies which probe primitive a Target uses.
type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolICMP  Protocol = "ICMP"
	ProtocolDNS   Protocol = "DNS"
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
)

// Target is a monitored endpoint definition. ID is opaque and stable across
// edits to the other fields; the Supervisor uses it as the reconciliation
// key on hot-reload.
type Target struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Protocol  Protocol `json:"protocol"`
	Host      string   `json:"host"`
	Port      *int     `json:"port"`
	IntervalS int      `json:"interval"`
	TimeoutS  int      `json:"timeout"`
	Threshold int      `json:"threshold"`
}

// Address renders host[:port] for display and webhook templating.
func (t Target) Address() string {
	if t.Port != nil {
		return fmt.Sprintf("%s:%d", t.Host, *t.Port)
	}
	return t.Host
}

// Interval returns IntervalS as a time.Duration.
func (t Target) Interval() time.Duration { return time.Duration(t.IntervalS) * time.Second }

// Timeout returns TimeoutS as a time.Duration.
func (t Target) Timeout() time.Duration { return time.Duration(t.TimeoutS) * time.Second }

// ProbeOutcome is the transient result of a single probe attempt.
type ProbeOutcome struct {
	Success   bool      `json:"success"`
	LatencyMs float64   `json:"latency_ms"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ProbeRecord is the persisted form of a ProbeOutcome; same shape, kept as
// a distinct type so history and snapshot code don't couple to the probe
// layer's transient type.
type ProbeRecord struct {
	Success   bool      `json:"success"`
	LatencyMs float64   `json:"latency_ms"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordFromOutcome converts a transient ProbeOutcome into a persisted
// ProbeRecord.
func RecordFromOutcome(o ProbeOutcome) ProbeRecord {
	return ProbeRecord{
		Success:   o.Success,
		LatencyMs: o.LatencyMs,
		Message:   o.Message,
		Timestamp: o.Timestamp,
	}
}

// TargetStatus is the externally visible, serializable state of one target.
// It is produced as a snapshot copy by the Runner; callers never see the
// live mutable struct.
type TargetStatus struct {
	Target        Target        `json:"target"`
	CurrentState  *bool         `json:"current_state"`
	ConfirmedAt   *time.Time    `json:"confirmed_at,omitempty"`
	PendingState  *bool         `json:"pending_state,omitempty"`
	PendingCount  int           `json:"pending_count"`
	Records       []ProbeRecord `json:"records"`
}

// Webhook is one configured notification target for confirmed transitions.
type Webhook struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Enabled            bool   `json:"enabled"`
	URL                string `json:"url"`
	Template           string `json:"template,omitempty"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute,omitempty"`
}

// AlertConfig groups the webhook fan-out settings.
type AlertConfig struct {
	Enabled  bool      `json:"enabled"`
	Webhooks []Webhook `json:"webhooks"`
}

// HTTPConfig carries ambient HTTP-surface settings that are not part of the
// core probing semantics but still need to live somewhere in the config file.
type HTTPConfig struct {
	ListenAddr string `json:"listen_addr"`
}

// Config is the full on-disk configuration document.
type Config struct {
	Targets           []Target    `json:"targets"`
	Alert             AlertConfig `json:"alert"`
	DataRetentionDays int         `json:"data_retention_days"`
	HTTP              HTTPConfig  `json:"http"`
}

// RetentionWindow returns the maximum age a record may have before it is
// evicted from a target's history.
func (c Config) RetentionWindow() time.Duration {
	days := c.DataRetentionDays
	if days <= 0 {
		days = 3
	}
	return time.Duration(days) * 24 * time.Hour
}

// Snapshot is the on-disk cache file shape: per-target status, keyed by
// target ID, enabling a warm restart.
type Snapshot struct {
	Version   int                     `json:"version"`
	Statuses  map[string]TargetStatus `json:"statuses"`
}

const SnapshotVersion = 1

// Transition is emitted by the Confirmation State Machine when a target's
// confirmed state flips.
type Transition struct {
	Target    Target    `json:"target"`
	From      *bool     `json:"from"`
	To        bool      `json:"to"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
