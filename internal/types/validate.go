package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Validate checks a Config against the invariants in the target and
// webhook schemas. It does not mutate the receiver.
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Targets))
	for _, t := range c.Targets {
		if t.ID == "" {
			return fmt.Errorf("target %q: id is required", t.Name)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("target %q: duplicate id", t.ID)
		}
		seen[t.ID] = struct{}{}

		if err := t.Validate(); err != nil {
			return fmt.Errorf("target %q: %w", t.ID, err)
		}
	}

	webhookIDs := make(map[string]struct{}, len(c.Alert.Webhooks))
	for _, w := range c.Alert.Webhooks {
		if w.ID == "" {
			return fmt.Errorf("webhook %q: id is required", w.Name)
		}
		if _, dup := webhookIDs[w.ID]; dup {
			return fmt.Errorf("webhook %q: duplicate id", w.ID)
		}
		webhookIDs[w.ID] = struct{}{}
		if w.URL == "" {
			return fmt.Errorf("webhook %q: url is required", w.ID)
		}
	}

	if c.DataRetentionDays < 0 {
		return fmt.Errorf("data_retention_days must be >= 0")
	}

	return nil
}

// Validate checks the per-target invariants from §3: port present iff the
// protocol isn't ICMP, and timeout strictly less than interval.
func (t Target) Validate() error {
	switch t.Protocol {
	case ProtocolTCP, ProtocolICMP, ProtocolDNS, ProtocolHTTP, ProtocolHTTPS:
	default:
		return fmt.Errorf("unknown protocol %q", t.Protocol)
	}

	if t.Protocol == ProtocolICMP && t.Port != nil {
		return fmt.Errorf("icmp targets must not specify a port")
	}
	if t.Protocol != ProtocolICMP && t.Port == nil {
		return fmt.Errorf("%s targets require a port", t.Protocol)
	}
	if t.Port != nil && (*t.Port < 1 || *t.Port > 65535) {
		return fmt.Errorf("port %d out of range 1-65535", *t.Port)
	}
	if t.IntervalS < 1 {
		return fmt.Errorf("interval must be >= 1 second")
	}
	if t.TimeoutS < 1 {
		return fmt.Errorf("timeout must be >= 1 second")
	}
	if t.TimeoutS >= t.IntervalS {
		return fmt.Errorf("timeout (%ds) must be less than interval (%ds)", t.TimeoutS, t.IntervalS)
	}
	if t.Threshold < 1 {
		return fmt.Errorf("threshold must be >= 1")
	}
	return nil
}

// ContentHash hashes the fields that determine whether a running Runner can
// be left in place across a hot-reload: protocol, host, port, interval,
// timeout, threshold. Changes to Name or to the webhook list never affect
// this hash (property 3 in SPEC_FULL.md §9).
func (t Target) ContentHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", t.Protocol, t.Host)
	if t.Port != nil {
		fmt.Fprintf(h, "%d", *t.Port)
	}
	fmt.Fprintf(h, "|%d|%d|%d", t.IntervalS, t.TimeoutS, t.Threshold)
	return hex.EncodeToString(h.Sum(nil))
}
