package webhook

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ifpj/netwatch/internal/types"
)

// render builds the POST body for a transition against one webhook's
// configuration. Per §4.7/§9, template substitution is purely literal
// token replacement — no embedded expression language — and falls back to
// a default JSON payload when no template is configured.
func render(cfg types.Webhook, t types.Transition) (body []byte, contentType string) {
	status := "DOWN"
	emoji := "🔴"
	if t.To {
		status = "UP"
		emoji = "🟢"
	}
	iso := t.Timestamp.UTC().Format(time.RFC3339)

	if cfg.Template == "" {
		payload := map[string]string{
			"status":       status,
			"status_emoji": emoji,
			"target":       t.Target.Name,
			"host":         t.Target.Address(),
			"time":         iso,
			"message":      t.Message,
		}
		out, _ := json.Marshal(payload)
		return out, "application/json"
	}

	replacer := strings.NewReplacer(
		"{{STATUS}}", status,
		"{{STATUS_EMOJI}}", emoji,
		"{{TARGET}}", t.Target.Name,
		"{{HOST}}", t.Target.Address(),
		"{{TIME}}", iso,
		"{{MESSAGE}}", t.Message,
	)
	rendered := []byte(replacer.Replace(cfg.Template))
	if json.Valid(rendered) {
		return rendered, "application/json"
	}
	return rendered, "text/plain; charset=utf-8"
}
