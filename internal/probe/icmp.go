package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/ifpj/netwatch/internal/types"
)

// ICMPExecutor shells out to the system ping binary for a single echo
// request, the same subprocess-wrapper shape the original fping executor
// used: spawn, capture output, parse RTT out of stdout rather than
// speaking the ICMP wire protocol directly. This sidesteps the need for
// raw-socket privileges inside the process itself; the OS ping binary
// already carries whatever capability (setuid, unprivileged ICMP group)
// the platform requires.
type ICMPExecutor struct {
	binary string
}

func NewICMPExecutor() *ICMPExecutor {
	return &ICMPExecutor{binary: "ping"}
}

func (e *ICMPExecutor) Protocol() types.Protocol { return types.ProtocolICMP }

// CheckDependency verifies the ping binary is on PATH. Per §9's "ICMP
// privileges" note, this is the single point where a missing facility is
// surfaced as a clear startup diagnostic rather than a wall of per-probe
// failures.
func (e *ICMPExecutor) CheckDependency() error {
	path, err := exec.LookPath(e.binary)
	if err != nil {
		return fmt.Errorf("ping binary not found on PATH (required for ICMP targets): %w", err)
	}
	e.binary = path
	return nil
}

var icmpRTTPattern = regexp.MustCompile(`time[=<]([0-9.]+)\s*ms`)

func (e *ICMPExecutor) Probe(ctx context.Context, target types.Target) types.ProbeOutcome {
	start := nowUTC()

	timeoutS := target.TimeoutS
	if timeoutS < 1 {
		timeoutS = 1
	}

	args := pingArgs(target.Host, timeoutS)
	cmd := exec.CommandContext(ctx, e.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	elapsed := time.Since(start).Seconds() * 1000

	if ctx.Err() != nil {
		return types.ProbeOutcome{
			Success:   false,
			Message:   "probe deadline exceeded",
			Timestamp: start,
		}
	}

	if runErr != nil {
		msg := stderr.String()
		if msg == "" {
			msg = runErr.Error()
		}
		return types.ProbeOutcome{
			Success:   false,
			Message:   msg,
			Timestamp: start,
		}
	}

	if m := icmpRTTPattern.FindStringSubmatch(stdout.String()); m != nil {
		if rtt, err := strconv.ParseFloat(m[1], 64); err == nil {
			return types.ProbeOutcome{
				Success:   true,
				LatencyMs: rtt,
				Timestamp: start,
			}
		}
	}

	// ping exited 0 but we couldn't parse an RTT out of its output; still
	// treat this as success with wall-clock latency as a fallback.
	return types.ProbeOutcome{
		Success:   true,
		LatencyMs: elapsed,
		Timestamp: start,
	}
}

// pingArgs builds a one-packet, bounded-deadline invocation for the
// platform's ping flavor (BSD/macOS vs GNU/Linux use different timeout
// flags).
func pingArgs(host string, timeoutS int) []string {
	if runtime.GOOS == "darwin" {
		return []string{"-n", "-c", "1", "-t", strconv.Itoa(timeoutS), host}
	}
	return []string{"-n", "-c", "1", "-W", strconv.Itoa(timeoutS), host}
}
