package scbox

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// MaxRetries bounds how many times a single directory's walk may be retried
// after a reconnect before the operation is abandoned (spec §4.4's open
// constant — this implementation picks 3).
const MaxRetries = 3

// RotationThreshold is the DownloadCounter value that triggers a proactive
// session replacement (spec §3's open constant — this implementation picks
// 50, matching the majority of the original source drafts).
const RotationThreshold = 50

// reachabilityCeiling and reachabilityPoll implement spec §4.4 step 1.
const (
	reachabilityCeiling = 10 * time.Minute
	reachabilityPoll    = 5 * time.Second
)

// reachabilityEndpoint is the well-known external endpoint probed while
// waiting for the network to come back. It is a plain TCP dial, not an HTTP
// request, to stay independent of any particular service being up.
var reachabilityEndpoint = "1.1.1.1:443"

// Reconnector wraps session rebuilding behind a health-check + rebuild
// policy: probe liveness with NoOp, and on failure wait for reachability
// before redialing from Config.
type Reconnector struct {
	cfg    Config
	logger *slog.Logger

	// dialer and reachable are overridable in tests.
	dialer    func(Config) (Client, error)
	reachable func(context.Context) bool
}

// NewReconnector builds a Reconnector for cfg. If logger is nil,
// slog.Default() is used.
func NewReconnector(cfg Config, logger *slog.Logger) *Reconnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconnector{
		cfg:       cfg,
		logger:    logger,
		dialer:    DialClient,
		reachable: defaultReachable,
	}
}

func defaultReachable(ctx context.Context) bool {
	d := net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", reachabilityEndpoint)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Healthy probes client liveness with a no-op command.
func (r *Reconnector) Healthy(client Client) bool {
	if client == nil {
		return false
	}
	return client.NoOp() == nil
}

// Ensure returns client unchanged if it is healthy, otherwise waits for
// reachability (bounded by reachabilityCeiling) and rebuilds a fresh session
// from Config. Returns ErrConnection if the ceiling expires.
func (r *Reconnector) Ensure(ctx context.Context, client Client) (Client, error) {
	if r.Healthy(client) {
		return client, nil
	}
	r.logger.Warn("session unhealthy, waiting for reachability before reconnect")

	deadline := time.Now().Add(reachabilityCeiling)
	for {
		if r.reachable(ctx) {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrConnection
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(reachabilityPoll):
		}
	}

	fresh, err := r.dialer(r.cfg)
	if err != nil {
		return nil, wrapConn(err)
	}
	r.logger.Info("session rebuilt after reconnect")
	return fresh, nil
}

// Rotate forces a fresh session regardless of current health, used by the
// reconciler when DownloadCounter crosses RotationThreshold.
func (r *Reconnector) Rotate(old Client) (Client, error) {
	if old != nil {
		_ = old.Quit()
	}
	fresh, err := r.dialer(r.cfg)
	if err != nil {
		return nil, wrapConn(err)
	}
	r.logger.Info("session rotated proactively", "reason", "download counter threshold")
	return fresh, nil
}
