package realtime

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

const defaultSendTimeout = 5 * time.Second

// Dispatcher fans domain events out to a workspace's subscriber set.
// Delivery is at-most-once and best-effort: no retry, no acknowledgment, no
// backlog. A connection that misses an event catches up by re-fetching
// history over REST, not through this path.
type Dispatcher struct {
	registry *Registry
	logger   *zerolog.Logger
	timeout  time.Duration
}

// NewDispatcher wires a dispatcher to the registry it draws subscriber
// snapshots from. sendTimeout bounds each per-connection write; zero falls
// back to the default.
func NewDispatcher(registry *Registry, logger *zerolog.Logger, sendTimeout time.Duration) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger,
		timeout:  sendTimeout,
	}
}

// Broadcast serializes the event once and delivers it to every connection
// currently subscribed to the workspace. A connection whose send fails is
// removed from the registry and closed best-effort; the failure never
// surfaces to the producer. Producers call this fire-and-forget after their
// write commits.
func (d *Dispatcher) Broadcast(ctx context.Context, workspaceID int64, ev Event) {
	if workspaceID <= 0 {
		d.logger.Warn().
			Int64("workspace_id", workspaceID).
			Msg("broadcast skipped: missing workspace id")
		return
	}

	data, err := Encode(workspaceID, ev)
	if err != nil {
		d.logger.Error().Err(err).Msg("broadcast skipped: encode failed")
		return
	}

	conns := d.registry.Snapshot(workspaceID)
	var delivered, failed int
	for _, conn := range conns {
		if err := d.write(ctx, conn, data); err != nil {
			failed++
			d.logger.Warn().
				Str("conn_id", conn.ID()).
				Int64("workspace_id", workspaceID).
				Err(err).
				Msg("broadcast send failed, dropping connection")
			d.registry.Remove(conn)
			_ = conn.link.Close(websocket.StatusInternalError, "send failed")
			continue
		}
		delivered++
	}

	d.logger.Debug().
		Str("kind", ev.Kind()).
		Int64("workspace_id", workspaceID).
		Int("delivered", delivered).
		Int("failed", failed).
		Msg("broadcast complete")
}

// Send delivers an event to a single connection, used for the point-to-point
// acknowledgments right after admission. Unlike Broadcast it reports the send
// error so the transport can tear the connection down.
func (d *Dispatcher) Send(ctx context.Context, conn *Conn, ev Event) error {
	data, err := Encode(conn.WorkspaceID(), ev)
	if err != nil {
		return err
	}
	return d.write(ctx, conn, data)
}

func (d *Dispatcher) write(ctx context.Context, conn *Conn, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return conn.link.WriteText(wctx, data)
}
