package realtime

import (
	"context"
	"sync/atomic"

	"github.com/coder/websocket"
)

// Link abstracts the duplex transport under a connection so the registry and
// dispatcher can be exercised without a real socket. coder/websocket
// serializes concurrent writes internally, so a Link may be written to from
// the dispatcher and the heartbeat loop at the same time.
type Link interface {
	WriteText(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// Conn is one admitted client connection with its workspace affiliation.
// The registry owns it exclusively; other components hold it only for the
// duration of a single send.
type Conn struct {
	id          string
	workspaceID int64
	userID      int64
	origin      string
	link        Link

	// live guards the origin slot: it flips to false exactly once, when the
	// connection is removed, so the slot is never released twice.
	live atomic.Bool
}

// ID returns the opaque connection handle.
func (c *Conn) ID() string { return c.id }

// WorkspaceID returns the single workspace this connection subscribed to.
func (c *Conn) WorkspaceID() int64 { return c.workspaceID }

// UserID returns the authenticated identity behind the connection.
func (c *Conn) UserID() int64 { return c.userID }

// Origin returns the network origin counted for admission control.
func (c *Conn) Origin() string { return c.origin }

// Live reports whether the connection still holds its registry slot.
func (c *Conn) Live() bool { return c.live.Load() }
