package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidWorkspace is returned when admission is attempted without a
	// positive workspace id. The transport maps it to close code 4000.
	ErrInvalidWorkspace = errors.New("invalid workspace id")
	// ErrTooManyConnections is returned when an origin is at its connection
	// cap. The transport maps it to close code 1013.
	ErrTooManyConnections = errors.New("too many connections from origin")
)

const (
	defaultOriginLimit       = 3
	defaultHeartbeatInterval = 30 * time.Second
	defaultProbeTimeout      = 5 * time.Second
)

// RegistryOptions tunes admission control and the heartbeat loop.
// Zero values fall back to the defaults above.
type RegistryOptions struct {
	OriginLimit       int
	HeartbeatInterval time.Duration
	ProbeTimeout      time.Duration
}

// Registry owns every open connection, grouped by workspace, and performs
// admission control. It is the one shared mutable structure of the realtime
// layer: connection handlers, close paths, the heartbeat loop and the
// dispatcher all mutate or read it concurrently.
type Registry struct {
	logger   *zerolog.Logger
	limit    int
	interval time.Duration
	timeout  time.Duration

	mu         sync.RWMutex
	workspaces map[int64]map[string]*Conn
	origins    map[string]int
}

// NewRegistry creates an empty registry. There is no ambient instance; the
// application constructs one and passes it to every component that needs it.
func NewRegistry(logger *zerolog.Logger, opts RegistryOptions) *Registry {
	if opts.OriginLimit <= 0 {
		opts.OriginLimit = defaultOriginLimit
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	return &Registry{
		logger:     logger,
		limit:      opts.OriginLimit,
		interval:   opts.HeartbeatInterval,
		timeout:    opts.ProbeTimeout,
		workspaces: make(map[int64]map[string]*Conn),
		origins:    make(map[string]int),
	}
}

// Admit gates a new connection attempt. On success it claims an origin slot
// and returns a tracked Conn; the caller is expected to Subscribe it next.
// The slot is held until Remove, whatever happens in between.
func (r *Registry) Admit(origin string, workspaceID, userID int64, link Link) (*Conn, error) {
	if workspaceID <= 0 {
		r.logger.Warn().
			Str("origin", origin).
			Int64("workspace_id", workspaceID).
			Msg("admission rejected: invalid workspace")
		return nil, ErrInvalidWorkspace
	}

	r.mu.Lock()
	if r.origins[origin] >= r.limit {
		active := r.origins[origin]
		r.mu.Unlock()
		r.logger.Warn().
			Str("origin", origin).
			Int("active", active).
			Int("limit", r.limit).
			Msg("admission rejected: origin cap reached")
		return nil, ErrTooManyConnections
	}
	r.origins[origin]++
	r.mu.Unlock()

	conn := &Conn{
		id:          uuid.NewString(),
		workspaceID: workspaceID,
		userID:      userID,
		origin:      origin,
		link:        link,
	}
	conn.live.Store(true)

	r.logger.Info().
		Str("conn_id", conn.id).
		Str("origin", origin).
		Int64("workspace_id", workspaceID).
		Int64("user_id", userID).
		Msg("connection admitted")
	return conn, nil
}

// Subscribe adds the connection to its workspace's subscriber set. Any live
// connection already subscribed under the same (identity, workspace) pair is
// evicted first with close code 1000, so the set never holds two connections
// for the same logical user.
func (r *Registry) Subscribe(conn *Conn) {
	var evicted []*Conn

	r.mu.Lock()
	set := r.workspaces[conn.workspaceID]
	if set == nil {
		set = make(map[string]*Conn)
		r.workspaces[conn.workspaceID] = set
	}
	for id, other := range set {
		if other.userID == conn.userID && id != conn.id {
			delete(set, id)
			evicted = append(evicted, other)
		}
	}
	set[conn.id] = conn
	r.mu.Unlock()

	for _, old := range evicted {
		r.Remove(old)
		_ = old.link.Close(websocket.StatusNormalClosure, "replaced")
		r.logger.Info().
			Str("conn_id", old.id).
			Str("replaced_by", conn.id).
			Int64("workspace_id", conn.workspaceID).
			Int64("user_id", conn.userID).
			Msg("evicted superseded connection")
	}
}

// Remove untracks a connection and releases its origin slot. Idempotent:
// repeated calls for the same connection release the slot only once, so the
// transport's defer, a failed broadcast send and a failed heartbeat probe can
// all call it without coordination.
func (r *Registry) Remove(conn *Conn) {
	if conn == nil || !conn.live.CompareAndSwap(true, false) {
		return
	}

	r.mu.Lock()
	if set := r.workspaces[conn.workspaceID]; set != nil {
		delete(set, conn.id)
		if len(set) == 0 {
			delete(r.workspaces, conn.workspaceID)
		}
	}
	if n := r.origins[conn.origin]; n <= 1 {
		delete(r.origins, conn.origin)
	} else {
		r.origins[conn.origin] = n - 1
	}
	r.mu.Unlock()

	r.logger.Debug().
		Str("conn_id", conn.id).
		Int64("workspace_id", conn.workspaceID).
		Msg("connection removed")
}

// Snapshot copies the current subscriber set for a workspace. Callers iterate
// the copy without holding the registry lock, so concurrent admits and
// removals during fan-out cannot corrupt the iteration.
func (r *Registry) Snapshot(workspaceID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.workspaces[workspaceID]
	conns := make([]*Conn, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the size of a workspace's subscriber set.
func (r *Registry) Count(workspaceID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces[workspaceID])
}

// OriginCount returns how many admitted connections an origin currently holds.
func (r *Registry) OriginCount(origin string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.origins[origin]
}

// Run drives the heartbeat loop until the context is cancelled. It ticks on
// its own timer, fully decoupled from request handling.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.probe(ctx)
		}
	}
}

// probe pings every open connection. A failed probe is handled exactly like a
// failed broadcast send: the connection is removed and closed best-effort.
func (r *Registry) probe(ctx context.Context) {
	conns := r.snapshotAll()
	for _, conn := range conns {
		pctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := conn.link.Ping(pctx)
		cancel()
		if err == nil {
			continue
		}
		r.logger.Warn().
			Str("conn_id", conn.id).
			Int64("workspace_id", conn.workspaceID).
			Err(err).
			Msg("heartbeat probe failed, dropping connection")
		r.Remove(conn)
		_ = conn.link.Close(websocket.StatusInternalError, "heartbeat failed")
	}
}

func (r *Registry) snapshotAll() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*Conn
	for _, set := range r.workspaces {
		for _, conn := range set {
			conns = append(conns, conn)
		}
	}
	return conns
}
