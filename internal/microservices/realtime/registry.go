package realtime

import (
	"log/slog"
	"strings"
	"sync"
)

// Conn is one live transport connection (a websocket, a TCP socket).
// Send must not block and must be safe for concurrent use.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Removal reports what a RemoveConnection call did.
type Removal struct {
	UserID        string // empty when the connection was not registered
	BecameOffline bool   // true only when the user's last connection went away
}

// Registry maps users to their live connections. A user is online while at
// least one connection is registered for them.
type Registry struct {
	users  map[string]map[string]Conn // user ID -> connection ID -> connection
	owners map[string]string          // connection ID -> user ID
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		users:  make(map[string]map[string]Conn),
		owners: make(map[string]string),
		logger: logger,
	}
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

// AddConnection binds conn to userID and returns true only when the user
// went from zero connections to one. Re-adding the same pair is a no-op.
// A connection stays bound to its first user: binding it to someone else is
// refused, since that would take the owner offline without an edge.
func (r *Registry) AddConnection(userID string, conn Conn) bool {
	uid := normalizeID(userID)
	if uid == "" || conn == nil {
		return false
	}
	cid := normalizeID(conn.ID())
	if cid == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[cid]; ok {
		if owner != uid {
			r.logger.Warn("connection_rebind_refused",
				"connection_id", cid,
				"owner_id", owner,
				"user_id", uid,
			)
		}
		return false
	}

	conns, ok := r.users[uid]
	if !ok {
		conns = make(map[string]Conn)
		r.users[uid] = conns
	}
	wasOffline := len(conns) == 0
	conns[cid] = conn
	r.owners[cid] = uid

	r.logger.Info("connection_added",
		"user_id", uid,
		"connection_id", cid,
		"connections", len(conns),
	)
	return wasOffline
}

// RemoveConnection unbinds a connection. Unknown ids are a no-op.
func (r *Registry) RemoveConnection(connID string) Removal {
	cid := normalizeID(connID)

	r.mu.Lock()
	defer r.mu.Unlock()

	uid, ok := r.owners[cid]
	if !ok {
		return Removal{}
	}
	offline := r.detach(uid, cid)

	r.logger.Info("connection_removed",
		"user_id", uid,
		"connection_id", cid,
		"became_offline", offline,
	)
	return Removal{UserID: uid, BecameOffline: offline}
}

// detach must be called with mu held. It reports whether uid is now offline.
func (r *Registry) detach(uid, cid string) bool {
	delete(r.owners, cid)
	conns := r.users[uid]
	delete(conns, cid)
	if len(conns) == 0 {
		delete(r.users, uid)
		return true
	}
	return false
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[normalizeID(userID)]) > 0
}

// ConnectionsOf returns a snapshot; it is safe to use after the lock is released.
func (r *Registry) ConnectionsOf(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.users[normalizeID(userID)]
	if len(conns) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// Connections returns a snapshot of every registered connection.
func (r *Registry) Connections() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.owners))
	for _, conns := range r.users {
		for _, c := range conns {
			out = append(out, c)
		}
	}
	return out
}

// OnlineCount is the number of distinct online users.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// CloseAll closes every connection and empties the registry. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.owners))
	for _, byID := range r.users {
		for _, c := range byID {
			conns = append(conns, c)
		}
	}
	r.users = make(map[string]map[string]Conn)
	r.owners = make(map[string]string)
	r.mu.Unlock()

	for _, c := range conns {
		if err := c.Close(); err != nil {
			r.logger.Warn("connection_close_failed", "connection_id", c.ID(), "error", err)
		}
	}
	r.logger.Info("all_connections_closed", "count", len(conns))
}
