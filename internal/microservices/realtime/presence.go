package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cinecircle/internal/shared"
)

const mirrorTimeout = 2 * time.Second

// PresenceMirror records presence edges outside the process.
type PresenceMirror interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
}

// Presence turns registry transitions into userOnline/userOffline broadcasts
// and relays typing signals. Broadcasts happen only on the 0<->1 edges.
//
// edges is held from the registry change until the broadcast is queued on
// every connection, so observers see edges in the order the registry made
// them. Conn.Send never blocks, which keeps the critical section short.
type Presence struct {
	registry   *Registry
	dispatcher *Dispatcher
	mirror     PresenceMirror
	logger     *slog.Logger
	edges      sync.Mutex
}

// NewPresence builds the presence signaler; mirror may be nil.
func NewPresence(registry *Registry, dispatcher *Dispatcher, mirror PresenceMirror, logger *slog.Logger) *Presence {
	return &Presence{
		registry:   registry,
		dispatcher: dispatcher,
		mirror:     mirror,
		logger:     logger,
	}
}

// Connect registers conn for userID and announces the user if this was
// their first connection.
func (p *Presence) Connect(userID string, conn Conn) bool {
	p.edges.Lock()
	if !p.registry.AddConnection(userID, conn) {
		p.edges.Unlock()
		return false
	}
	uid := normalizeID(userID)
	p.dispatcher.Broadcast(shared.EventUserOnline, uid)
	p.edges.Unlock()

	p.mirrorEdge(uid, true)
	return true
}

// Disconnect unregisters connID and announces the user if it was their last.
func (p *Presence) Disconnect(connID string) Removal {
	p.edges.Lock()
	removal := p.registry.RemoveConnection(connID)
	if removal.BecameOffline {
		p.dispatcher.Broadcast(shared.EventUserOffline, removal.UserID)
	}
	p.edges.Unlock()

	if removal.BecameOffline {
		p.mirrorEdge(removal.UserID, false)
	}
	return removal
}

func (p *Presence) IsOnline(userID string) bool {
	return p.registry.IsOnline(userID)
}

// Typing relays a typing (or stop-typing) signal to the receiver only.
func (p *Presence) Typing(senderID, receiverID string, typing bool) bool {
	event := shared.EventStopTyping
	if typing {
		event = shared.EventTyping
	}
	return p.dispatcher.Deliver(receiverID, event, shared.TypingSignal{SenderID: senderID})
}

func (p *Presence) mirrorEdge(userID string, online bool) {
	if p.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	var err error
	if online {
		err = p.mirror.MarkOnline(ctx, userID)
	} else {
		err = p.mirror.MarkOffline(ctx, userID)
	}
	if err != nil {
		p.logger.Warn("presence_mirror_failed", "user_id", userID, "online", online, "error", err)
	}
}
