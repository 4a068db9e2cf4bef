// ABOUTME: Gateway bridges EventBus subscriptions to live websocket connections.
// ABOUTME: Pure fan-out: no state mutation, no tenant filtering in the core (spec §4.7).
package observer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/fluxqueue/fluxqueue/internal/eventbus"
)

// Gateway manages a set of live websocket connections, each backed by
// its own EventBus subscription. On connection loss the subscription is
// released. No filtering happens at this layer — an operator who wants
// tenant-scoped delivery applies it at this boundary, not in the core.
//
// Gateway owns a context tied to process lifetime, not to any single
// request: connections it serves must keep streaming for as long as the
// client stays connected, well past the HTTP handler that upgraded them
// returning.
type Gateway struct {
	bus    *eventbus.Bus
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[*websocket.Conn]*eventbus.Subscription
}

// NewGateway returns a Gateway fed by bus.
func NewGateway(bus *eventbus.Bus) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		bus:    bus,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*websocket.Conn]*eventbus.Subscription),
	}
}

// AddConn subscribes conn to the bus and starts pumping events to it.
// It spawns a read-pump goroutine solely to detect client disconnects
// (the protocol has no client-to-server messages); when the connection
// closes, the subscription is released.
//
// conn must already be upgraded; the caller's request context has no
// bearing on how long this connection is served, so AddConn does not
// take one — net/http cancels it the instant the upgrading handler
// returns, which would tear the pump down almost immediately.
func (g *Gateway) AddConn(conn *websocket.Conn) {
	sub := g.bus.Subscribe()

	g.mu.Lock()
	g.conns[conn] = sub
	g.mu.Unlock()

	slog.Info("observer connected", "total_observers", g.ConnCount())

	go g.writePump(conn, sub)
	go g.readPump(conn)
}

func (g *Gateway) writePump(conn *websocket.Conn, sub *eventbus.Subscription) {
	defer g.removeConn(conn)
	for {
		select {
		case <-g.ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				slog.Warn("observer write failed", "error", err)
				return
			}
		}
	}
}

// readPump's sole purpose is detecting client disconnects (the protocol
// has no client-to-server messages); closing here unblocks writePump's
// next WriteJSON instead of leaving it to linger until a stale write.
func (g *Gateway) readPump(conn *websocket.Conn) {
	defer g.removeConn(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) removeConn(conn *websocket.Conn) {
	g.mu.Lock()
	sub, ok := g.conns[conn]
	if ok {
		delete(g.conns, conn)
	}
	g.mu.Unlock()

	if ok {
		sub.Close()
	}
	conn.Close()
	slog.Info("observer disconnected", "total_observers", g.ConnCount())
}

// ConnCount returns the number of live observer connections, for metrics.
func (g *Gateway) ConnCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Close tears down every live connection's delivery loop. Meant to be
// called once, at process shutdown.
func (g *Gateway) Close() {
	g.cancel()
}
