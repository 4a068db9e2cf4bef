// ABOUTME: Websocket upgrade handler for GET /api/v1/events.
// ABOUTME: A chi route, not huma — this is a protocol upgrade, not a JSON API call.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Observers are CLI/service clients, not browser pages, so any
	// origin is accepted; auth is the Bearer credential, not origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventsHandler upgrades the connection and hands it to the observer
// gateway, which fans out every published lifecycle event to it.
func (srv *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "events: websocket upgrade failed", "error", err)
		return
	}
	srv.gateway.AddConn(conn)
}
