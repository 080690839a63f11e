package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsMessage is the wire shape shared with observers:
// {type: progress|complete|error|ping|pong, data?}.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	// The backend binds to loopback; origin checks add nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHandler upgrades the connection, attaches it to the progress hub as an
// observer, and pumps events until either side goes away. A JSON ping from
// the client is answered with a pong on the same connection; the server
// also pings on an interval so half-dead connections get noticed.
func wsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		obs := cfg.Hub.Attach()
		if cfg.Metrics != nil {
			cfg.Metrics.ObserversActive.Inc()
		}
		cfg.Logger.Info("observer connected", "remote", conn.RemoteAddr().String())

		outbound := make(chan wsMessage, 16)
		done := make(chan struct{})

		pingInterval := cfg.PingInterval
		if pingInterval <= 0 {
			pingInterval = 30 * time.Second
		}

		// Single writer goroutine; gorilla connections allow only one
		// concurrent writer.
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case ev, ok := <-obs.Events():
					if !ok {
						// Hub shut down; tell the observer and stop.
						conn.WriteMessage(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
						conn.Close()
						return
					}
					if err := conn.WriteJSON(wsMessage{Type: string(ev.Type), Data: ev.Data}); err != nil {
						return
					}
				case msg := <-outbound:
					if err := conn.WriteJSON(msg); err != nil {
						return
					}
				case <-ticker.C:
					if err := conn.WriteJSON(wsMessage{Type: "ping"}); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				break
			}
			switch msg.Type {
			case "ping":
				select {
				case outbound <- wsMessage{Type: "pong"}:
				default:
				}
			case "pong":
				// Heartbeat reply; nothing to do.
			}
		}

		close(done)
		cfg.Hub.Detach(obs)
		conn.Close()
		if cfg.Metrics != nil {
			cfg.Metrics.ObserversActive.Dec()
		}
		cfg.Logger.Info("observer disconnected", "remote", conn.RemoteAddr().String())
	}
}
