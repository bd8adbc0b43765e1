package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hyprpier/hyprpier/internal/api"
	"github.com/hyprpier/hyprpier/internal/eventbus"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// The control socket is local-only, so cross-origin checks do not apply.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEvents upgrades the connection and streams daemon events until
// the client disconnects or the bus shuts down.
func (s *APIServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusNotImplemented, "event stream unavailable")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[APIServer] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	triggers := s.bus.Subscribe(eventbus.TopicHotplugTrigger)
	defer triggers.Close()
	states := s.bus.Subscribe(eventbus.TopicDaemonState)
	defer states.Close()
	applied := s.bus.Subscribe(eventbus.TopicProfileApplied)
	defer applied.Close()

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice closes and process control frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case env, ok := <-triggers.C():
			if !ok || !s.writeEvent(conn, env) {
				return
			}
		case env, ok := <-states.C():
			if !ok || !s.writeEvent(conn, env) {
				return
			}
		case env, ok := <-applied.C():
			if !ok || !s.writeEvent(conn, env) {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *APIServer) writeEvent(conn *websocket.Conn, env eventbus.Envelope) bool {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		log.Printf("[APIServer] failed to encode event payload for %s: %v", env.Topic, err)
		return true
	}

	event := api.Event{
		Topic:     string(env.Topic),
		Timestamp: env.Timestamp,
		Source:    string(env.Source),
		Payload:   payload,
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(event); err != nil {
		return false
	}
	return true
}
