package clienttest

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// rtConn is one live push connection and the topics it subscribed to.
type rtConn struct {
	wsMu   sync.Mutex
	ws     *websocket.Conn
	topics map[string]bool
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &rtConn{ws: ws, topics: map[string]bool{}}
	s.mu.Lock()
	s.rtConns[c] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.rtConns, c)
		s.mu.Unlock()
		ws.Close()
	}()
	for {
		var f struct {
			Topic string `json:"topic"`
			Event string `json:"event"`
		}
		if err := ws.ReadJSON(&f); err != nil {
			return
		}
		s.mu.Lock()
		switch f.Event {
		case "subscribe":
			c.topics[f.Topic] = true
		case "unsubscribe":
			delete(c.topics, f.Topic)
		}
		s.mu.Unlock()
	}
}

// Subscribed reports whether any live connection subscribed to topic.
func (s *Server) Subscribed(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.rtConns {
		if c.topics[topic] {
			return true
		}
	}
	return false
}

// Push delivers one event to every connection subscribed to topic and
// reports how many received it.
func (s *Server) Push(topic, event string, payload any) int {
	raw, _ := json.Marshal(payload)
	s.mu.Lock()
	var conns []*rtConn
	for c := range s.rtConns {
		if c.topics[topic] {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.wsMu.Lock()
		c.ws.WriteJSON(map[string]any{"topic": topic, "event": event, "payload": json.RawMessage(raw)})
		c.wsMu.Unlock()
	}
	return len(conns)
}

// DropRealtime severs every live push connection, as a network blip would.
func (s *Server) DropRealtime() {
	s.mu.Lock()
	conns := make([]*rtConn, 0, len(s.rtConns))
	for c := range s.rtConns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.ws.Close()
	}
}
