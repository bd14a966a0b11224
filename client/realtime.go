package client

import (
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RealtimeEvent is one message pushed by the backend over the websocket
// channel: session changes, order status updates.
type RealtimeEvent struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type realtimeFrame struct {
	Topic string `json:"topic"`
	Event string `json:"event"`
}

// RealtimeClient multiplexes topic subscriptions over one websocket
// connection. The connection is dialed lazily on the first Subscribe; after
// a read failure it redials on its own while topics remain registered, and
// every registered topic's subscribe frame is replayed on each (re)dial.
type RealtimeClient struct {
	c *Client

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]map[int]func(RealtimeEvent)
	nextID   int
	closed   bool
}

// redialDelay spaces reconnect attempts after a dropped connection.
var redialDelay = time.Second

func newRealtimeClient(c *Client) *RealtimeClient {
	return &RealtimeClient{
		c:        c,
		handlers: map[string]map[int]func(RealtimeEvent){},
	}
}

func (r *RealtimeClient) endpoint() string {
	u, err := url.Parse(r.c.baseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	u.RawQuery = url.Values{"apikey": {r.c.anonKey}}.Encode()
	return u.String()
}

// Subscribe registers a handler for one topic and returns an unsubscribe
// func. Handlers run on the read loop goroutine and must not block.
func (r *RealtimeClient) Subscribe(topic string, fn func(RealtimeEvent)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = false
	if err := r.ensureConnLocked(); err != nil {
		return nil, err
	}

	first := len(r.handlers[topic]) == 0
	if r.handlers[topic] == nil {
		r.handlers[topic] = map[int]func(RealtimeEvent){}
	}
	id := r.nextID
	r.nextID++
	r.handlers[topic][id] = fn

	if first {
		if err := r.conn.WriteJSON(realtimeFrame{Topic: topic, Event: "subscribe"}); err != nil {
			delete(r.handlers[topic], id)
			return nil, err
		}
	}

	return func() { r.unsubscribe(topic, id) }, nil
}

// ensureConnLocked dials if needed and replays the subscribe frame for every
// already-registered topic, so a redial picks up where the dropped
// connection left off. Caller holds r.mu.
func (r *RealtimeClient) ensureConnLocked() error {
	if r.conn != nil {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.Dial(r.endpoint(), nil)
	if err != nil {
		return err
	}
	for topic := range r.handlers {
		if err := conn.WriteJSON(realtimeFrame{Topic: topic, Event: "subscribe"}); err != nil {
			conn.Close()
			return err
		}
	}
	r.conn = conn
	go r.readLoop(conn)
	return nil
}

func (r *RealtimeClient) unsubscribe(topic string, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers[topic], id)
	if len(r.handlers[topic]) == 0 {
		delete(r.handlers, topic)
		if r.conn != nil {
			if err := r.conn.WriteJSON(realtimeFrame{Topic: topic, Event: "unsubscribe"}); err != nil {
				r.c.log.Warn("realtime unsubscribe frame not sent", "topic", topic, "err", err)
			}
		}
	}
}

// Close tears down the connection and stops reconnecting. Handlers stay
// registered and take effect again if a later Subscribe redials.
func (r *RealtimeClient) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

func (r *RealtimeClient) readLoop(conn *websocket.Conn) {
	for {
		var ev RealtimeEvent
		if err := conn.ReadJSON(&ev); err != nil {
			r.c.log.Warn("realtime channel closed", "err", err)
			r.mu.Lock()
			if r.conn == conn {
				r.conn = nil
			}
			retry := !r.closed && len(r.handlers) > 0
			r.mu.Unlock()
			if retry {
				time.Sleep(redialDelay)
				r.redial()
			}
			return
		}
		r.dispatch(ev)
	}
}

// redial restores a dropped connection while subscriptions are live. A
// failed attempt is retried by the next read-loop exit or Subscribe.
func (r *RealtimeClient) redial() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.conn != nil || len(r.handlers) == 0 {
		return
	}
	if err := r.ensureConnLocked(); err != nil {
		r.c.log.Warn("realtime redial failed", "err", err)
	}
}

func (r *RealtimeClient) dispatch(ev RealtimeEvent) {
	r.mu.Lock()
	fns := make([]func(RealtimeEvent), 0, len(r.handlers[ev.Topic]))
	for _, fn := range r.handlers[ev.Topic] {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
