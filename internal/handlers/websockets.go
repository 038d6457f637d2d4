package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"imelt/internal/metrics"
	"imelt/internal/models"
	"imelt/internal/service"
	"imelt/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000 // 10s in ms
	inboxSize        = 8
)

// Client message types.
const (
	msgPing      = "ping"
	msgSubscribe = "subscribe"
)

// clientMessage is a frame sent by the browser.
type clientMessage struct {
	Type   string `json:"type"`
	HeatID int    `json:"heatId,omitempty"`
}

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSession is the writer side of one connection. Only the connection goroutine touches it.
type wsSession struct {
	h           *Handler
	conn        *websocket.Conn
	heatID      int
	sub         *stream.Subscriber
	lastVersion uint64
}

// wsConnect streams heat state. With a hub, frames are pushed as the simulator publishes them.
// Without one (tests, embedded use) the session polls Status every ?interval and sends only newer versions.
func (h *Handler) wsConnect(c *gin.Context) {
	heatID := 0
	if raw := c.Query("heatId"); raw != "" {
		id, err := parsePositiveInt("heatId", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		heatID = id
	} else if cur, ok := h.services.Current(); ok {
		heatID = cur.HeatID
	}
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()
	metrics.WSConnected(true)
	defer metrics.WSConnected(false)

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine handles client frames and detects disconnects.
	done := make(chan struct{})
	inbox := make(chan clientMessage, inboxSize)
	go h.startReader(conn, inbox, done)

	ws := &wsSession{h: h, conn: conn}
	ws.subscribe(heatID)
	defer ws.unsubscribe()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	// Without a hub the connection falls back to polling the simulator.
	var poll <-chan time.Time
	if h.hub == nil {
		t := time.NewTicker(interval)
		defer t.Stop()
		poll = t.C
	}

	// Reconnecting clients get the latest snapshot right away.
	if err := ws.sendSnapshot(); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	// Writer/select loop.
	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case f, ok := <-ws.frames():
			if !ok {
				// hub closed
				return
			}
			if err := ws.forward(f); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err, "heat_id", ws.heatID)
				}
				return
			}
		case <-poll:
			if err := ws.sendSnapshot(); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err, "heat_id", ws.heatID)
				}
				return
			}
		case msg := <-inbox:
			if err := ws.handle(msg); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err, "heat_id", ws.heatID)
				}
				return
			}
		}
	}
}

// Helper: parseInterval reads the hub-less poll period from ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	interval := defaultInterval

	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return interval
}

// Helper: startReader decodes client frames into inbox and detects closure.
func (h *Handler) startReader(conn *websocket.Conn, inbox chan<- clientMessage, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			msg = clientMessage{}
		}
		select {
		case inbox <- msg:
		default:
			// writer is saturated; drop the control frame
		}
	}
}

func (ws *wsSession) frames() <-chan stream.Frame {
	if ws.sub == nil {
		return nil
	}
	return ws.sub.Frames()
}

func (ws *wsSession) subscribe(heatID int) {
	ws.unsubscribe()
	ws.heatID = heatID
	ws.lastVersion = 0
	if ws.h.hub != nil && heatID > 0 {
		ws.sub = ws.h.hub.Subscribe(heatID)
	}
}

func (ws *wsSession) unsubscribe() {
	if ws.sub != nil {
		ws.h.hub.Unsubscribe(ws.sub)
		ws.sub = nil
	}
}

func (ws *wsSession) write(f stream.Frame) error {
	_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.conn.WriteJSON(f)
}

// sendSnapshot writes the simulator's current state. An unknown heat is reported, not fatal.
func (ws *wsSession) sendSnapshot() error {
	if ws.heatID == 0 {
		return ws.write(stream.Frame{Type: stream.FrameError, Error: service.ErrNoActiveHeat.Error()})
	}
	st, err := ws.h.services.Status(ws.heatID)
	if errors.Is(err, service.ErrNotFound) {
		return ws.write(stream.Frame{Type: stream.FrameError, HeatID: ws.heatID, Error: err.Error()})
	}
	if err != nil {
		if ws.h.log != nil {
			ws.h.log.Errorw("ws_get_state_failed", "err", err, "heat_id", ws.heatID)
		}
		return err
	}
	ws.lastVersion = st.Version
	return ws.write(stream.Frame{Type: stream.FrameState, HeatID: st.HeatID, Payload: st})
}

// forward relays a hub frame, skipping snapshots already superseded on this connection.
func (ws *wsSession) forward(f stream.Frame) error {
	if f.Type == stream.FrameState {
		st, ok := f.Payload.(models.HeatState)
		if ok && ws.lastVersion > 0 && st.Version <= ws.lastVersion {
			return nil
		}
		if ok {
			ws.lastVersion = st.Version
		}
	}
	return ws.write(f)
}

func (ws *wsSession) handle(msg clientMessage) error {
	switch msg.Type {
	case msgPing:
		return ws.write(stream.Frame{Type: stream.FramePong, HeatID: ws.heatID})
	case msgSubscribe:
		if msg.HeatID <= 0 {
			return ws.write(stream.Frame{Type: stream.FrameError, Error: "subscribe requires a positive heatId"})
		}
		ws.subscribe(msg.HeatID)
		if err := ws.write(stream.Frame{Type: stream.FrameSubscribed, HeatID: msg.HeatID}); err != nil {
			return err
		}
		return ws.sendSnapshot()
	default:
		return ws.write(stream.Frame{Type: stream.FrameError, HeatID: ws.heatID, Error: "unknown message type"})
	}
}
