package scrubber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsPath = "/ws"

	wsEventStateInit        = "state_init"
	wsEventValueChanged     = "value_changed"
	wsEventSpeedChanged     = "speed_changed"
	wsEventScrubbingChanged = "scrubbing_changed"

	wsSendBuffer      = 32
	wsBroadcastBuffer = 128

	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsEnvelope is the wire format of every message: {type, ts, data}
type wsEnvelope struct {
	Type string      `json:"type"`
	Ts   time.Time   `json:"ts"`
	Data interface{} `json:"data,omitempty"`
}

// wsStateSnapshot is sent to every client as soon as it connects
type wsStateSnapshot struct {
	Value     float64 `json:"value"`
	Speed     float64 `json:"speed"`
	Scrubbing bool    `json:"scrubbing"`
}

type wsValueData struct {
	Value float64 `json:"value"`
}

type wsSpeedData struct {
	Speed float64 `json:"speed"`
}

type wsScrubbingData struct {
	Scrubbing bool `json:"scrubbing"`
}

// StateBroadcaster pushes scrubbing notifications to websocket clients.
// Notifications never block the caller: slow clients are dropped instead
type StateBroadcaster struct {
	logger *zap.SugaredLogger
	addr   string

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	clientsLock sync.Mutex
	clients     map[*wsClient]struct{}

	stateLock sync.Mutex
	state     wsStateSnapshot

	upgrader websocket.Upgrader
	server   *http.Server
	cancel   context.CancelFunc
}

type wsClient struct {
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// NewStateBroadcaster creates a broadcaster that will listen on addr once started
func NewStateBroadcaster(addr string, initialValue float64, logger *zap.SugaredLogger) *StateBroadcaster {
	logger = logger.Named("broadcast")

	b := &StateBroadcaster{
		logger:     logger,
		addr:       addr,
		broadcast:  make(chan []byte, wsBroadcastBuffer),
		register:   make(chan *wsClient, 64),
		unregister: make(chan *wsClient, 64),
		clients:    make(map[*wsClient]struct{}),
		state: wsStateSnapshot{
			Value: initialValue,
			Speed: NormalSpeed,
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	logger.Debug("Created state broadcaster instance")

	return b
}

// Start begins listening for websocket clients and fanning out notifications
func (b *StateBroadcaster) Start() error {
	listener, err := net.Listen("tcp", b.addr)
	if err != nil {
		b.logger.Warnw("Failed to listen for websocket clients", "addr", b.addr, "error", err)
		return fmt.Errorf("listen on %s: %w", b.addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, func(w http.ResponseWriter, r *http.Request) {
		b.serveWs(ctx, w, r)
	})

	b.server = &http.Server{Handler: mux}

	go b.run(ctx)

	go func() {
		if err := b.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Warnw("Websocket server stopped unexpectedly", "error", err)
		}
	}()

	b.logger.Infow("Listening for websocket clients", "addr", listener.Addr(), "path", wsPath)

	return nil
}

// Stop disconnects every client and shuts the server down
func (b *StateBroadcaster) Stop() {
	if b.server == nil {
		return
	}

	b.logger.Debug("Stopping state broadcaster")
	b.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	if err := b.server.Shutdown(shutdownCtx); err != nil {
		b.logger.Warnw("Failed to shut down websocket server", "error", err)
	}

	b.server = nil
}

// SpeedChanged broadcasts the new scrubbing speed
func (b *StateBroadcaster) SpeedChanged(speed float64) {
	b.stateLock.Lock()
	b.state.Speed = speed
	b.stateLock.Unlock()

	b.publish(wsEventSpeedChanged, wsSpeedData{Speed: speed})
}

// ScrubbingStateChanged broadcasts the start or end of a gesture
func (b *StateBroadcaster) ScrubbingStateChanged(scrubbing bool) {
	b.stateLock.Lock()
	b.state.Scrubbing = scrubbing
	b.stateLock.Unlock()

	b.publish(wsEventScrubbingChanged, wsScrubbingData{Scrubbing: scrubbing})
}

// ValueChanged broadcasts the new value
func (b *StateBroadcaster) ValueChanged(value float64) {
	b.stateLock.Lock()
	b.state.Value = value
	b.stateLock.Unlock()

	b.publish(wsEventValueChanged, wsValueData{Value: value})
}

func (b *StateBroadcaster) snapshot() wsStateSnapshot {
	b.stateLock.Lock()
	defer b.stateLock.Unlock()

	return b.state
}

func (b *StateBroadcaster) publish(eventType string, data interface{}) {
	msg, err := encodeEnvelope(eventType, data)
	if err != nil {
		b.logger.Warnw("Failed to encode websocket message", "type", eventType, "error", err)
		return
	}

	select {
	case b.broadcast <- msg:
	default:
		b.logger.Warnw("Broadcast queue full, dropping message", "type", eventType)
	}
}

func encodeEnvelope(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(wsEnvelope{Type: eventType, Ts: time.Now().UTC(), Data: data})
}

// run owns the client set: registrations, removals and fan-out all happen here
func (b *StateBroadcaster) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.closeAllClients()
			return

		case c := <-b.register:
			b.clientsLock.Lock()
			b.clients[c] = struct{}{}
			count := len(b.clients)
			b.clientsLock.Unlock()

			b.logger.Infow("Websocket client connected", "remoteAddr", c.remoteAddr, "clients", count)

		case c := <-b.unregister:
			b.removeClient(c, "unregister")

		case msg := <-b.broadcast:
			var slow []*wsClient

			b.clientsLock.Lock()
			for c := range b.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			b.clientsLock.Unlock()

			for _, c := range slow {
				b.removeClient(c, "slow client")
			}
		}
	}
}

func (b *StateBroadcaster) removeClient(c *wsClient, reason string) {
	b.clientsLock.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
	}
	count := len(b.clients)
	b.clientsLock.Unlock()

	if !ok {
		return
	}

	if c.conn != nil {
		_ = c.conn.Close()
	}
	close(c.send)

	b.logger.Infow("Websocket client disconnected", "remoteAddr", c.remoteAddr, "reason", reason, "clients", count)
}

func (b *StateBroadcaster) closeAllClients() {
	b.clientsLock.Lock()
	defer b.clientsLock.Unlock()

	for c := range b.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
		delete(b.clients, c)
	}
}

func (b *StateBroadcaster) serveWs(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debugw("Failed to upgrade websocket connection", "remoteAddr", r.RemoteAddr, "error", err)
		return
	}

	c := &wsClient{
		conn:       conn,
		send:       make(chan []byte, wsSendBuffer),
		remoteAddr: r.RemoteAddr,
	}

	// queue the snapshot before registering, so it's always the first thing the client sees
	initMsg, err := encodeEnvelope(wsEventStateInit, b.snapshot())
	if err != nil {
		b.logger.Warnw("Failed to encode state snapshot", "error", err)
		_ = conn.Close()
		return
	}
	c.send <- initMsg

	b.register <- c

	go b.writePump(ctx, c)
	go b.readPump(c)
}

// writePump writes queued messages and keepalive pings until the client goes away
func (b *StateBroadcaster) writePump(ctx context.Context, c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				b.logger.Debugw("Websocket write failed", "remoteAddr", c.remoteAddr, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.logger.Debugw("Websocket ping failed", "remoteAddr", c.remoteAddr, "error", err)
				return
			}
		}
	}
}

// readPump discards anything clients send, it only exists to notice disconnects
func (b *StateBroadcaster) readPump(c *wsClient) {
	defer func() {
		b.unregister <- c
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
