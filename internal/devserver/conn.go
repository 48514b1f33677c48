package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"leafchat/internal/domain"
	"leafchat/internal/pkg/logx"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// conn is one websocket client. username is only touched by its read pump.
type conn struct {
	hub      *Hub
	ws       *websocket.Conn
	send     chan []byte
	username string
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Warn("devserver upgrade failed", "error", err.Error())
		return
	}
	c := &conn{hub: s.hub, ws: ws, send: make(chan []byte, 256)}
	if !s.hub.enter(c) {
		_ = ws.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// queue sends to this client only; a full buffer drops the frame.
func (c *conn) queue(payload []byte) {
	c.hub.mutex.RLock()
	defer c.hub.mutex.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *conn) readPump() {
	defer func() {
		c.hub.leave(c)
		c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMsgSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		var env domain.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			logx.Debug("devserver dropped malformed frame", "error", err.Error())
			continue
		}
		c.hub.handle(c, env)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
