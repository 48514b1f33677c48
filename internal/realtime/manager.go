// Package realtime owns the websocket connection to the chat channel and
// fans inbound events out to subscribers in arrival order.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"leafchat/internal/domain"
	"leafchat/internal/pkg/errs"
	"leafchat/internal/pkg/logx"
)

const (
	inboundTopic = "channel.inbound"
	metaEvent    = "event"

	DefaultReconnectDelay = 2 * time.Second
	writeWait             = 10 * time.Second
	maxFrameSize          = 1 << 20
	subscriberBuffer      = 64
)

// State of the connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateJoined
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Event is one inbound frame or a synthetic lifecycle notification.
type Event struct {
	Name string
	Data json.RawMessage
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return errs.NewError(errs.ErrBadResponse, e.Name)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errs.Wrap(errs.ErrBadResponse, err, e.Name)
	}
	return nil
}

// Config configures a Manager.
type Config struct {
	// URL is the ws:// or wss:// address of the channel.
	URL string
	// Jar supplies the session cookie for the handshake.
	Jar    http.CookieJar
	Header http.Header

	AutoReconnect  bool
	ReconnectDelay time.Duration

	HandshakeTimeout time.Duration
}

// Manager is safe for concurrent use.
type Manager struct {
	cfg     Config
	dialer  *websocket.Dialer
	bus     *gochannel.GoChannel
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	username string
	// gen increments on every connect attempt and intentional disconnect, so
	// a read loop can tell whether its connection is still current.
	gen uint64

	writeMu sync.Mutex
}

// New returns an idle manager.
func New(cfg Config) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			Jar:              cfg.Jar,
		},
		bus: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, watermill.NopLogger{}),
		limiter: rate.NewLimiter(rate.Every(cfg.ReconnectDelay), 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SocketURL turns an http(s) server root and a path into a ws(s) URL.
func SocketURL(baseURL, path string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", errs.Wrap(errs.ErrInvalidParams, err, "socket url")
	}
	switch parsed.Scheme {
	case "http", "ws":
		parsed.Scheme = "ws"
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		return "", errs.NewError(errs.ErrInvalidParams, "unsupported scheme "+parsed.Scheme)
	}
	if path == "" {
		path = "/socket"
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/" + strings.TrimLeft(path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Username returns the name announced on the last Connect.
func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username
}

// Connect opens the channel and announces username. It is latched: while a
// connection is being opened or is open, further calls return nil at once.
func (m *Manager) Connect(ctx context.Context, username string) error {
	m.mu.Lock()
	switch m.state {
	case StateConnecting, StateJoined:
		m.mu.Unlock()
		return nil
	case StateClosed:
		m.mu.Unlock()
		return errs.NewError(errs.ErrChannelClosed)
	}
	if username == "" {
		m.mu.Unlock()
		return errs.NewError(errs.ErrNotLoggedIn)
	}
	m.state = StateConnecting
	m.username = username
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	ws, _, err := m.dialer.DialContext(ctx, m.cfg.URL, m.cfg.Header)
	if err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		logx.Warn("realtime dial failed", "url", m.cfg.URL, "kind", errs.KindTransport.String(), "error", err.Error())
		return errs.Wrap(errs.ErrNetwork, err, "connect")
	}
	ws.SetReadLimit(maxFrameSize)

	m.mu.Lock()
	if m.gen != gen {
		// Disconnect or Close won the race
		m.mu.Unlock()
		_ = ws.Close()
		return nil
	}
	m.conn = ws
	m.state = StateJoined
	m.mu.Unlock()

	logx.Info("realtime joined", "url", m.cfg.URL, "username", username)
	m.publish(domain.EventConnect, nil)
	go m.readLoop(ws, gen)

	if err := m.Emit(ctx, domain.EventUserJoined, username); err != nil {
		return err
	}
	return m.Emit(ctx, domain.EventRequestHistory, nil)
}

// Disconnect closes the connection and returns to Idle.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	ws := m.conn
	wasJoined := m.state == StateJoined
	m.conn = nil
	m.state = StateIdle
	m.gen++
	m.mu.Unlock()

	if ws != nil {
		m.closeConn(ws)
	}
	if wasJoined {
		m.publish(domain.EventDisconnect, nil)
	}
}

// Reconnect disconnects and connects again as the last announced user.
func (m *Manager) Reconnect(ctx context.Context) error {
	username := m.Username()
	if username == "" {
		return errs.NewError(errs.ErrNotLoggedIn)
	}
	m.Disconnect()
	return m.Connect(ctx, username)
}

// Emit writes one frame. Errors are logged and returned; nothing is retried.
func (m *Manager) Emit(ctx context.Context, event string, data any) error {
	m.mu.Lock()
	ws := m.conn
	joined := m.state == StateJoined
	m.mu.Unlock()
	if !joined || ws == nil {
		return errs.NewError(errs.ErrChannelNotConnected)
	}

	payload, err := domain.NewEnvelope(event, data)
	if err != nil {
		return errs.Wrap(errs.ErrInvalidParams, err, event)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = ws.SetWriteDeadline(deadline)
	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		logx.Warn("realtime emit failed", "event", event, "kind", errs.KindTransport.String(), "error", err.Error())
		return errs.Wrap(errs.ErrNetwork, err, "emit "+event)
	}
	logx.Debug("realtime emit", "event", event)
	return nil
}

// Subscribe delivers inbound events whose name is in events (all events when
// empty) in arrival order. The channel closes when ctx is cancelled or the
// manager is closed.
func (m *Manager) Subscribe(ctx context.Context, events ...string) (<-chan Event, error) {
	msgs, err := m.bus.Subscribe(ctx, inboundTopic)
	if err != nil {
		return nil, errs.Wrap(errs.ErrChannelClosed, err)
	}
	want := make(map[string]struct{}, len(events))
	for _, e := range events {
		want[e] = struct{}{}
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			// acking releases the publisher; order is kept because this
			// goroutine handles one message at a time
			msg.Ack()
			name := msg.Metadata.Get(metaEvent)
			if _, ok := want[name]; len(want) > 0 && !ok {
				continue
			}
			select {
			case out <- Event{Name: name, Data: json.RawMessage(msg.Payload)}:
			case <-ctx.Done():
				return
			case <-m.ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close disconnects for good. Subscriber channels are closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	ws := m.conn
	m.conn = nil
	m.state = StateClosed
	m.gen++
	m.mu.Unlock()

	m.cancel()
	if ws != nil {
		m.closeConn(ws)
	}
	return m.bus.Close()
}

func (m *Manager) closeConn(ws *websocket.Conn) {
	m.writeMu.Lock()
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	m.writeMu.Unlock()
	_ = ws.Close()
}

func (m *Manager) publish(event string, data json.RawMessage) {
	msg := message.NewMessage(watermill.NewUUID(), message.Payload(data))
	msg.Metadata.Set(metaEvent, event)
	if err := m.bus.Publish(inboundTopic, msg); err != nil {
		logx.Debug("realtime publish dropped", "event", event, "error", err.Error())
	}
}

func (m *Manager) readLoop(ws *websocket.Conn, gen uint64) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			m.dropped(gen, err)
			return
		}
		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			logx.Debug("realtime ignored malformed frame", "size", len(data))
			continue
		}
		m.publish(env.Event, env.Data)
	}
}

// dropped handles the end of a read loop. Intentional disconnects bumped gen
// already and are ignored here.
func (m *Manager) dropped(gen uint64, cause error) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateJoined {
		m.mu.Unlock()
		return
	}
	ws := m.conn
	m.conn = nil
	m.state = StateDisconnected
	username := m.username
	m.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
	logx.Warn("realtime connection lost", "kind", errs.KindTransport.String(), "error", cause.Error())
	m.publish(domain.EventDisconnect, nil)

	if m.cfg.AutoReconnect {
		go m.reconnectLoop(username)
	}
}

func (m *Manager) reconnectLoop(username string) {
	for {
		if err := m.limiter.Wait(m.ctx); err != nil {
			return
		}
		if m.State() != StateDisconnected {
			return
		}
		err := m.Connect(m.ctx, username)
		if err == nil {
			return
		}
		logx.Debug("realtime reconnect attempt failed", "error", err.Error())
	}
}
