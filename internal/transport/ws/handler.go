package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/events"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/host"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

const (
	writeWait    = 5 * time.Second
	maxFrameSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Renderer runs on localhost
	},
}

// inbound is a frame sent by a renderer.
type inbound struct {
	Type     string    `json:"type"`
	WidgetID widget.ID `json:"widget_id"`
	Event    string    `json:"event_name"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Handler manages renderer connections and implements host.Frontend.
type Handler struct {
	queue   *events.Queue
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	replay  func() []*host.RenderPayload
}

// Option configures a Handler.
type Option func(*Handler)

func WithMetrics(m *monitoring.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l.Named("ws")
		}
	}
}

// NewHandler creates a handler that queues renderer events on queue.
func NewHandler(queue *events.Queue, opts ...Option) *Handler {
	h := &Handler{
		queue:   queue,
		logger:  zap.NewNop(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetReplay sets the source of payloads sent to a renderer when it
// connects, normally host.RenderedAll.
func (h *Handler) SetReplay(fn func() []*host.RenderPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replay = fn
}

// Clients returns the number of connected renderers.
func (h *Handler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxFrameSize)

	cl := &client{conn: conn}
	replay := h.add(cl)
	defer h.remove(cl)

	h.send(cl, "system", map[string]interface{}{"message": "connected"})
	for _, p := range replay {
		h.send(cl, "render", map[string]interface{}{"payload": p})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.sendError(cl, "malformed message")
			continue
		}
		h.record("in", msg.Type)

		switch msg.Type {
		case "event":
			ev := events.Event{Widget: msg.WidgetID, Name: msg.Event}
			if err := h.queue.Push(ev); err != nil {
				h.sendError(cl, err.Error())
			}
		case "ping":
			h.send(cl, "pong", nil)
		default:
			h.sendError(cl, "unknown message type")
		}
	}
}

func (h *Handler) add(cl *client) []*host.RenderPayload {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	replay := h.replay
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	h.logger.Debug("renderer connected", zap.String("remote", cl.conn.RemoteAddr().String()))
	if replay == nil {
		return nil
	}
	return replay()
}

func (h *Handler) remove(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()

	if ok && h.metrics != nil {
		h.metrics.DecWSConnections()
	}
	cl.conn.Close()
}

// Close disconnects every renderer.
func (h *Handler) Close() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		cl.mu.Lock()
		_ = cl.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "host shutting down"),
			time.Now().Add(writeWait))
		cl.mu.Unlock()
		h.remove(cl)
	}
}

func frame(msgType string, fields map[string]interface{}) ([]byte, error) {
	msg := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		msg[k] = v
	}
	msg["type"] = msgType
	msg["timestamp"] = time.Now().Unix()
	return sonic.Marshal(msg)
}

func (h *Handler) send(cl *client, msgType string, fields map[string]interface{}) {
	data, err := frame(msgType, fields)
	if err != nil {
		h.logger.Error("failed to encode message", zap.String("type", msgType), zap.Error(err))
		return
	}
	if err := cl.write(data); err != nil {
		h.logger.Debug("write failed", zap.String("type", msgType), zap.Error(err))
		return
	}
	h.record("out", msgType)
}

func (h *Handler) sendError(cl *client, message string) {
	h.send(cl, "error", map[string]interface{}{"message": message})
}

// broadcast sends one frame to every renderer. A renderer that cannot be
// written to is dropped; the action itself still succeeds.
func (h *Handler) broadcast(msgType string, fields map[string]interface{}) error {
	data, err := frame(msgType, fields)
	if err != nil {
		return err
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		if err := cl.write(data); err != nil {
			h.logger.Warn("dropping renderer", zap.String("type", msgType), zap.Error(err))
			h.remove(cl)
			continue
		}
		h.record("out", msgType)
	}
	return nil
}

func (h *Handler) record(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}

func (h *Handler) Render(_ context.Context, p *host.RenderPayload) error {
	return h.broadcast("render", map[string]interface{}{"payload": p})
}

func (h *Handler) ShowPluginErrorView(_ context.Context, entrypoint id.EntrypointID, loc widget.Location) error {
	return h.broadcast("plugin_error_view", map[string]interface{}{
		"entrypoint": entrypoint,
		"location":   loc,
	})
}

func (h *Handler) ShowPreferenceRequiredView(_ context.Context, entrypoint id.EntrypointID, pluginRequired, entrypointRequired bool) error {
	return h.broadcast("preferences_required", map[string]interface{}{
		"entrypoint":          entrypoint,
		"plugin_required":     pluginRequired,
		"entrypoint_required": entrypointRequired,
	})
}

func (h *Handler) ClearInlineView(context.Context) error {
	return h.broadcast("clear_inline_view", nil)
}

func (h *Handler) ShowHUD(_ context.Context, text string) error {
	return h.broadcast("hud", map[string]interface{}{"text": text})
}

func (h *Handler) HideWindow(context.Context) error {
	return h.broadcast("hide_window", nil)
}

func (h *Handler) UpdateLoadingBar(_ context.Context, entrypoint id.EntrypointID, visible bool) error {
	return h.broadcast("loading_bar", map[string]interface{}{
		"entrypoint": entrypoint,
		"visible":    visible,
	})
}

var _ host.Frontend = (*Handler)(nil)
