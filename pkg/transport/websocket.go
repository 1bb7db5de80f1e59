package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/protocol"
)

// OriginAllowed reports whether a page at origin may open a connection to
// requestHost.
func (c *Config) OriginAllowed(origin, requestHost string) bool {
	if c.InsecureDevMode {
		return true
	}

	// No Origin header means a non-browser or same-origin client.
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}
	if originURL.Host == requestHost {
		return true
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if allowedURL, err := url.Parse(allowed); err == nil && allowedURL.Host != "" && allowedURL.Host == originURL.Host {
			return true
		}
	}
	return false
}

// WebSocketConn is a server-side websocket connection.
type WebSocketConn struct {
	*baseConn
	conn   *websocket.Conn
	codec  protocol.Codec
	config *Config
	logger logging.Logger
}

func newWebSocketConn(conn *websocket.Conn, codec protocol.Codec, cfg *Config, logger logging.Logger) *WebSocketConn {
	c := &WebSocketConn{
		baseConn: newBaseConn(cfg),
		conn:     conn,
		codec:    codec,
		config:   cfg,
		logger:   logger,
	}
	c.logger = logger.With(logging.String("conn", c.id))
	conn.SetReadLimit(cfg.MaxMessageSize)
	return c
}

func (c *WebSocketConn) start() {
	go c.readLoop()
	go c.writeLoop()
	go c.pingLoop()
}

// Close closes the websocket with a normal closure.
func (c *WebSocketConn) Close() error {
	return c.closeWith(websocket.StatusNormalClosure, "closing")
}

func (c *WebSocketConn) closeWith(code websocket.StatusCode, reason string) error {
	c.shutdown()
	return c.conn.Close(code, reason)
}

func (c *WebSocketConn) readLoop() {
	for {
		typ, data, err := c.conn.Read(context.Background())
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.logger.Debug("websocket read ended", logging.Err(err))
			}
			c.shutdown()
			return
		}

		if (typ == websocket.MessageBinary) != c.codec.Binary() {
			c.logger.Warn("unexpected frame type", logging.String("type", typ.String()))
			continue
		}

		msg, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Warn("dropping invalid message", logging.Err(err))
			continue
		}

		if err := c.push(msg); err != nil {
			return
		}
	}
}

func (c *WebSocketConn) writeLoop() {
	typ := websocket.MessageText
	if c.codec.Binary() {
		typ = websocket.MessageBinary
	}

	for {
		select {
		case msg := <-c.sendCh:
			data, err := c.codec.Encode(msg)
			if err != nil {
				c.logger.Error("encode message", logging.String("event", msg.Event), logging.Err(err))
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.config.WriteTimeout)
			err = c.conn.Write(ctx, typ, data)
			cancel()
			if err != nil {
				c.logger.Debug("websocket write failed", logging.Err(err))
				c.shutdown()
				return
			}

		case <-c.closeCh:
			return
		}
	}
}

func (c *WebSocketConn) pingLoop() {
	if c.config.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.ReadTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.logger.Debug("ping failed", logging.Err(err))
				_ = c.closeWith(websocket.StatusPolicyViolation, "ping timeout")
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// Handler upgrades HTTP requests and runs one session per connection.
type Handler struct {
	config  *Config
	codec   protocol.Codec
	logger  logging.Logger
	session SessionFunc
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithConfig sets the transport configuration.
func WithConfig(cfg *Config) HandlerOption {
	return func(h *Handler) {
		if cfg != nil {
			h.config = cfg
		}
	}
}

// WithCodec sets the wire codec used when a client does not request one
// through the websocket subprotocol. JSON is the default.
func WithCodec(codec protocol.Codec) HandlerOption {
	return func(h *Handler) {
		if codec != nil {
			h.codec = codec
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logging.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a websocket handler running session for each client.
func NewHandler(session SessionFunc, opts ...HandlerOption) *Handler {
	h := &Handler{
		config:  DefaultConfig(),
		codec:   protocol.NewJSONCodec(),
		logger:  logging.NopLogger{},
		session: session,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// subprotocols lists the codec names a client may request, the configured
// codec first so it wins when a client offers several.
func (h *Handler) subprotocols() []string {
	names := []string{h.codec.Name()}
	for _, name := range protocol.CodecNames() {
		if name != h.codec.Name() {
			names = append(names, name)
		}
	}
	return names
}

// negotiate picks the codec named by the accepted subprotocol. Clients that
// request none get the configured codec.
func (h *Handler) negotiate(ws *websocket.Conn) protocol.Codec {
	name := ws.Subprotocol()
	if name == "" || name == h.codec.Name() {
		return h.codec
	}
	codec, err := protocol.CodecByName(name)
	if err != nil {
		return h.codec
	}
	return codec
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !h.config.OriginAllowed(origin, r.Host) {
		h.logger.Warn("websocket rejected", logging.String("origin", origin), logging.Err(ErrOriginNotAllowed))
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return
	}

	// The origin was validated above.
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		Subprotocols:       h.subprotocols(),
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", logging.Err(fmt.Errorf("accept websocket: %w", err)))
		return
	}

	conn := newWebSocketConn(ws, h.negotiate(ws), h.config, h.logger)
	conn.start()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go func() {
		select {
		case <-conn.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	conn.logger.Debug("session started", logging.String("remote", r.RemoteAddr))
	if err := h.session(ctx, conn); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrConnectionClosed) {
		conn.logger.Error("session failed", logging.Err(err))
		_ = conn.closeWith(websocket.StatusInternalError, "session failed")
		return
	}
	_ = conn.Close()
}
