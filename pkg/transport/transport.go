// Package transport carries protocol messages between a browser and a live
// session. WebSocket is the only network transport; MemoryConn serves tests
// and in-process hosts.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielmiguelok/formwizard/pkg/protocol"
)

// Common transport errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendTimeout      = errors.New("send timeout")
	ErrOriginNotAllowed = errors.New("origin not allowed")
)

// Conn is one client connection as seen by a session.
type Conn interface {
	// ID is unique per connection.
	ID() string

	// Send queues a message for the client.
	Send(msg *protocol.Message) error

	// Receive delivers decoded client messages. It is never closed; use Done.
	Receive() <-chan *protocol.Message

	// Done is closed once the connection is gone.
	Done() <-chan struct{}

	Close() error
}

// SessionFunc runs a session for the lifetime of conn. The connection is
// closed when it returns.
type SessionFunc func(ctx context.Context, conn Conn) error

// Config holds transport configuration.
type Config struct {
	// ReadTimeout bounds the wait for a pong after each ping.
	ReadTimeout time.Duration

	// WriteTimeout bounds a single frame write and a blocked Send.
	WriteTimeout time.Duration

	// PingInterval is how often the server pings the client.
	PingInterval time.Duration

	// MaxMessageSize is the largest accepted client frame in bytes.
	MaxMessageSize int64

	SendBufferSize    int
	ReceiveBufferSize int

	// AllowedOrigins lists cross-origin pages allowed to connect. Same-origin
	// connections are always allowed.
	AllowedOrigins []string

	// InsecureDevMode disables origin validation. Development only.
	InsecureDevMode bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
		MaxMessageSize:    64 * 1024,
		SendBufferSize:    64,
		ReceiveBufferSize: 64,
	}
}

type baseConn struct {
	id        string
	timeout   time.Duration
	sendCh    chan *protocol.Message
	recvCh    chan *protocol.Message
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newBaseConn(cfg *Config) *baseConn {
	return &baseConn{
		id:      uuid.NewString(),
		timeout: cfg.WriteTimeout,
		sendCh:  make(chan *protocol.Message, cfg.SendBufferSize),
		recvCh:  make(chan *protocol.Message, cfg.ReceiveBufferSize),
		closeCh: make(chan struct{}),
	}
}

func (c *baseConn) ID() string {
	return c.id
}

func (c *baseConn) Send(msg *protocol.Message) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case c.sendCh <- msg:
		return nil
	case <-c.closeCh:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

func (c *baseConn) Receive() <-chan *protocol.Message {
	return c.recvCh
}

func (c *baseConn) Done() <-chan struct{} {
	return c.closeCh
}

func (c *baseConn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
}

// push hands a client message to the session.
func (c *baseConn) push(msg *protocol.Message) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.recvCh <- msg:
		return nil
	case <-c.closeCh:
		return ErrConnectionClosed
	}
}

// MemoryConn is an in-process Conn. The test or host plays the client
// through Push and Sent.
type MemoryConn struct {
	*baseConn
}

// NewMemoryConn creates an open in-process connection.
func NewMemoryConn(cfg *Config) *MemoryConn {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &MemoryConn{baseConn: newBaseConn(cfg)}
}

// Push delivers a client message.
func (c *MemoryConn) Push(msg *protocol.Message) error {
	return c.push(msg)
}

// Sent yields the messages queued for the client.
func (c *MemoryConn) Sent() <-chan *protocol.Message {
	return c.sendCh
}

// Close closes the connection.
func (c *MemoryConn) Close() error {
	c.shutdown()
	return nil
}
