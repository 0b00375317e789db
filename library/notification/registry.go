package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	defaultBufferSize = 16

	logMsgEncodeFailed   = "failed to encode notification"
	logMsgReplaced       = "replaced live channel"
	logMsgRegistryClosed = "connection registry closed"
	logAttrUserID        = "user_id"
	logAttrChannelID     = "channel_id"
	logAttrConnections   = "connections"
	logAttrError         = "error"
)

// ErrRegistryClosed is returned by Connect after Close.
var ErrRegistryClosed = errors.New("connection registry is closed")

// Deliverer hands a message to a user's live channel.
// It returns true when the message was handed over, false when there is no channel or the send failed.
type Deliverer interface {
	Deliver(ctx context.Context, userID uuid.UUID, msg Message) bool
}

// Connection is one user's live channel. Consumers read Frames until Done is closed.
type Connection struct {
	userID    uuid.UUID
	channelID string
	frames    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Connection) UserID() uuid.UUID { return c.userID }

func (c *Connection) ChannelID() string { return c.channelID }

// Frames yields the encoded messages sent to this connection.
func (c *Connection) Frames() <-chan []byte { return c.frames }

// Done is closed when the connection was disconnected or replaced.
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ConnectionRegistry keeps at most one live channel per user. It is safe for concurrent use.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection
	closed      bool
	bufferSize  int
	logger      lending.Logger
}

// RegistryOption configures a ConnectionRegistry.
type RegistryOption func(*ConnectionRegistry)

// WithBufferSize sets how many frames a connection buffers before a Deliver has to wait.
func WithBufferSize(size int) RegistryOption {
	return func(r *ConnectionRegistry) {
		r.bufferSize = max(size, 1)
	}
}

// WithRegistryLogger sets the logger of the registry.
func WithRegistryLogger(logger lending.Logger) RegistryOption {
	return func(r *ConnectionRegistry) {
		r.logger = logger
	}
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry(opts ...RegistryOption) *ConnectionRegistry {
	r := &ConnectionRegistry{
		connections: make(map[uuid.UUID]*Connection),
		bufferSize:  defaultBufferSize,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Connect registers the live channel of a user. An existing channel of the same user is replaced
// and its Done channel closed.
func (r *ConnectionRegistry) Connect(userID uuid.UUID, channelID string) (*Connection, error) {
	conn := &Connection{
		userID:    userID,
		channelID: channelID,
		frames:    make(chan []byte, r.bufferSize),
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	if previous, ok := r.connections[userID]; ok {
		previous.close()
		r.logDebug(logMsgReplaced, logAttrUserID, userID.String(), logAttrChannelID, previous.channelID)
	}

	r.connections[userID] = conn

	return conn, nil
}

// Disconnect removes the connection if it is still the user's current one.
func (r *ConnectionRegistry) Disconnect(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.connections[conn.userID]; ok && current == conn {
		delete(r.connections, conn.userID)
	}

	conn.close()
}

// Deliver writes the message to the user's live channel. It waits for buffer space until the
// connection goes away or ctx is done.
func (r *ConnectionRegistry) Deliver(ctx context.Context, userID uuid.UUID, msg Message) bool {
	r.mu.RLock()
	conn, ok := r.connections[userID]
	r.mu.RUnlock()

	if !ok {
		return false
	}

	frame, err := msg.Encode()
	if err != nil {
		r.logDebug(logMsgEncodeFailed, logAttrUserID, userID.String(), logAttrError, err.Error())
		return false
	}

	select {
	case <-conn.done:
		return false
	default:
	}

	select {
	case conn.frames <- frame:
		return true
	case <-conn.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// ConnectedUsers returns the number of users with a live channel.
func (r *ConnectionRegistry) ConnectedUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections)
}

// Close disconnects every channel and clears the registry. Later Connect calls fail.
func (r *ConnectionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	count := len(r.connections)
	for _, conn := range r.connections {
		conn.close()
	}

	clear(r.connections)
	r.closed = true

	r.logDebug(logMsgRegistryClosed, logAttrConnections, count)
}

func (r *ConnectionRegistry) logDebug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
