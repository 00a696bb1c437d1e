package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("send buffer full")
)

// Conn is one accepted socket with its own write loop.
type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn

	send      chan arenadto.Envelope
	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

func newConn(id, userID string, ws *websocket.Conn) *Conn {
	return &Conn{
		id:     id,
		userID: userID,
		ws:     ws,
		send:   make(chan arenadto.Envelope, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

// Send queues a frame without blocking. A full buffer closes the socket.
func (c *Conn) Send(event string, data any) error {
	env, err := arenadto.NewEnvelope(event, data)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- env:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		c.Close("slow consumer")
		return errSlowConsumer
	}
}

// Close is idempotent and never blocks. The write loop flushes frames that
// were queued before the call, then sends the close frame; the read loop
// notices the close and runs the disconnect path.
func (c *Conn) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

func (c *Conn) writeLoop() {
	defer func() { _ = c.ws.Close(websocket.StatusNormalClosure, c.reason) }()
	for {
		select {
		case <-c.done:
			c.flush()
			return
		case env := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := wsjson.Write(ctx, c.ws, env)
			cancel()
			if err != nil {
				c.Close("write failed")
				return
			}
		}
	}
}

// flush drains what is already buffered, all within one write timeout.
func (c *Conn) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	for {
		select {
		case env := <-c.send:
			if err := wsjson.Write(ctx, c.ws, env); err != nil {
				return
			}
		default:
			return
		}
	}
}
