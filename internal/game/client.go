package game

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 64
	writeDeadline  = 5 * time.Second
)

var (
	// ErrSendBufferFull reports a recipient too slow to keep up; the frame is
	// dropped, consistent with the best-effort delivery contract.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrConnClosed reports a send attempted after the transport closed.
	ErrConnClosed = errors.New("connection closed")
)

// WSConn adapts a gorilla websocket connection to the Conn contract with a
// buffered writer goroutine, so sends from broadcast and relay paths never
// block on a slow peer.
type WSConn struct {
	ws     *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

// NewWSConn wraps the websocket connection and starts its write pump.
func NewWSConn(ws *websocket.Conn) *WSConn {
	conn := &WSConn{
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
	go conn.writePump()
	return conn
}

// Send enqueues a payload for delivery without blocking.
func (c *WSConn) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close tears down the transport; it is safe to call more than once.
func (c *WSConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.ws.Close()
	})
	return err
}

func (c *WSConn) writePump() {
	defer c.ws.Close()
	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
