package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval     = 20 * time.Second
	pingWriteTimeout = 5 * time.Second
)

// WebsocketTransport dials websocket feeds with the default dialer. The
// handshake honors the dial context deadline.
type WebsocketTransport struct{}

func NewWebsocketTransport() WebsocketTransport {
	return WebsocketTransport{}
}

func (t WebsocketTransport) Dial(ctx context.Context, endpoint Endpoint) (Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint.URL, err)
	}

	ret := &wsStream{
		conn: conn,
		stop: make(chan struct{}),
	}

	go ret.pingLoop()

	return ret, nil
}

type wsStream struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	stop      chan struct{}
	closeOnce sync.Once
}

func (s *wsStream) Read(ctx context.Context) ([]byte, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	_, payload, err := s.conn.ReadMessage()
	if err != nil {
		// Close unblocks pending reads with a closed-connection error.
		// Report the cancellation instead when that is what happened.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	return payload, nil
}

func (s *wsStream) Send(ctx context.Context, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if ok {
		err := s.conn.SetWriteDeadline(deadline)
		if err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}

		defer func() {
			_ = s.conn.SetWriteDeadline(time.Time{})
		}()
	}

	err := s.conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	return nil
}

func (s *wsStream) Close() error {
	var err error

	s.closeOnce.Do(func() {
		close(s.stop)
		err = s.conn.Close()
	})

	return err
}

// pingLoop keeps intermediaries from reaping quiet connections. A failed
// ping means the connection is gone, the read side reports it.
func (s *wsStream) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteTimeout))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				return
			}
		}
	}
}
