package client

import (
	"context"
	"fmt"
	"net"

	"github.com/gorilla/websocket"

	"github.com/hyprpier/hyprpier/internal/api"
)

// EventStream is a live subscription to the daemon's event feed.
type EventStream struct {
	conn *websocket.Conn
}

// Events opens the daemon's websocket event stream. The caller must
// Close the returned stream.
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "unix", c.socketPath)
		},
	}

	conn, resp, err := dialer.DialContext(ctx, "ws://unix/events", nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if isConnectionRefused(err) {
			return nil, fmt.Errorf("%w (socket %s)", ErrDaemonNotRunning, c.socketPath)
		}
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	return &EventStream{conn: conn}, nil
}

// Next blocks until the next event arrives or the stream ends.
func (s *EventStream) Next() (api.Event, error) {
	var event api.Event
	if err := s.conn.ReadJSON(&event); err != nil {
		return api.Event{}, err
	}
	return event, nil
}

// Close tears down the websocket connection.
func (s *EventStream) Close() error {
	return s.conn.Close()
}
