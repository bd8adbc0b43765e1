// Package client talks to the daemon's control socket on behalf of the
// CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyprpier/hyprpier/internal/api"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 8 << 10
)

// ErrDaemonNotRunning indicates no daemon is listening on the socket.
var ErrDaemonNotRunning = errors.New("daemon is not running")

// Client wraps HTTP interactions with the daemon over its unix socket.
type Client struct {
	client     *http.Client
	socketPath string
}

// New builds a client for the daemon socket at the given path.
func New(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{
		client:     &http.Client{Timeout: defaultHTTPTimeout, Transport: transport},
		socketPath: socketPath,
	}
}

// SocketPath returns the socket this client talks to.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (api.Status, error) {
	var status api.Status
	if err := c.get(ctx, "/status", &status); err != nil {
		return api.Status{}, err
	}
	return status, nil
}

// Notify asks the daemon to schedule a hardware re-check.
func (c *Client) Notify(ctx context.Context, reason string) error {
	return c.post(ctx, "/notify", api.NotifyRequest{Reason: reason}, nil)
}

// Apply asks the daemon to apply the named profile, or to resolve
// against current hardware when req.Auto is set.
func (c *Client) Apply(ctx context.Context, req api.ApplyRequest) (api.ApplyResult, error) {
	var result api.ApplyResult
	if err := c.post(ctx, "/apply", req, &result); err != nil {
		return api.ApplyResult{}, err
	}
	return result, nil
}

// History fetches the most recent daemon events. A limit of zero uses
// the daemon default.
func (c *Client) History(ctx context.Context, limit int) ([]api.HistoryEntry, error) {
	path := "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp api.HistoryResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Shutdown requests a graceful daemon shutdown.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.post(ctx, "/shutdown", nil, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix"+path, http.NoBody)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://unix"+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		if isConnectionRefused(err) {
			return fmt.Errorf("%w (socket %s)", ErrDaemonNotRunning, c.socketPath)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, readAPIError(resp))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(body) == 0 {
		return errors.New(resp.Status)
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			if msg := strings.TrimSpace(payload.Error); msg != "" {
				return errors.New(msg)
			}
		}
	}
	return errors.New(trimmed)
}
