package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"salon-chat/domain"
	"salon-chat/errors"
)

const DefaultRoomCheckTimeout = 3 * time.Second

// RoomClient asks the chat API whether a conversation still exists.
type RoomClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
}

func NewRoomClient(baseURL string, httpClient *http.Client, timeout time.Duration, headers map[string]string) *RoomClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultRoomCheckTimeout
	}
	return &RoomClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
		headers:    headers,
	}
}

// Exists returns errors.ErrRoomNotFound on a 404 only. Timeouts, transport errors
// and any other status come back as plain errors.
func (c *RoomClient) Exists(ctx context.Context, roomID domain.RoomID) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/chat/room/%d", c.baseURL, roomID), nil)
	if err != nil {
		return fmt.Errorf("room check: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("room check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: room %d", errors.ErrRoomNotFound, roomID)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return fmt.Errorf("room check: unexpected status %d", resp.StatusCode)
	}
}
