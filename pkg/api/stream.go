package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/molstudio/molchat/pkg/chat"
	"github.com/molstudio/molchat/pkg/sse"
)

// Client implements the controller's backend contract
var _ chat.Backend = (*Client)(nil)

// Stream is one open streaming chat response
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
}

// Next returns the next decoded frame in arrival order
func (s *Stream) Next(ctx context.Context) (sse.Frame, error) {
	return s.reader.Next(ctx)
}

// Close releases the underlying response body
func (s *Stream) Close() error {
	return s.body.Close()
}

// StreamChat opens the streaming chat endpoint for one send. The returned
// stream ends with io.EOF; cancelling ctx terminates the transport.
func (c *Client) StreamChat(ctx context.Context, threadID, query string) (chat.FrameStream, error) {
	endpoint := fmt.Sprintf("%s/api/v1/chat/stream?%s", c.baseURL, url.Values{
		"q":         {query},
		"thread_id": {threadID},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, responseError(resp)
	}

	return &Stream{
		body:   resp.Body,
		reader: sse.NewReader(resp.Body),
	}, nil
}

// StopRun asks the backend to stop server-side work for a run. Callers
// treat this as fire-and-forget; the response carries no state we need.
func (c *Client) StopRun(ctx context.Context, runID string) error {
	payload := map[string]string{"run_id": runID}
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/agent/chat/stop", payload, nil)
}
