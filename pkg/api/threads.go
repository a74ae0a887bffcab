package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/molstudio/molchat/pkg/chat"
)

// Thread is one conversation thread record
type Thread struct {
	ThreadID  string    `json:"thread_id"`
	Title     string    `json:"title,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type threadsEnvelope struct {
	Data  []Thread `json:"data"`
	Count int      `json:"count"`
}

// ListThreads fetches the caller's conversation threads
func (c *Client) ListThreads(ctx context.Context) ([]Thread, error) {
	var envelope threadsEnvelope
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/v1/threads", nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return envelope.Data, nil
}

// CreateThread creates a thread with the given title. When the backend
// does not assign a thread id, one is generated client-side.
func (c *Client) CreateThread(ctx context.Context, title string) (Thread, error) {
	payload := map[string]string{"title": title}

	var thread Thread
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/v1/threads", payload, &thread); err != nil {
		return Thread{}, fmt.Errorf("failed to create thread: %w", err)
	}

	if thread.ThreadID == "" {
		thread.ThreadID = chat.NewThreadID()
	}
	return thread, nil
}

// RenameThread updates a thread's title
func (c *Client) RenameThread(ctx context.Context, threadID, title string) (Thread, error) {
	payload := map[string]string{"title": title}

	var thread Thread
	endpoint := fmt.Sprintf("%s/api/v1/threads/%s", c.baseURL, threadID)
	if err := c.doJSON(ctx, http.MethodPatch, endpoint, payload, &thread); err != nil {
		return Thread{}, fmt.Errorf("failed to rename thread: %w", err)
	}
	return thread, nil
}
