package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/molstudio/molchat/pkg/chat"
)

type messagesEnvelope struct {
	Data  []chat.MessageRecord `json:"data"`
	Count int                  `json:"count"`
}

type saveMessagesRequest struct {
	ThreadID string               `json:"thread_id"`
	Messages []chat.MessageRecord `json:"messages"`
}

// ListMessages fetches the persisted history of a thread, oldest first
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]chat.MessageRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/messages?%s", c.baseURL, url.Values{
		"thread_id": {threadID},
	}.Encode())

	var envelope messagesEnvelope
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return envelope.Data, nil
}

// SaveMessages persists a batch of messages for a thread and returns the
// persisted records
func (c *Client) SaveMessages(ctx context.Context, threadID string, records []chat.MessageRecord) ([]chat.MessageRecord, error) {
	payload := saveMessagesRequest{
		ThreadID: threadID,
		Messages: records,
	}

	var envelope messagesEnvelope
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/v1/messages", payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to save messages: %w", err)
	}
	return envelope.Data, nil
}
