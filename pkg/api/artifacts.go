package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/molstudio/molchat/pkg/chat"
)

type artifactsEnvelope struct {
	Data  []chat.Artifact `json:"data"`
	Count int             `json:"count"`
}

type saveArtifactsRequest struct {
	Artifacts []chat.Artifact `json:"artifacts"`
}

// SaveArtifacts persists a batch of artifacts in one call
func (c *Client) SaveArtifacts(ctx context.Context, artifacts []chat.Artifact) ([]chat.Artifact, error) {
	var envelope artifactsEnvelope
	payload := saveArtifactsRequest{Artifacts: artifacts}

	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/v1/artifacts/bulk", payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to save artifacts: %w", err)
	}
	return envelope.Data, nil
}

// ListArtifacts fetches a page of a thread's artifacts, newest first.
// An empty threadID lists across all threads.
func (c *Client) ListArtifacts(ctx context.Context, threadID string, skip, limit int) ([]chat.Artifact, int, error) {
	values := url.Values{
		"skip":  {strconv.Itoa(skip)},
		"limit": {strconv.Itoa(limit)},
	}
	if threadID != "" {
		values.Set("thread_id", threadID)
	}

	endpoint := fmt.Sprintf("%s/api/v1/artifacts?%s", c.baseURL, values.Encode())

	var envelope artifactsEnvelope
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &envelope); err != nil {
		return nil, 0, fmt.Errorf("failed to list artifacts: %w", err)
	}
	return envelope.Data, envelope.Count, nil
}
