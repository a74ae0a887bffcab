package chat

import (
	"context"

	"github.com/molstudio/molchat/pkg/sse"
)

// FrameStream is one open streaming chat response
type FrameStream interface {
	// Next returns frames in arrival order; io.EOF ends the stream
	Next(ctx context.Context) (sse.Frame, error)
	Close() error
}

// Backend is the set of HTTP collaborators the session controller drives.
// Implementations live in pkg/api; tests substitute fakes.
type Backend interface {
	// StreamChat opens the streaming chat endpoint for one send
	StreamChat(ctx context.Context, threadID, query string) (FrameStream, error)

	// StopRun asks the backend to stop server-side work for a run.
	// Best-effort: failures only get logged.
	StopRun(ctx context.Context, runID string) error

	// ListMessages fetches the persisted history of a thread, oldest first
	ListMessages(ctx context.Context, threadID string) ([]MessageRecord, error)

	// SaveMessages persists a batch of messages for a thread
	SaveMessages(ctx context.Context, threadID string, records []MessageRecord) ([]MessageRecord, error)

	// SaveArtifacts persists a batch of artifacts
	SaveArtifacts(ctx context.Context, artifacts []Artifact) ([]Artifact, error)
}
