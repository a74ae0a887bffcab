package chat

import (
	"context"
	"strings"
	"time"
)

// StreamSession is the ephemeral state of one in-flight generation. One
// live instance exists per thread at a time; it is replaced wholesale on
// thread switches and new sends, never mutated across thread boundaries.
type StreamSession struct {
	ThreadID    string
	UserID      string // id of the user message in the pair
	AssistantID string // id of the assistant message being written
	RunID       string

	cancel        context.CancelFunc
	stopRequested bool
	startedAt     time.Time

	// content mirrors the assistant message text for persistence
	content strings.Builder

	artifacts *ArtifactAccumulator
}

func newStreamSession(threadID, userID, assistantID string, cancel context.CancelFunc) *StreamSession {
	return &StreamSession{
		ThreadID:    threadID,
		UserID:      userID,
		AssistantID: assistantID,
		cancel:      cancel,
		startedAt:   time.Now(),
		artifacts:   NewArtifactAccumulator(threadID),
	}
}

// Content returns the accumulated assistant text so far
func (s *StreamSession) Content() string {
	return s.content.String()
}

// StopRequested reports whether the user asked this session to stop
func (s *StreamSession) StopRequested() bool {
	return s.stopRequested
}

// Cancel releases the transport. Safe to call more than once.
func (s *StreamSession) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}
