package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/molstudio/molchat/pkg/events"
	"github.com/molstudio/molchat/pkg/logger"
)

// Controller owns the conversation state of one selected thread: the
// message list, per-assistant-message run states and at most one live
// stream session. All mutation funnels through the controller; callers
// only ever see copies.
type Controller struct {
	backend Backend

	mu         sync.Mutex
	threadID   string
	messages   []Message
	runStates  map[string]*AgentRunState
	session    *StreamSession
	historyGen uint64
	phase      string
	lastError  string

	historyCancel context.CancelFunc

	tickInterval time.Duration
	onUpdate     func()
}

// NewController creates a controller around the given backend
func NewController(backend Backend) *Controller {
	return &Controller{
		backend:      backend,
		runStates:    make(map[string]*AgentRunState),
		tickInterval: time.Second,
	}
}

// SetTickInterval overrides the elapsed-time recomputation period
func (c *Controller) SetTickInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.tickInterval = d
	}
}

// SetUpdateHook installs a callback invoked after every state change.
// The hook runs with the controller locked and must not call back in.
func (c *Controller) SetUpdateHook(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// SelectThread switches the controller to a thread and starts the one
// history fetch for it. A prior in-flight fetch or stream session for the
// previously selected thread is cancelled first.
func (c *Controller) SelectThread(ctx context.Context, threadID string) {
	c.mu.Lock()

	c.abortSessionLocked()
	if c.historyCancel != nil {
		c.historyCancel()
		c.historyCancel = nil
	}

	c.threadID = threadID
	c.messages = nil
	c.runStates = make(map[string]*AgentRunState)
	c.phase = ""
	c.lastError = ""
	c.historyGen++
	gen := c.historyGen

	historyCtx, cancel := context.WithCancel(ctx)
	c.historyCancel = cancel

	c.mu.Unlock()

	go c.fetchHistory(historyCtx, gen, threadID)
}

func (c *Controller) fetchHistory(ctx context.Context, gen uint64, threadID string) {
	records, err := c.backend.ListMessages(ctx, threadID)

	c.mu.Lock()
	defer c.mu.Unlock()

	// A later thread switch supersedes this fetch; its result must not land
	if c.historyGen != gen {
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("Failed to load history for thread %s: %v", threadID, err)
		return
	}

	c.messages = ReconcileHistory(records, c.messages)
	c.notifyLocked()
}

// Send starts a new stream session for the selected thread. Any prior
// session is cancelled first, so at most one transport is open per thread.
func (c *Controller) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("message content cannot be empty")
	}

	c.mu.Lock()

	if c.threadID == "" {
		c.mu.Unlock()
		return fmt.Errorf("no thread selected")
	}

	c.abortSessionLocked()

	now := time.Now()
	userMsg := NewUserMessage(content)
	assistantMsg := NewAssistantMessage()
	userMsg.Timestamp = now
	assistantMsg.Timestamp = now

	c.messages = append(c.messages, userMsg, assistantMsg)
	c.runStates[assistantMsg.ID] = NewAgentRunState(assistantMsg.ID)
	c.lastError = ""
	c.phase = ""

	streamCtx, cancel := context.WithCancel(ctx)
	session := newStreamSession(c.threadID, userMsg.ID, assistantMsg.ID, cancel)
	c.session = session

	c.notifyLocked()
	c.mu.Unlock()

	go c.run(streamCtx, session, content)

	return nil
}

// Stop aborts the active session: the assistant message flips to aborted
// immediately, the transport is cancelled, and the backend is notified
// best-effort. Stopping an already-terminal session is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()

	session := c.session
	if session == nil {
		c.mu.Unlock()
		return
	}

	session.stopRequested = true
	runID := session.RunID
	c.finishLocked(session, StatusAborted)
	c.mu.Unlock()

	if runID != "" {
		go func() {
			if err := c.backend.StopRun(context.Background(), runID); err != nil {
				logger.Warn("Failed to notify backend of stop for run %s: %v", runID, err)
			}
		}()
	}
}

// run drives one session: open the transport, decode frames, apply them.
// Every externally visible mutation happens under the lock behind a
// liveness check, so a superseded session's late reads change nothing.
func (c *Controller) run(ctx context.Context, session *StreamSession, query string) {
	stream, err := c.backend.StreamChat(ctx, session.ThreadID, query)
	if err != nil {
		c.mu.Lock()
		if c.liveLocked(session) {
			c.lastError = err.Error()
			c.failLocked(session, err)
		}
		c.mu.Unlock()
		return
	}
	defer stream.Close()

	tickerStarted := false

	for {
		frame, err := stream.Next(ctx)
		if err != nil {
			c.mu.Lock()
			if !c.liveLocked(session) {
				c.mu.Unlock()
				return
			}
			switch {
			case err == io.EOF:
				// Graceful completion without a done frame
				c.finishLocked(session, StatusDone)
			case errors.Is(err, context.Canceled):
				// Cancellation is not an error; Stop already transitioned
			default:
				c.failLocked(session, err)
			}
			c.mu.Unlock()
			return
		}

		ev := events.Decode(frame)

		c.mu.Lock()
		if !c.liveLocked(session) {
			c.mu.Unlock()
			return
		}
		c.applyEventLocked(session, ev)

		startTicker := false
		if !tickerStarted {
			if rs := c.runStates[session.AssistantID]; rs != nil && rs.TimerArmed() {
				tickerStarted = true
				startTicker = true
			}
		}
		terminal := c.session != session
		c.mu.Unlock()

		if startTicker {
			go c.tickLoop(ctx, session)
		}
		if terminal {
			return
		}
	}
}

// applyEvent is the reducer: one decoded event against the current
// session, under the controller lock.
func (c *Controller) applyEventLocked(session *StreamSession, ev events.Event) {
	msg := c.messageLocked(session.AssistantID)
	rs := c.runStates[session.AssistantID]
	if msg == nil || rs == nil || msg.Status.IsTerminal() {
		return
	}

	// Artifact announcements can ride on any event. Accepted artifacts
	// attach immediately for transient visibility; ones with a known run
	// id persist right away, the rest wait in the pending buffer.
	for _, note := range ev.Artifacts {
		artifact, accepted := session.artifacts.Add(note, session.RunID)
		if !accepted {
			continue
		}
		msg.Artifacts = append(msg.Artifacts, artifact)
		if artifact.RunID != "" {
			c.persistArtifacts(session, []Artifact{artifact})
		}
	}

	switch ev.Kind {
	case events.KindStatus:
		c.phase = ev.Phase

	case events.KindToken, events.KindMessage:
		if ev.HasDelta {
			c.markStreamingLocked(msg)
			msg.Content += ev.Delta
			session.content.WriteString(ev.Delta)
		}

	case events.KindAnalysisToken:
		msg.Analysis += ev.Analysis

	case events.KindRunID:
		c.assignRunIDLocked(session, msg, ev.RunID)

	case events.KindToolStart:
		c.markStreamingLocked(msg)
		rs.StartStep(ev.Tool, time.Now())

	case events.KindToolEnd:
		c.markStreamingLocked(msg)
		rs.EndStep(ev.Tool)

	case events.KindAborted:
		// A run id that names some other run is a stale overlap, not ours
		if ev.RunID != "" && session.RunID != "" && ev.RunID != session.RunID {
			logger.Debug("Ignoring aborted frame for stale run %s", ev.RunID)
			break
		}
		c.finishLocked(session, StatusAborted)

	case events.KindDone:
		if ev.RunID != "" {
			c.assignRunIDLocked(session, msg, ev.RunID)
		}
		c.finishLocked(session, StatusDone)
	}

	c.notifyLocked()
}

// assignRunIDLocked stamps the resolved run id onto the session and
// message, then flushes and persists the pending artifact buffer
func (c *Controller) assignRunIDLocked(session *StreamSession, msg *Message, runID string) {
	if runID == "" || session.RunID == runID {
		return
	}

	session.RunID = runID
	msg.RunID = runID

	for i := range msg.Artifacts {
		if msg.Artifacts[i].RunID == "" {
			msg.Artifacts[i].RunID = runID
		}
	}

	if flushed := session.artifacts.Flush(runID); len(flushed) > 0 {
		c.persistArtifacts(session, flushed)
	}
}

// persistArtifacts saves a batch best-effort. Failures stay out of the
// visible chat state; the transient list already shows the artifacts.
func (c *Controller) persistArtifacts(session *StreamSession, artifacts []Artifact) {
	batch := make([]Artifact, len(artifacts))
	copy(batch, artifacts)

	go func() {
		saved, err := c.backend.SaveArtifacts(context.Background(), batch)
		if err != nil {
			logger.Warn("Failed to persist %d artifact(s) for thread %s: %v", len(batch), session.ThreadID, err)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if msg := c.messageLocked(session.AssistantID); msg != nil {
			mergePersistedArtifacts(msg, saved)
		}
	}()
}

// mergePersistedArtifacts copies server-assigned ids and timestamps onto
// the attached artifacts, matched by identity key
func mergePersistedArtifacts(msg *Message, saved []Artifact) {
	for _, s := range saved {
		for i := range msg.Artifacts {
			if msg.Artifacts[i].AssetID == s.AssetID && msg.Artifacts[i].Path == s.Path {
				msg.Artifacts[i].ID = s.ID
				msg.Artifacts[i].CreatedAt = s.CreatedAt
				break
			}
		}
	}
}

// finishLocked moves the session's assistant message to a terminal status,
// finalizes its run state and retires the session
func (c *Controller) finishLocked(session *StreamSession, status Status) {
	now := time.Now()

	if msg := c.messageLocked(session.AssistantID); msg != nil && !msg.Status.IsTerminal() {
		msg.Status = status
	}
	if rs := c.runStates[session.AssistantID]; rs != nil {
		rs.Finalize(now)
	}

	// Any artifacts still pending flush with whatever run id we have,
	// run completion being the last chance to persist them
	if flushed := session.artifacts.Flush(session.RunID); len(flushed) > 0 {
		c.persistArtifacts(session, flushed)
	}

	if status == StatusDone {
		c.persistSessionMessages(session)
	}

	session.Cancel()
	if c.session == session {
		c.session = nil
	}
	c.notifyLocked()
}

// failLocked surfaces a transport failure as an error-status message
func (c *Controller) failLocked(session *StreamSession, err error) {
	logger.Error("Stream failed for thread %s: %v", session.ThreadID, err)

	if msg := c.messageLocked(session.AssistantID); msg != nil && !msg.Status.IsTerminal() {
		msg.Status = StatusError
	}
	if rs := c.runStates[session.AssistantID]; rs != nil {
		rs.Finalize(time.Now())
	}

	session.Cancel()
	if c.session == session {
		c.session = nil
	}
	c.notifyLocked()
}

// persistSessionMessages saves the completed message pair, fire-and-forget
func (c *Controller) persistSessionMessages(session *StreamSession) {
	var userContent string
	if msg := c.messageLocked(session.UserID); msg != nil {
		userContent = msg.Content
	}

	records := []MessageRecord{
		{Role: RoleUser, Content: userContent},
		{Role: RoleAssistant, Content: session.Content(), RunID: session.RunID},
	}
	threadID := session.ThreadID

	go func() {
		if _, err := c.backend.SaveMessages(context.Background(), threadID, records); err != nil {
			logger.Warn("Failed to persist messages for thread %s: %v", threadID, err)
		}
	}()
}

// tickLoop recomputes elapsed seconds while the session streams
func (c *Controller) tickLoop(ctx context.Context, session *StreamSession) {
	c.mu.Lock()
	interval := c.tickInterval
	c.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if !c.liveLocked(session) {
				c.mu.Unlock()
				return
			}
			if rs := c.runStates[session.AssistantID]; rs != nil {
				rs.Tick(time.Now())
			}
			c.notifyLocked()
			c.mu.Unlock()
		}
	}
}

// abortSessionLocked cancels and retires the current session, leaving its
// message terminal so no further deltas apply to it
func (c *Controller) abortSessionLocked() {
	if c.session == nil {
		return
	}
	session := c.session
	session.stopRequested = true
	c.finishLocked(session, StatusAborted)
}

// liveLocked reports whether the session is still the controller's active one
func (c *Controller) liveLocked(session *StreamSession) bool {
	return c.session == session
}

func (c *Controller) markStreamingLocked(msg *Message) {
	if msg.Status == StatusPending {
		msg.Status = StatusStreaming
	}
}

func (c *Controller) messageLocked(id string) *Message {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return &c.messages[i]
		}
	}
	return nil
}

func (c *Controller) notifyLocked() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}

// Messages returns a copy of the transcript. Artifact slices are copied
// too, so a snapshot stays stable while the merge of persisted artifacts
// mutates the live messages.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	for i := range out {
		if len(out[i].Artifacts) == 0 {
			continue
		}
		artifacts := make([]Artifact, len(out[i].Artifacts))
		copy(artifacts, out[i].Artifacts)
		out[i].Artifacts = artifacts
	}
	return out
}

// RunState returns a copy of the run state for an assistant message
func (c *Controller) RunState(messageID string) (AgentRunState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rs, ok := c.runStates[messageID]
	if !ok {
		return AgentRunState{}, false
	}

	out := *rs
	out.Steps = make([]AgentStepItem, len(rs.Steps))
	copy(out.Steps, rs.Steps)
	return out, true
}

// ThreadID returns the selected thread
func (c *Controller) ThreadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// Phase returns the most recent status phase label
func (c *Controller) Phase() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// LastError returns the banner text for an initial transport failure
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// IsStreaming reports whether a session is currently live
func (c *Controller) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// ActiveRunID returns the resolved run id of the live session, if any
func (c *Controller) ActiveRunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.RunID
}
