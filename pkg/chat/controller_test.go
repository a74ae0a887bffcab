package chat_test

import (
	"context"
	"errors"
	"io"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/molstudio/molchat/pkg/chat"
	"github.com/molstudio/molchat/pkg/sse"
)

// scriptedStream delivers frames pushed by the test; closing the channel
// ends the stream
type scriptedStream struct {
	frames chan sse.Frame

	mu     sync.Mutex
	closed bool
}

func newScriptedStream() *scriptedStream {
	return &scriptedStream{frames: make(chan sse.Frame, 16)}
}

func (s *scriptedStream) push(event, data string) {
	s.frames <- sse.Frame{Event: event, Data: data}
}

func (s *scriptedStream) finish() {
	close(s.frames)
}

func (s *scriptedStream) Next(ctx context.Context) (sse.Frame, error) {
	select {
	case <-ctx.Done():
		return sse.Frame{}, ctx.Err()
	case frame, ok := <-s.frames:
		if !ok {
			return sse.Frame{}, io.EOF
		}
		return frame, nil
	}
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeBackend records every call and hands out scripted streams in order
type fakeBackend struct {
	mu sync.Mutex

	streams   []*scriptedStream
	streamErr error

	history     []chat.MessageRecord
	historyErr  error
	historyGate chan struct{}

	artifactGate     chan struct{}
	assignArtifactID string

	savedMessages  [][]chat.MessageRecord
	savedArtifacts [][]chat.Artifact
	stopped        []string
	opened         int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{}
}

func (f *fakeBackend) queueStream(s *scriptedStream) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, s)
}

func (f *fakeBackend) StreamChat(ctx context.Context, threadID, query string) (chat.FrameStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.streamErr != nil {
		return nil, f.streamErr
	}

	f.opened++
	if len(f.streams) == 0 {
		s := newScriptedStream()
		s.finish()
		return s, nil
	}

	s := f.streams[0]
	f.streams = f.streams[1:]
	return s, nil
}

func (f *fakeBackend) StopRun(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, runID)
	return nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, threadID string) ([]chat.MessageRecord, error) {
	if f.historyGate != nil {
		select {
		case <-f.historyGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeBackend) SaveMessages(ctx context.Context, threadID string, records []chat.MessageRecord) ([]chat.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedMessages = append(f.savedMessages, records)
	return records, nil
}

func (f *fakeBackend) SaveArtifacts(ctx context.Context, artifacts []chat.Artifact) ([]chat.Artifact, error) {
	if f.artifactGate != nil {
		select {
		case <-f.artifactGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedArtifacts = append(f.savedArtifacts, artifacts)

	saved := make([]chat.Artifact, len(artifacts))
	copy(saved, artifacts)
	if f.assignArtifactID != "" {
		for i := range saved {
			saved[i].ID = f.assignArtifactID
		}
	}
	return saved, nil
}

func (f *fakeBackend) stopCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.stopped))
	copy(out, f.stopped)
	return out
}

func (f *fakeBackend) artifactBatches() [][]chat.Artifact {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]chat.Artifact, len(f.savedArtifacts))
	copy(out, f.savedArtifacts)
	return out
}

func (f *fakeBackend) messageBatches() [][]chat.MessageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]chat.MessageRecord, len(f.savedMessages))
	copy(out, f.savedMessages)
	return out
}

var _ = Describe("Controller", func() {
	var (
		backend    *fakeBackend
		controller *chat.Controller
		ctx        context.Context
	)

	BeforeEach(func() {
		backend = newFakeBackend()
		controller = chat.NewController(backend)
		ctx = context.Background()
	})

	selectAndSettle := func(threadID string) {
		controller.SelectThread(ctx, threadID)
		Eventually(controller.ThreadID).Should(Equal(threadID))
	}

	lastAssistant := func() chat.Message {
		messages := controller.Messages()
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].IsAssistant() {
				return messages[i]
			}
		}
		return chat.Message{}
	}

	Describe("sending on a fresh thread", func() {
		It("should stream the whole scenario to a done message", func() {
			stream := newScriptedStream()
			backend.queueStream(stream)
			selectAndSettle("thread-1")

			Expect(controller.Send(ctx, "hello")).To(Succeed())

			messages := controller.Messages()
			Expect(messages).To(HaveLen(2))
			Expect(messages[0].Role).To(Equal(chat.RoleUser))
			Expect(messages[0].Content).To(Equal("hello"))
			Expect(messages[0].Status).To(Equal(chat.StatusDone))
			Expect(messages[1].Role).To(Equal(chat.RoleAssistant))
			Expect(messages[1].Content).To(BeEmpty())
			Expect(messages[1].Status).To(Equal(chat.StatusPending))
			Expect(messages[1].Timestamp).To(Equal(messages[0].Timestamp))

			stream.push("status", `{"phase":"thinking"}`)
			Eventually(controller.Phase).Should(Equal("thinking"))

			stream.push("token", `{"token":"H"}`)
			stream.push("token", `{"token":"i"}`)
			stream.push("token", `{"token":"!"}`)
			Eventually(func() string { return lastAssistant().Content }).Should(Equal("Hi!"))
			Expect(lastAssistant().Status).To(Equal(chat.StatusStreaming))

			stream.push("done", `{"run_id":"run-1"}`)
			Eventually(func() chat.Status { return lastAssistant().Status }).Should(Equal(chat.StatusDone))

			rs, ok := controller.RunState(lastAssistant().ID)
			Expect(ok).To(BeTrue())
			Expect(rs.IsActive).To(BeFalse())
			Expect(lastAssistant().RunID).To(Equal("run-1"))

			Eventually(backend.messageBatches).Should(HaveLen(1))
			saved := backend.messageBatches()[0]
			Expect(saved[0].Content).To(Equal("hello"))
			Expect(saved[1].Content).To(Equal("Hi!"))
			Expect(saved[1].RunID).To(Equal("run-1"))
		})

		It("should treat graceful stream end as done", func() {
			stream := newScriptedStream()
			backend.queueStream(stream)
			selectAndSettle("thread-1")
			Expect(controller.Send(ctx, "hello")).To(Succeed())

			stream.push("token", `{"token":"Hi"}`)
			stream.finish()

			Eventually(func() chat.Status { return lastAssistant().Status }).Should(Equal(chat.StatusDone))
			Expect(lastAssistant().Content).To(Equal("Hi"))
		})
	})

	Describe("tool steps", func() {
		It("should track steps and arm the elapsed timer", func() {
			stream := newScriptedStream()
			backend.queueStream(stream)
			selectAndSettle("thread-1")
			Expect(controller.Send(ctx, "render caffeine")).To(Succeed())

			stream.push("on_tool_start", `{"tool":"rdkit_render"}`)
			Eventually(func() int {
				rs, _ := controller.RunState(lastAssistant().ID)
				return len(rs.Steps)
			}).Should(Equal(1))

			rs, _ := controller.RunState(lastAssistant().ID)
			Expect(rs.Steps[0].Status).To(Equal(chat.StepRunning))
			Expect(rs.TimerArmed()).To(BeTrue())
			Expect(lastAssistant().Status).To(Equal(chat.StatusStreaming))

			stream.push("on_tool_end", `{"tool":"rdkit_render"}`)
			Eventually(func() chat.StepStatus {
				rs, _ := controller.RunState(lastAssistant().ID)
				return rs.Steps[0].Status
			}).Should(Equal(chat.StepDone))

			stream.push("done", `{}`)
			Eventually(func() chat.Status { return lastAssistant().Status }).Should(Equal(chat.StatusDone))
		})
	})

	Describe("artifacts", func() {
		It("should hold pending artifacts until the run id arrives, then persist once", func() {
			stream := newScriptedStream()
			backend.queueStream(stream)
			selectAndSettle("thread-1")
			Expect(controller.Send(ctx, "dock it")).To(Succeed())

			stream.push("status", `{"phase":"working","artifacts":[{"type":"pdb","path":"out/p.pdb","asset_id":"a1"}]}`)
			Eventually(func() []chat.Artifact { return lastAssistant().Artifacts }).Should(HaveLen(1))
			Expect(lastAssistant().Artifacts[0].RunID).To(BeEmpty())
			Expect(backend.artifactBatches()).To(BeEmpty())

			stream.push("run_id", `{"run_id":"run-5"}`)
			Eventually(backend.artifactBatches).Should(HaveLen(1))

			batch := backend.artifactBatches()[0]
			Expect(batch).To(HaveLen(1))
			Expect(batch[0].RunID).To(Equal("run-5"))
			Expect(batch[0].ThreadID).To(Equal("thread-1"))

			Eventually(func() string { return lastAssistant().Artifacts[0].RunID }).Should(Equal("run-5"))

			stream.push("done", `{"run_id":"run-5"}`)
			Eventually(func() chat.Status { return lastAssistant().Status }).Should(Equal(chat.StatusDone))
			Expect(backend.artifactBatches()).To(HaveLen(1), "flush persists exactly once")
		})

		It("should keep transcript snapshots stable while persisted ids merge in", func() {
			stream := newScriptedStream()
			backend.queueStream(stream)
			backend.artifactGate = make(chan struct{})
			backend.assignArtifactID = "server-id"
			selectAndSettle("thread-1")
			Expect(controller.Send(ctx, "dock it")).To(Succeed())

			stream.push("run_id", `{"run_id":"run-5"}`)
			stream.push("status", `{"phase":"working","artifacts":[{"type":"pdb","path":"out/p.pdb","asset_id":"a1"}]}`)
			Eventually(func() []chat.Artifact { return lastAssistant().Artifacts }).Should(HaveLen(1))

			// Taken while the save is still in flight, so no server id yet
			snapshot := lastAssistant()
			Expect(snapshot.Artifacts[0].ID).To(BeEmpty())

			close(backend.artifactGate)

			Eventually(func() string { return lastAssistant().Artifacts[0].ID }).Should(Equal("server-id"))
			Expect(snapshot.Artifacts[0].ID).To(BeEmpty(), "snapshot must not track later merges")

			stream.push("done", `{"run_id":"run-5"}`)
			Eventually(func() chat.Status { return lastAssistant().Status }).Should(Equal(chat.StatusDone))
		})

		It("should drop duplicate announcements", func() {
			stream := newScriptedStream()
			backend.queueStream(stream)
			selectAndSettle("thread-1")
			Expect(controller.Send(ctx, "dock it")).To(Succeed())

			payload := `{"artifacts":[{"type":"pdb","path":"out/p.pdb","asset_id":"a1"}]}`
			stream.push("status", payload)
			stream.push("status", payload)
			stream.push("done", `{"run_id":"run-5"}`)

			Eventually(func() chat.Status { return lastAssistant().Status }).Should(Equal(chat.StatusDone))
			Expect(lastAssistant().Artifacts).To(HaveLen(1))
		})
	})

	Describe("stopping", func() {
		It("should abort immediately and notify the backend once", func() {
			stream := newScriptedStream()
			backend.queueStream(stream)
			selectAndSettle("thread-1")
			Expect(controller.Send(ctx, "long job")).To(Succeed())

			stream.push("run_id", `{"run_id":"run-9"}`)
			Eventually(controller.ActiveRunID).Should(Equal("run-9"))

			controller.Stop()
			Expect(lastAssistant().Status).To(Equal(chat.StatusAborted))
			Expect(controller.IsStreaming()).To(BeFalse())

			Eventually(backend.stopCalls).Should(Equal([]string{"run-9"}))

			// Second stop is a no-op
			controller.Stop()
			Consistently(backend.stopCalls).Should(HaveLen(1))

			// Late frames for the stopped stream change nothing
			content := lastAssistant().Content
			stream.push("token", `{"token":"late"}`)
			Consistently(func() string { return lastAssistant().Content }).Should(Equal(content))
		})
	})

	Describe("session replacement", func() {
		It("should cancel the prior transport before opening a new one", func() {
			first := newScriptedStream()
			second := newScriptedStream()
			backend.queueStream(first)
			backend.queueStream(second)
			selectAndSettle("thread-1")

			Expect(controller.Send(ctx, "first")).To(Succeed())
			first.push("token", `{"token":"partial"}`)
			Eventually(func() string { return lastAssistant().Content }).Should(Equal("partial"))
			firstID := lastAssistant().ID

			Expect(controller.Send(ctx, "second")).To(Succeed())
			Eventually(first.isClosed).Should(BeTrue())

			messages := controller.Messages()
			Expect(messages).To(HaveLen(4))

			var firstAssistant chat.Message
			for _, m := range messages {
				if m.ID == firstID {
					firstAssistant = m
				}
			}
			Expect(firstAssistant.Status).To(Equal(chat.StatusAborted))

			// No further deltas reach the replaced session's message
			first.push("token", `{"token":"more"}`)
			Consistently(func() string {
				for _, m := range controller.Messages() {
					if m.ID == firstID {
						return m.Content
					}
				}
				return ""
			}).Should(Equal("partial"))

			second.push("token", `{"token":"fresh"}`)
			Eventually(func() string { return lastAssistant().Content }).Should(Equal("fresh"))
		})
	})

	Describe("transport failure", func() {
		It("should surface an initial failure as error status and banner", func() {
			backend.streamErr = errors.New("connect: connection refused")
			selectAndSettle("thread-1")

			Expect(controller.Send(ctx, "hello")).To(Succeed())

			Eventually(func() chat.Status { return lastAssistant().Status }).Should(Equal(chat.StatusError))
			Eventually(controller.LastError).Should(ContainSubstring("connection refused"))
		})

		It("should surface a mid-stream failure without the banner", func() {
			stream := newScriptedStream()
			backend.queueStream(stream)
			selectAndSettle("thread-1")
			Expect(controller.Send(ctx, "hello")).To(Succeed())

			stream.push("token", `{"token":"Hi"}`)
			Eventually(func() string { return lastAssistant().Content }).Should(Equal("Hi"))

			controller.Stop()
			Expect(lastAssistant().Status).To(Equal(chat.StatusAborted))
			Expect(controller.LastError()).To(BeEmpty())
		})
	})

	Describe("history", func() {
		It("should prepend persisted history on thread selection", func() {
			backend.history = []chat.MessageRecord{
				{ID: "h1", Role: chat.RoleUser, Content: "old question"},
				{ID: "h2", Role: chat.RoleAssistant, Content: "old answer", RunID: "run-0"},
			}

			controller.SelectThread(ctx, "thread-1")

			Eventually(controller.Messages).Should(HaveLen(2))
			messages := controller.Messages()
			Expect(messages[0].Content).To(Equal("old question"))
			Expect(messages[0].Status).To(Equal(chat.StatusDone))
			Expect(messages[1].RunID).To(Equal("run-0"))
		})

		It("should drop a superseded thread's late history", func() {
			backend.history = []chat.MessageRecord{
				{ID: "h1", Role: chat.RoleUser, Content: "stale"},
			}
			backend.historyGate = make(chan struct{})

			controller.SelectThread(ctx, "thread-1")
			controller.SelectThread(ctx, "thread-2")
			close(backend.historyGate)

			// Only the current thread's fetch lands; the superseded one
			// is dropped even though it eventually returned
			Eventually(controller.Messages).Should(HaveLen(1))
			Consistently(controller.Messages).Should(HaveLen(1))
			Expect(controller.ThreadID()).To(Equal("thread-2"))
		})
	})
})
