package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/molstudio/molchat/pkg/api"
	"github.com/molstudio/molchat/pkg/chat"
)

// fakeWorkspace is an in-process stand-in for the chemistry backend. It
// serves the streaming chat endpoint plus the persistence endpoints the
// controller calls after a run.
type fakeWorkspace struct {
	mu sync.Mutex

	frames []string

	savedMessages  []chat.MessageRecord
	savedArtifacts []chat.Artifact
	stoppedRuns    []string
}

func (f *fakeWorkspace) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		f.mu.Lock()
		frames := append([]string(nil), f.frames...)
		f.mu.Unlock()
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	})

	mux.HandleFunc("/api/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var payload struct {
				ThreadID string               `json:"thread_id"`
				Messages []chat.MessageRecord `json:"messages"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			f.mu.Lock()
			f.savedMessages = append(f.savedMessages, payload.Messages...)
			f.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{"data": payload.Messages, "count": len(payload.Messages)})
		default:
			json.NewEncoder(w).Encode(map[string]any{"data": []chat.MessageRecord{}, "count": 0})
		}
	})

	mux.HandleFunc("/api/v1/artifacts/bulk", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Artifacts []chat.Artifact `json:"artifacts"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.savedArtifacts = append(f.savedArtifacts, payload.Artifacts...)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"data": payload.Artifacts, "count": len(payload.Artifacts)})
	})

	mux.HandleFunc("/agent/chat/stop", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			RunID string `json:"run_id"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.stoppedRuns = append(f.stoppedRuns, payload.RunID)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func (f *fakeWorkspace) messages() []chat.MessageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.MessageRecord(nil), f.savedMessages...)
}

func (f *fakeWorkspace) artifacts() []chat.Artifact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Artifact(nil), f.savedArtifacts...)
}

func sseFrame(event, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

var _ = Describe("Chat over HTTP", func() {
	var (
		workspace  *fakeWorkspace
		server     *httptest.Server
		controller *chat.Controller
	)

	BeforeEach(func() {
		workspace = &fakeWorkspace{}
		server = httptest.NewServer(workspace.handler())
		DeferCleanup(server.Close)

		client := api.NewClient(server.URL, "test-token")
		controller = chat.NewController(client)
		controller.SelectThread(context.Background(), "thread-http")
	})

	It("streams a full turn end to end and persists the transcript", func() {
		workspace.frames = []string{
			sseFrame("status", `{"phase": "thinking"}`),
			sseFrame("run_id", `{"run_id": "run-http-1"}`),
			sseFrame("on_tool_start", `{"tool": "rdkit_convert"}`),
			sseFrame("on_tool_end", `{"tool": "rdkit_convert"}`),
			sseFrame("token", `{"token": "Caff"}`),
			sseFrame("token", `{"token": "eine"}`),
			sseFrame("done", `{"run_id": "run-http-1", "artifacts": [{"type": "file", "path": "out/caffeine.sdf", "asset_id": "asset-1"}]}`),
		}

		Expect(controller.Send(context.Background(), "draw caffeine")).To(Succeed())

		Eventually(func() bool {
			messages := controller.Messages()
			return len(messages) == 2 && messages[1].Status.IsTerminal()
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

		messages := controller.Messages()
		Expect(messages[0].Content).To(Equal("draw caffeine"))
		Expect(messages[1].Content).To(Equal("Caffeine"))
		Expect(messages[1].Status).To(Equal(chat.StatusDone))
		Expect(messages[1].RunID).To(Equal("run-http-1"))
		Expect(messages[1].Artifacts).To(HaveLen(1))
		Expect(messages[1].Artifacts[0].Path).To(Equal("out/caffeine.sdf"))

		rs, ok := controller.RunState(messages[1].ID)
		Expect(ok).To(BeTrue())
		Expect(rs.Steps).To(HaveLen(1))
		Expect(rs.Steps[0].Name).To(Equal("rdkit_convert"))
		Expect(rs.Steps[0].Status).To(Equal(chat.StepDone))

		Eventually(workspace.messages, 2*time.Second, 10*time.Millisecond).Should(HaveLen(2))
		Eventually(workspace.artifacts, 2*time.Second, 10*time.Millisecond).Should(HaveLen(1))
		Expect(workspace.artifacts()[0].RunID).To(Equal("run-http-1"))
		Expect(workspace.artifacts()[0].ThreadID).To(Equal("thread-http"))
	})

	It("marks the message errored when the stream endpoint is unreachable", func() {
		server.Close()

		Expect(controller.Send(context.Background(), "hello")).To(Succeed())

		Eventually(func() chat.Status {
			messages := controller.Messages()
			if len(messages) < 2 {
				return chat.StatusPending
			}
			return messages[1].Status
		}, 2*time.Second, 10*time.Millisecond).Should(Equal(chat.StatusError))
		Expect(controller.LastError()).NotTo(BeEmpty())
	})
})
