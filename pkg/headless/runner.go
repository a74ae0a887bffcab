package headless

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/molstudio/molchat/pkg/chat"
	"github.com/molstudio/molchat/pkg/config"
	"github.com/molstudio/molchat/pkg/display"
	"github.com/molstudio/molchat/pkg/logger"
)

// Runner drives controller turns and prints each stream as it arrives.
// The one-shot entry point and the REPL both run turns through it.
type Runner struct {
	controller   *chat.Controller
	renderer     *display.Renderer
	w            io.Writer
	notify       chan struct{}
	showAnalysis bool
}

// NewRunner creates a runner over the given backend, writing to w
func NewRunner(backend chat.Backend, w io.Writer) *Runner {
	settings := config.Get()

	r := &Runner{
		controller:   chat.NewController(backend),
		renderer:     display.NewRenderer(settings.Chat.ShowAnalysis),
		w:            w,
		notify:       make(chan struct{}, 1),
		showAnalysis: settings.Chat.ShowAnalysis,
	}

	if settings.Chat.TickInterval > 0 {
		r.controller.SetTickInterval(time.Duration(settings.Chat.TickInterval) * time.Millisecond)
	}

	r.controller.SetUpdateHook(func() {
		select {
		case r.notify <- struct{}{}:
		default:
		}
	})

	return r
}

// Controller exposes the underlying session controller
func (r *Runner) Controller() *chat.Controller {
	return r.controller
}

// SelectThread switches the runner to a thread, creating an id when none
// is given, and returns the active thread id.
func (r *Runner) SelectThread(ctx context.Context, threadID string) string {
	if threadID == "" {
		threadID = chat.NewThreadID()
	}
	r.controller.SelectThread(ctx, threadID)
	return threadID
}

// RunPrompt sends one prompt and blocks until the response reaches a
// terminal status. A cancelled context stops the run and lets the stream
// settle rather than returning immediately.
func (r *Runner) RunPrompt(ctx context.Context, prompt string) error {
	logger.Debug("Running prompt on thread %s", r.controller.ThreadID())

	if err := r.controller.Send(context.Background(), prompt); err != nil {
		return fmt.Errorf("failed to send prompt: %w", err)
	}

	output := NewOutput(r.w, r.showAnalysis)

	// Poll as a fallback in case a notification is coalesced away
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	stopped := false
	for {
		msg, ok := r.assistantMessage()
		if ok {
			output.Append(msg.Analysis, msg.Content)
			if msg.Status.IsTerminal() {
				return r.finish(output, msg)
			}
		}

		select {
		case <-r.notify:
		case <-ticker.C:
		case <-ctx.Done():
			if !stopped {
				stopped = true
				r.controller.Stop()
			}
		}
	}
}

// finish prints the trailing tool-step, artifact and status lines
func (r *Runner) finish(output *Output, msg chat.Message) error {
	output.Newline()

	if rs, ok := r.controller.RunState(msg.ID); ok {
		for _, step := range rs.Steps {
			output.Line(r.renderer.StepLine(step, rs.ElapsedSeconds))
		}
	}
	for _, artifact := range msg.Artifacts {
		output.Line(r.renderer.ArtifactLine(artifact))
	}

	switch msg.Status {
	case chat.StatusAborted:
		output.Line(r.renderer.ErrorBanner("run stopped"))
	case chat.StatusError:
		banner := r.controller.LastError()
		if banner == "" {
			banner = "stream failed"
		}
		output.Line(r.renderer.ErrorBanner(banner))
		return fmt.Errorf("chat stream failed: %s", banner)
	}

	return nil
}

// assistantMessage returns the newest assistant message of the turn
func (r *Runner) assistantMessage() (chat.Message, bool) {
	messages := r.controller.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsAssistant() {
			return messages[i], true
		}
	}
	return chat.Message{}, false
}
