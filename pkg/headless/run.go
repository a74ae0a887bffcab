package headless

import (
	"context"
	"fmt"
	"os"

	"github.com/molstudio/molchat/pkg/chat"
)

// RunHeadless executes a single prompt against a thread and streams the
// response to stdout. This is the entry point for one-shot CLI execution.
func RunHeadless(ctx context.Context, backend chat.Backend, threadID, prompt string) error {
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty in headless mode")
	}

	runner := NewRunner(backend, os.Stdout)
	runner.SelectThread(ctx, threadID)
	return runner.RunPrompt(ctx, prompt)
}
