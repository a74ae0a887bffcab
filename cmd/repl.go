package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/molstudio/molchat/pkg/chat"
	"github.com/molstudio/molchat/pkg/headless"
	"github.com/molstudio/molchat/pkg/logger"
)

// runREPL runs the interactive chat loop. Ctrl-C during a stream stops the
// current run; at the prompt it exits.
func runREPL(backend chat.Backend, threadID string) error {
	runner := headless.NewRunner(backend, os.Stdout)
	threadID = runner.SelectThread(context.Background(), threadID)

	fmt.Printf("molchat · thread %s (Ctrl-C to stop a run, /quit to exit)\n", threadID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/thread":
			fmt.Println(runner.Controller().ThreadID())
			continue
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		if err := runner.RunPrompt(ctx, line); err != nil {
			logger.Error("Prompt failed: %v", err)
		}
		cancel()
	}
}
