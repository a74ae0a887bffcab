package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List chat threads",
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient()

		threads, err := client.ListThreads(context.Background())
		if err != nil {
			fatalAPIError("listing threads", err)
		}

		if len(threads) == 0 {
			fmt.Println("No threads.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "THREAD\tTITLE\tSTATUS\tUPDATED")
		for _, thread := range threads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", thread.ThreadID, thread.Title, thread.Status, thread.UpdatedAt)
		}
		w.Flush()
	},
}

var threadsNewCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Create a thread",
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient()

		thread, err := client.CreateThread(context.Background(), strings.Join(args, " "))
		if err != nil {
			fatalAPIError("creating thread", err)
		}
		fmt.Println(thread.ThreadID)
	},
}

var threadsRenameCmd = &cobra.Command{
	Use:   "rename <thread-id> <title>",
	Short: "Rename a thread",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient()

		if _, err := client.RenameThread(context.Background(), args[0], strings.Join(args[1:], " ")); err != nil {
			fatalAPIError("renaming thread", err)
		}
	},
}

func init() {
	threadsCmd.AddCommand(threadsNewCmd)
	threadsCmd.AddCommand(threadsRenameCmd)
	rootCmd.AddCommand(threadsCmd)
}
