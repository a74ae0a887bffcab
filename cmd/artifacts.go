package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List artifacts of a thread",
	Run: func(cmd *cobra.Command, args []string) {
		threadID, _ := cmd.Flags().GetString("thread")
		if threadID == "" {
			fmt.Fprintln(os.Stderr, "Error: --thread is required")
			os.Exit(1)
		}

		client := newAPIClient()

		const pageSize = 100
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tPATH\tASSET\tRUN")

		total := 0
		for skip := 0; ; skip += pageSize {
			artifacts, count, err := client.ListArtifacts(context.Background(), threadID, skip, pageSize)
			if err != nil {
				fatalAPIError("listing artifacts", err)
			}
			for _, artifact := range artifacts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", artifact.Type, artifact.Path, artifact.AssetID, artifact.RunID)
			}
			total += len(artifacts)
			if total >= count || len(artifacts) == 0 {
				break
			}
		}

		if total == 0 {
			fmt.Println("No artifacts.")
			return
		}
		w.Flush()
	},
}

func init() {
	artifactsCmd.Flags().String("thread", "", "thread id to list artifacts for")
	rootCmd.AddCommand(artifactsCmd)
}
