package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/molstudio/molchat/pkg/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtain and store an access token",
	Run: func(cmd *cobra.Command, args []string) {
		reader := bufio.NewReader(os.Stdin)

		fmt.Print("Username: ")
		username, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading username: %v\n", err)
			os.Exit(1)
		}

		fmt.Print("Password: ")
		password, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			os.Exit(1)
		}

		client := newAPIClient()
		token, err := client.Login(context.Background(),
			strings.TrimSpace(username), strings.TrimSpace(password))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			os.Exit(1)
		}

		if err := config.SaveToken(token); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Logged in.")
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
