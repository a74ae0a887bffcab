package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/molstudio/molchat/pkg/api"
	"github.com/molstudio/molchat/pkg/config"
	"github.com/molstudio/molchat/pkg/headless"
	"github.com/molstudio/molchat/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "molchat",
	Short: "Chat with the molstudio workspace",
	Long: `Streaming chat client for the molstudio backend. Runs an interactive
session by default; use --prompt for a single headless turn.`,
	Run: func(cmd *cobra.Command, args []string) {
		prompt := viper.GetString("prompt")
		threadID := viper.GetString("thread")

		client := newAPIClient()

		if prompt != "" {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			if err := headless.RunHeadless(ctx, client, threadID, prompt); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		if err := runREPL(client, threadID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// newAPIClient builds the backend client from loaded settings
func newAPIClient() *api.Client {
	settings := config.Get()
	return api.NewClientWithTimeout(
		settings.Server.URL,
		settings.Server.Token,
		time.Duration(settings.Server.Timeout)*time.Second,
	)
}

// fatalAPIError reports a backend failure and exits. Rejected tokens get a
// login hint.
func fatalAPIError(action string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", action, err)
	if errors.Is(err, api.ErrUnauthorized) {
		fmt.Fprintln(os.Stderr, "Run 'molchat login' to obtain a token.")
	}
	os.Exit(1)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ~/.molchat/settings.yaml)")

	rootCmd.PersistentFlags().String("server", "", "backend server URL")
	viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().String("token", "", "bearer token for the backend")
	viper.BindPFlag("server.token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.Flags().String("thread", "", "thread id to chat on (new thread when empty)")
	viper.BindPFlag("thread", rootCmd.Flags().Lookup("thread"))

	rootCmd.Flags().StringP("prompt", "p", "", "execute a single prompt and exit")
	viper.BindPFlag("prompt", rootCmd.Flags().Lookup("prompt"))

	rootCmd.Flags().Bool("show-analysis", false, "print the model's analysis channel")
	viper.BindPFlag("chat.show_analysis", rootCmd.Flags().Lookup("show-analysis"))
}

func initConfig() {
	if err := config.Init(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}
