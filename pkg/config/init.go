package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings holds all configuration values
type Settings struct {
	// Server configuration
	Server struct {
		URL     string
		Token   string
		Timeout int
	}

	// Chat behavior
	Chat struct {
		ShowAnalysis bool
		TickInterval int
	}

	// Logging configuration
	Logging struct {
		LogFile string
		Persist bool
		Level   string
	}
}

// Global is the loaded settings instance
var Global Settings

// Get returns the current settings
func Get() *Settings {
	return &Global
}

// Init initializes viper and loads settings. An explicit config file path
// takes precedence over the default ~/.molchat/settings.yaml.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		viper.AddConfigPath(filepath.Join(home, ".molchat"))
		viper.SetConfigName("settings")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.SetEnvPrefix("MOLCHAT")
	viper.AutomaticEnv()
	viper.BindEnv("server.url", "MOLCHAT_SERVER_URL")
	viper.BindEnv("server.token", "MOLCHAT_TOKEN")

	// Missing config file is fine; defaults and env cover it
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return Load()
}

// setDefaults sets all default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.url", "http://localhost:8000")
	viper.SetDefault("server.token", "")
	viper.SetDefault("server.timeout", 30)

	// Chat defaults
	viper.SetDefault("chat.show_analysis", false)
	viper.SetDefault("chat.tick_interval", 1000)

	// Logging defaults
	viper.SetDefault("logging.log_file", "system.log")
	viper.SetDefault("logging.persist", false)
	viper.SetDefault("logging.level", "info")
}

// Load loads configuration from viper into the Settings struct
func Load() error {
	Global.Server.URL = viper.GetString("server.url")
	Global.Server.Token = viper.GetString("server.token")
	Global.Server.Timeout = viper.GetInt("server.timeout")

	Global.Chat.ShowAnalysis = viper.GetBool("chat.show_analysis")
	Global.Chat.TickInterval = viper.GetInt("chat.tick_interval")

	Global.Logging.LogFile = viper.GetString("logging.log_file")
	Global.Logging.Persist = viper.GetBool("logging.persist")
	Global.Logging.Level = viper.GetString("logging.level")

	return nil
}
