package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SaveToken persists the access token to the settings file so later
// invocations pick it up without logging in again.
func SaveToken(token string) error {
	viper.Set("server.token", token)
	Global.Server.Token = token

	target := viper.ConfigFileUsed()
	if target == "" {
		target = BuildSettingsPath("settings.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	if err := viper.WriteConfigAs(target); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}
