package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bibfix/internal/api"
	"github.com/jackzampolin/bibfix/internal/config"
	"github.com/jackzampolin/bibfix/internal/home"
	"github.com/jackzampolin/bibfix/internal/server/endpoints"
)

var (
	configInitPath  string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the bibfix configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		if path == "" {
			h, err := home.New(homeDir)
			if err != nil {
				return err
			}
			if err := h.EnsureExists(); err != nil {
				return err
			}
			path = h.ConfigPath()
		}

		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		return api.Output(endpoints.SettingsResponse{File: cm.FileUsed(), Config: cm.Get()})
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "Where to write the file (default: <home>/config.yaml)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
