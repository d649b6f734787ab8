package main

import (
	"fmt"
	"net/url"
	"os"

	"dyfav/pkg/checkpoint"
	"dyfav/pkg/config"
	"dyfav/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with all defaults",
	Long: `Write the default configuration to dyfav.yaml, or to the path given with
--config. A .toml extension writes TOML instead of YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = "dyfav.yaml"
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration written to " + path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, make(map[string]interface{}))
		if err != nil {
			return err
		}
		masked := *cfg
		masked.Redis.Password = maskSecret(masked.Redis.Password)
		masked.Storage.PostgresDSN = maskURL(masked.Storage.PostgresDSN)
		masked.Storage.MongoURI = maskURL(masked.Storage.MongoURI)

		out, err := yaml.Marshal(&masked)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for invalid values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(configFile, make(map[string]interface{})); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration is valid")
		return nil
	},
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or clear the run ledger of the output directory",
}

var checkpointInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the outcome totals recorded for the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := checkpointManager()
		if err != nil {
			return err
		}
		info, err := mgr.GetCheckpointInfo()
		if err != nil {
			return err
		}
		if info == nil {
			ui.PrintInfo("Checkpoint", "none")
			return nil
		}
		ui.PrintInfo("Checkpoint", mgr.Path())
		for _, key := range []string{"run_id", "items", "downloaded", "skipped", "failed", "updated_at"} {
			if v, ok := info[key]; ok {
				ui.PrintInfo("  "+key, fmt.Sprint(v))
			}
		}
		return nil
	},
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the run ledger of the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := checkpointManager()
		if err != nil {
			return err
		}
		if err := mgr.Lock(); err != nil {
			return err
		}
		defer mgr.Unlock()
		return mgr.Delete()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")

	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointInfoCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)
	checkpointCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "media output directory")
}

func checkpointManager() (*checkpoint.Manager, error) {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return checkpoint.NewManager(cfg.Output.BaseDirectory, nil)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// maskURL hides the password of a connection URL
func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
