package configcmd

import (
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"rag-keeper/cmd/root"
	"rag-keeper/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the ecosystem file (validate/show)",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the ecosystem file without starting anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := root.LoadConfig()
		if err != nil {
			return fmt.Errorf("%s is invalid:\n%w", root.ConfigFile, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid, %d apps\n", cfg.File, len(cfg.Apps))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration with every default filled in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := root.LoadConfig()
		if err != nil {
			return err
		}
		return showConfig(cmd.OutOrStdout(), cfg)
	},
}

// resolvedConfig config show的输出格式，键名与ecosystem文件一致
type resolvedConfig struct {
	File    string               `json:"file"`
	Profile string               `json:"profile,omitempty"`
	Server  config.ServerConfig  `json:"server"`
	Log     config.LogConfig     `json:"log"`
	Metrics config.MetricsConfig `json:"metrics"`
	History config.HistoryConfig `json:"history"`
	Page    config.PageConfig    `json:"page"`
	Apps    []config.AppSpec     `json:"apps"`
}

/**
 * Print resolved configuration as YAML
 * @param {io.Writer} w - Output
 * @param {*config.AppConfig} cfg - Loaded configuration
 * @returns {error} Marshal error
 */
func showConfig(w io.Writer, cfg *config.AppConfig) error {
	history := cfg.History
	if u, err := url.Parse(history.PostgresDSN); err == nil && u.User != nil {
		history.PostgresDSN = u.Redacted()
	}
	data, err := yaml.Marshal(resolvedConfig{
		File:    cfg.File,
		Profile: cfg.Profile,
		Server:  cfg.Server,
		Log:     cfg.Log,
		Metrics: cfg.Metrics,
		History: history,
		Page:    cfg.Page,
		Apps:    cfg.Apps,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func init() {
	root.RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(showCmd)
	configCmd.Example = `  rag-keeper config validate -c ecosystem.yaml
  rag-keeper config show --env production`
}
