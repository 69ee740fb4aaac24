package root

import (
	"os"

	"github.com/spf13/cobra"

	"rag-keeper/internal/config"
	"rag-keeper/internal/env"
	"rag-keeper/internal/logger"
)

const defaultConfigFile = "ecosystem.yaml"

var (
	// ConfigFile ecosystem文件路径(--config)
	ConfigFile string
	// Profile 选择env_<profile>块(--env)
	Profile string
)

var RootCmd = &cobra.Command{
	Use:   "rag-keeper",
	Short: "Process keeper for the RAG chatbot stack",
	Long: `rag-keeper starts the processes declared in an ecosystem file, restarts them
when they crash, routes their output to log files and serves the chat frontend.`,
	SilenceUsage: true,
}

func init() {
	def := defaultConfigFile
	if s, err := env.Load(); err == nil && s.ConfigFile != "" {
		def = s.ConfigFile
	}
	RootCmd.PersistentFlags().StringVarP(&ConfigFile, "config", "c", def, "Ecosystem file (YAML or JSON)")
	RootCmd.PersistentFlags().StringVar(&Profile, "env", "", "Environment profile, selects env_<profile> blocks")
}

/**
 * Load the ecosystem file selected by --config and --env
 * @returns {*config.AppConfig} Validated configuration, also set as current
 * @returns {error} Read or validation error
 */
func LoadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(ConfigFile, Profile)
	if err != nil {
		return nil, err
	}
	config.Set(cfg)
	return cfg, nil
}

/**
 * Load settings for client verbs that talk to a running keeper
 * @description
 * - A missing ecosystem file is fine, defaults locate the keeper
 * - An invalid file only logs a warning
 */
func LoadClientConfig() {
	if _, err := os.Stat(ConfigFile); err != nil {
		return
	}
	if _, err := LoadConfig(); err != nil {
		logger.Warnf("Ignoring %s: %v", ConfigFile, err)
	}
}
