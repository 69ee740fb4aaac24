package env

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

/**
 * Settings read from KEEPER_* environment variables
 * @property {string} home - Keeper home directory (KEEPER_HOME)
 * @property {string} address - Control API address override (KEEPER_ADDRESS)
 * @property {string} logLevel - Log level override (KEEPER_LOG_LEVEL)
 * @property {string} configFile - Ecosystem file override (KEEPER_CONFIG_FILE)
 */
type Settings struct {
	Home       string
	Address    string
	LogLevel   string `split_words:"true"`
	ConfigFile string `split_words:"true"`
}

var Daemon bool = false

// Version 构建时通过 -ldflags "-X rag-keeper/internal/env.Version=..." 注入
var Version = "dev"

// (default: %USERPROFILE%/.rag-keeper on Windows, $HOME/.rag-keeper on Linux)
var KeeperDir string = GetKeeperDir()

/**
 * Load keeper settings from the process environment
 * @returns {*Settings} Parsed settings
 * @returns {error} Error if a variable can't be parsed
 */
func Load() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("keeper", &s); err != nil {
		return nil, fmt.Errorf("failed to process KEEPER_ environment: %w", err)
	}
	return &s, nil
}

/**
 * Get keeper directory path
 * @returns {string} KEEPER_HOME when set, otherwise ~/.rag-keeper
 */
func GetKeeperDir() string {
	if s, err := Load(); err == nil && s.Home != "" {
		return s.Home
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".rag-keeper")
}

func LogsDir() string {
	return filepath.Join(KeeperDir, "logs")
}

func RunDir() string {
	return filepath.Join(KeeperDir, "run")
}

// SocketPath 控制接口的unix socket地址
func SocketPath() string {
	return filepath.Join(RunDir(), "keeper.sock")
}
