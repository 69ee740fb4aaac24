package main

import (
	"os"

	_ "rag-keeper/cmd"
	"rag-keeper/cmd/root"
	"rag-keeper/internal/config"
	"rag-keeper/internal/logger"
)

func main() {
	// server模式同时输出到控制台，之后按配置文件重新初始化
	isServerMode := len(os.Args) > 1 && os.Args[1] == "server"
	logger.InitLoggerWithMode(&config.App().Log, isServerMode)

	if err := root.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
