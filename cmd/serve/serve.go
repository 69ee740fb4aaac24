package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"rag-keeper/cmd/root"
	"rag-keeper/internal/config"
	"rag-keeper/internal/logger"
	"rag-keeper/internal/shell"
	"rag-keeper/internal/static"
)

var (
	single bool
	listen string
	port   int
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Serve a static directory, the chat page shell when it has no index.html",
	Long: `Serve the files of dir (default: current directory) over HTTP.
With --single unknown paths fall back to index.html, the way a single page app expects.
When dir has no index.html the chat page shell configured in the ecosystem file is served.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		opts, addr, err := buildOptions(dir, listen, port)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return static.Serve(ctx, addr, opts)
	},
}

/**
 * Resolve serve arguments into server options
 * @param {string} dir - Directory to serve
 * @param {string} listen - -l value
 * @param {int} port - -p value
 * @returns {static.Options} Options with the configured chat page
 * @returns {string} Listen address
 */
func buildOptions(dir, listen string, port int) (static.Options, string, error) {
	root.LoadClientConfig()
	cfg := config.App()
	// serve常作为托管进程运行，日志写到stdout由keeper收集
	logger.InitLogger(&config.LogConfig{Level: cfg.Log.Level, Path: "console", Format: cfg.Log.Format})
	gin.SetMode(gin.ReleaseMode)

	abs, err := filepath.Abs(dir)
	if err != nil {
		return static.Options{}, "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return static.Options{}, "", err
	}
	if !info.IsDir() {
		return static.Options{}, "", fmt.Errorf("%s is not a directory", abs)
	}
	addr, err := static.ListenAddr(listen, port)
	if err != nil {
		return static.Options{}, "", err
	}
	return static.Options{
		Root:   abs,
		Single: single,
		Page:   shell.PageFromConfig(cfg.Page),
	}, addr, nil
}

func init() {
	root.RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().SortFlags = false
	serveCmd.Flags().BoolVarP(&single, "single", "s", false, "Single page mode, rewrite unknown paths to index.html")
	serveCmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen port or host:port")
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Listen port, used when --listen is not set")
	serveCmd.Example = `  # what "serve -s dist -l 5173" used to do
  rag-keeper serve -s frontend/dist -l 5173
  rag-keeper serve -s frontend/dist -p 5173`
}
