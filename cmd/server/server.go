package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"rag-keeper/cmd/root"
	"rag-keeper/controllers"
	"rag-keeper/internal/env"
	"rag-keeper/internal/logger"
	"rag-keeper/internal/middleware"
	"rag-keeper/internal/utils"
	"rag-keeper/services"
)

// HTTP服务优雅退出的最长等待时间
const shutdownTimeout = 5 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the keeper daemon",
	Long: `Start every app declared in the ecosystem file, keep them running according to
their restart policy and serve the control API on TCP and a unix socket.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

/**
 * Run keeper daemon until SIGINT/SIGTERM
 * @param {context.Context} ctx - Parent context
 * @returns {error} Configuration or listener error
 * @description
 * - Loads and validates the ecosystem file, nothing starts on a validation error
 * - Creates TCP and unix socket listeners for the control API
 * - Starts managed processes, then serves requests
 * - On signal: stops the HTTP server, stops all processes, flushes history
 */
func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	env.Daemon = true
	logger.InitLoggerWithMode(&cfg.Log, true)
	gin.SetMode(cfg.Server.Mode)

	if err := utils.CheckAddrAvailable(cfg.Server.Address); err != nil {
		return fmt.Errorf("another keeper may be running: %w", err)
	}
	addrs := []ListenAddr{{Network: "tcp", Address: cfg.Server.Address}}
	if IsUnixSocketSupported() && cfg.Server.Socket != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Server.Socket), 0755); err != nil {
			logger.Warnf("Failed to create socket directory: %v", err)
		} else {
			addrs = append(addrs, ListenAddr{Network: "unix", Address: cfg.Server.Socket})
		}
	}
	listeners, err := CreateListeners(addrs)
	if len(listeners) == 0 {
		return fmt.Errorf("no listener available: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := services.NewServer(cfg)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.MetricsMiddleware())
	controllers.NewAPIController(server).RegisterRoutes(router)
	controllers.NewProcessController(server).RegisterRoutes(router)

	server.Start(ctx)
	logger.Infof("Keeper %s started with %d apps from %s", env.Version, len(cfg.Apps), cfg.File)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	for _, l := range listeners {
		go serve(httpServer, l)
	}

	<-ctx.Done()
	logger.Info("Shutting down keeper")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP server shutdown: %v", err)
	}
	server.Stop()
	if cfg.Server.Socket != "" {
		os.Remove(cfg.Server.Socket)
	}
	logger.Info("Keeper stopped")
	return nil
}

func serve(srv *http.Server, l net.Listener) {
	logger.Infof("Control API listening on %s://%s", l.Addr().Network(), l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Listener %s stopped: %v", l.Addr().String(), err)
	}
}

func init() {
	root.RootCmd.AddCommand(serverCmd)
	serverCmd.Example = `  rag-keeper server -c ecosystem.yaml
  rag-keeper server -c ecosystem.yaml --env production`
}
