// Package static serves a built frontend directory, falling back to the
// chat page shell when the directory has no index.html.
package static

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rag-keeper/internal/logger"
	"rag-keeper/internal/shell"
)

const indexFile = "index.html"

/**
 * Options static server settings
 * @property {string} root - Directory to serve
 * @property {bool} single - Single page mode, unknown paths serve index.html
 * @property {shell.Page} page - Shell rendered when root has no index.html
 */
type Options struct {
	Root   string
	Single bool
	Page   shell.Page
}

/**
 * Build listen address from serve flags
 * @param {string} listen - -l value: a port ("5173") or host:port
 * @param {int} port - -p value, used when listen is empty
 * @returns {string} Address for net.Listen
 * @returns {error} Invalid port
 */
func ListenAddr(listen string, port int) (string, error) {
	if listen == "" {
		if port <= 0 {
			port = 8080
		}
		listen = strconv.Itoa(port)
	}
	if n, err := strconv.Atoi(listen); err == nil {
		if n <= 0 || n > 65535 {
			return "", fmt.Errorf("invalid port %d", n)
		}
		return ":" + listen, nil
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	return listen, nil
}

type handler struct {
	opts Options
}

/**
 * Create the static file router
 * @param {Options} opts - Server settings
 * @returns {*gin.Engine} Router serving files, /healthz and fallbacks
 */
func NewRouter(opts Options) *gin.Engine {
	h := &handler{opts: opts}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.NoRoute(h.serve)
	return r
}

// resolve 把请求路径映射到root下的文件，Clean保证不会跳出root
func (h *handler) resolve(urlPath string) string {
	clean := path.Clean("/" + urlPath)
	return filepath.Join(h.opts.Root, filepath.FromSlash(clean))
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func (h *handler) serve(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusMethodNotAllowed)
		return
	}
	target := h.resolve(c.Request.URL.Path)
	if isFile(target) {
		c.File(target)
		return
	}
	if dirIndex := filepath.Join(target, indexFile); isFile(dirIndex) {
		h.serveIndex(c, dirIndex)
		return
	}
	if c.Request.URL.Path == "/" || h.opts.Single {
		rootIndex := filepath.Join(h.opts.Root, indexFile)
		if isFile(rootIndex) {
			h.serveIndex(c, rootIndex)
			return
		}
		h.serveShell(c)
		return
	}
	c.String(http.StatusNotFound, "404 page not found")
}

// serveIndex 直接写文件内容，http.ServeFile会把/index.html重定向
func (h *handler) serveIndex(c *gin.Context, file string) {
	data, err := os.ReadFile(file)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

func (h *handler) serveShell(c *gin.Context) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := shell.Render(c.Writer, h.opts.Page); err != nil {
		logger.Errorf("Failed to render chat page: %v", err)
	}
}

/**
 * Serve until ctx is cancelled
 * @param {context.Context} ctx - Cancelling shuts the server down gracefully
 * @param {string} addr - Listen address
 * @param {Options} opts - Server settings
 * @returns {error} Listen error, nil after a graceful shutdown
 */
func Serve(ctx context.Context, addr string, opts Options) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Serving %s on %s (single page: %v)", opts.Root, addr, opts.Single)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
