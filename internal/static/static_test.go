package static

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"rag-keeper/internal/shell"
)

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func buildDist(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "assets"), 0755)
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>spa</html>"), 0644)
	os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0644)
	return dir
}

func TestSinglePageFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Options{Root: buildDist(t), Single: true})

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/", 200, "<html>spa</html>"},
		{"/assets/app.js", 200, "console.log(1)"},
		{"/chat/history", 200, "<html>spa</html>"},
		{"/../../etc/passwd", 200, "<html>spa</html>"},
		{"/healthz", 200, `{"status":"ok"}`},
	}
	for _, tt := range tests {
		w := get(t, r, tt.path)
		if w.Code != tt.code || w.Body.String() != tt.body {
			t.Errorf("%s: %d %q", tt.path, w.Code, w.Body.String())
		}
	}
}

func TestWithoutSinglePage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Options{Root: buildDist(t)})

	if w := get(t, r, "/"); w.Code != 200 || w.Body.String() != "<html>spa</html>" {
		t.Errorf("/: %d %q", w.Code, w.Body.String())
	}
	if w := get(t, r, "/chat/history"); w.Code != 404 {
		t.Errorf("unknown path: %d", w.Code)
	}
}

func TestShellFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Options{Root: t.TempDir(), Single: true, Page: shell.DefaultPage()})

	for _, path := range []string{"/", "/anything"} {
		w := get(t, r, path)
		if w.Code != 200 || !strings.Contains(w.Body.String(), `id="chat-root"`) {
			t.Errorf("%s: %d, shell not rendered", path, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s: content type %q", path, ct)
		}
	}
}

func TestListenAddr(t *testing.T) {
	tests := []struct {
		listen  string
		port    int
		want    string
		wantErr bool
	}{
		{"5173", 0, ":5173", false},
		{"", 3000, ":3000", false},
		{"", 0, ":8080", false},
		{"127.0.0.1:5173", 0, "127.0.0.1:5173", false},
		{"5173", 3000, ":5173", false},
		{"70000", 0, "", true},
		{"localhost", 0, "", true},
	}
	for _, tt := range tests {
		got, err := ListenAddr(tt.listen, tt.port)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ListenAddr(%q, %d) = %q, %v", tt.listen, tt.port, got, err)
		}
	}
}
