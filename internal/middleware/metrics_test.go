package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/ok", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/fail", func(c *gin.Context) { c.String(500, "fail") })

	total, errs := GetTotalRequests(), GetErrorRequests()
	for _, path := range []string{"/ok", "/fail", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	if got := GetTotalRequests() - total; got != 3 {
		t.Errorf("counted %d requests, want 3", got)
	}
	// /fail 和 404
	if got := GetErrorRequests() - errs; got != 2 {
		t.Errorf("counted %d errors, want 2", got)
	}
}
