package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rag-keeper/internal/models"
	"rag-keeper/services"
)

type APIController struct {
	server *services.Server
}

/**
 * Create new API controller instance
 * @param {*services.Server} server - Keeper server owning the processes and configuration
 * @returns {*APIController} New API controller instance
 */
func NewAPIController(server *services.Server) *APIController {
	return &APIController{
		server: server,
	}
}

/**
 * Register keeper level routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - /healthz readiness probe
 * - /metrics prometheus exposition
 * - /keeper/api/v1/reload configuration reload
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/keeper/api/v1/reload", a.ReloadConfig)
}

// @Summary 重新加载配置
// @Description 重新读取ecosystem文件，新增的进程被启动，删除的进程被停止，保留的进程下次拉起时使用新配置
// @Tags Config
// @Produce json
// @Success 200 {object} services.ReconcileResult
// @Failure 500 {object} models.ErrorResponse
// @Router /keeper/api/v1/reload [post]
func (a *APIController) ReloadConfig(c *gin.Context) {
	result, err := a.server.Reload(c.Request.Context())
	if err != nil {
		c.JSON(500, &models.ErrorResponse{
			Code:  "config.reload_failed",
			Error: "Failed to reload configuration: " + err.Error(),
		})
		return
	}
	c.JSON(200, result)
}

// @Summary 业务就绪探针
// @Description 返回版本、启动时间、运行时长、托管进程统计和请求统计
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	c.JSON(200, a.server.GetHealthz())
}
