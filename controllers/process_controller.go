package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rag-keeper/internal/models"
	"rag-keeper/services"
)

type ProcessController struct {
	server *services.Server
}

/**
 * Create new process controller instance
 * @param {*services.Server} server - Keeper server owning the process manager
 * @returns {*ProcessController} New process controller instance
 */
func NewProcessController(server *services.Server) *ProcessController {
	return &ProcessController{
		server: server,
	}
}

/**
 * Register process API routes
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - list/get/start/stop/restart/reset/logs/events under /keeper/api/v1/processes
 */
func (p *ProcessController) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/keeper/api/v1")
	api.GET("/processes", p.ListProcesses)
	api.GET("/processes/:name", p.GetProcess)
	api.POST("/processes/:name/start", p.StartProcess)
	api.POST("/processes/:name/stop", p.StopProcess)
	api.POST("/processes/:name/restart", p.RestartProcess)
	api.POST("/processes/:name/reset", p.ResetProcess)
	api.GET("/processes/:name/logs", p.TailLogs)
	api.GET("/processes/:name/events", p.ListEvents)
}

func notExist(c *gin.Context, name string) {
	c.JSON(http.StatusNotFound, &models.ErrorResponse{
		Code:  "process.notexist",
		Error: fmt.Sprintf("process [%s] isn't exist", name),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, &models.ErrorResponse{
		Code:  "request.invalid",
		Error: err.Error(),
	})
}

// queryInt 读取非负整数查询参数，缺省时返回0
func queryInt(c *gin.Context, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// ListProcesses lists all managed processes
//
//	@Summary		List processes
//	@Description	Get all managed processes in declaration order
//	@Tags			Processes
//	@Produce		json
//	@Success		200	{array}	models.ProcessDetail
//	@Router			/keeper/api/v1/processes [get]
func (p *ProcessController) ListProcesses(c *gin.Context) {
	c.JSON(http.StatusOK, p.server.Processes().GetProcesses())
}

// GetProcess returns one managed process
//
//	@Summary		Get process
//	@Tags			Processes
//	@Produce		json
//	@Param			name	path		string	true	"Process name"
//	@Success		200		{object}	models.ProcessDetail
//	@Failure		404		{object}	models.ErrorResponse
//	@Router			/keeper/api/v1/processes/{name} [get]
func (p *ProcessController) GetProcess(c *gin.Context) {
	name := c.Param("name")
	detail, err := p.server.Processes().GetProcess(name)
	if err != nil {
		notExist(c, name)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// StartProcess starts a stopped, exited or errored process
//
//	@Summary		Start process
//	@Tags			Processes
//	@Produce		json
//	@Param			name	path		string	true	"Process name"
//	@Success		200		{object}	models.ProcessDetail
//	@Failure		404		{object}	models.ErrorResponse
//	@Failure		409		{object}	models.ErrorResponse	"Process is already running"
//	@Failure		500		{object}	models.ErrorResponse	"Spawn failed, automatic restarts continue"
//	@Router			/keeper/api/v1/processes/{name}/start [post]
func (p *ProcessController) StartProcess(c *gin.Context) {
	name := c.Param("name")
	pm := p.server.Processes()
	err := pm.StartProcess(name)
	switch {
	case errors.Is(err, services.ErrProcessNotFound):
		notExist(c, name)
		return
	case errors.Is(err, services.ErrProcessAlreadyRunning):
		c.JSON(http.StatusConflict, &models.ErrorResponse{
			Code:  "process.running",
			Error: fmt.Sprintf("process [%s] is already running", name),
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Code:  "process.start_failed",
			Error: err.Error(),
		})
		return
	}
	detail, _ := pm.GetProcess(name)
	c.JSON(http.StatusOK, detail)
}

// StopProcess stops a process and cancels pending restarts
//
//	@Summary		Stop process
//	@Tags			Processes
//	@Produce		json
//	@Param			name	path		string	true	"Process name"
//	@Success		200		{object}	models.ProcessDetail
//	@Failure		404		{object}	models.ErrorResponse
//	@Failure		409		{object}	models.ErrorResponse	"Process is already stopped"
//	@Router			/keeper/api/v1/processes/{name}/stop [post]
func (p *ProcessController) StopProcess(c *gin.Context) {
	name := c.Param("name")
	pm := p.server.Processes()
	err := pm.StopProcess(name)
	switch {
	case errors.Is(err, services.ErrProcessNotFound):
		notExist(c, name)
		return
	case errors.Is(err, services.ErrProcessNotRunning):
		c.JSON(http.StatusConflict, &models.ErrorResponse{
			Code:  "process.notrunning",
			Error: fmt.Sprintf("process [%s] isn't running", name),
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Code:  "process.stop_failed",
			Error: err.Error(),
		})
		return
	}
	detail, _ := pm.GetProcess(name)
	c.JSON(http.StatusOK, detail)
}

// RestartProcess stops and starts a process, reviving errored ones
//
//	@Summary		Restart process
//	@Tags			Processes
//	@Produce		json
//	@Param			name	path		string	true	"Process name"
//	@Success		200		{object}	models.ProcessDetail
//	@Failure		404		{object}	models.ErrorResponse
//	@Failure		500		{object}	models.ErrorResponse
//	@Router			/keeper/api/v1/processes/{name}/restart [post]
func (p *ProcessController) RestartProcess(c *gin.Context) {
	name := c.Param("name")
	pm := p.server.Processes()
	err := pm.RestartProcess(name)
	if errors.Is(err, services.ErrProcessNotFound) {
		notExist(c, name)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Code:  "process.restart_failed",
			Error: err.Error(),
		})
		return
	}
	detail, _ := pm.GetProcess(name)
	c.JSON(http.StatusOK, detail)
}

// ResetProcess clears restart counters
//
//	@Summary		Reset restart counters
//	@Tags			Processes
//	@Produce		json
//	@Param			name	path		string	true	"Process name"
//	@Success		200		{object}	models.ProcessDetail
//	@Failure		404		{object}	models.ErrorResponse
//	@Router			/keeper/api/v1/processes/{name}/reset [post]
func (p *ProcessController) ResetProcess(c *gin.Context) {
	name := c.Param("name")
	pm := p.server.Processes()
	if err := pm.ResetProcess(name); err != nil {
		notExist(c, name)
		return
	}
	detail, _ := pm.GetProcess(name)
	c.JSON(http.StatusOK, detail)
}

// TailLogs returns the last lines of out_file or error_file
//
//	@Summary		Tail process log
//	@Tags			Processes
//	@Produce		json
//	@Param			name	path		string	true	"Process name"
//	@Param			stream	query		string	false	"out or err"	default(out)
//	@Param			lines	query		int		false	"Number of lines"	default(50)
//	@Success		200		{object}	models.LogTail
//	@Failure		400		{object}	models.ErrorResponse
//	@Failure		404		{object}	models.ErrorResponse
//	@Router			/keeper/api/v1/processes/{name}/logs [get]
func (p *ProcessController) TailLogs(c *gin.Context) {
	name := c.Param("name")
	lines, err := queryInt(c, "lines")
	if err != nil {
		badRequest(c, err)
		return
	}
	tail, err := p.server.Logs().Tail(name, c.Query("stream"), lines)
	switch {
	case errors.Is(err, services.ErrProcessNotFound):
		notExist(c, name)
		return
	case errors.Is(err, services.ErrInvalidStream):
		badRequest(c, err)
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Code:  "log.read_failed",
			Error: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, tail)
}

// ListEvents returns recent lifecycle events of a process
//
//	@Summary		Process events
//	@Tags			Processes
//	@Produce		json
//	@Param			name	path		string	true	"Process name"
//	@Param			limit	query		int		false	"Maximum number of events"
//	@Success		200		{array}		models.Event
//	@Failure		404		{object}	models.ErrorResponse
//	@Router			/keeper/api/v1/processes/{name}/events [get]
func (p *ProcessController) ListEvents(c *gin.Context) {
	name := c.Param("name")
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, err)
		return
	}
	events, err := p.server.Events(c.Request.Context(), name, limit)
	if err != nil {
		notExist(c, name)
		return
	}
	c.JSON(http.StatusOK, events)
}
