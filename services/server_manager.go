package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"rag-keeper/internal/config"
	"rag-keeper/internal/env"
	"rag-keeper/internal/logger"
	"rag-keeper/internal/models"
)

// 编辑器保存时可能连续触发多次写事件
const reloadDebounce = 300 * time.Millisecond

// 连接Postgres历史库的超时
const historyConnectTimeout = 10 * time.Second

type Server struct {
	cfg       *config.AppConfig
	pm        *ProcessManager
	logs      *LogService
	recorder  *Recorder
	memory    *MemorySink
	archive   EventArchive
	startTime time.Time
	cfgMutex  sync.RWMutex
	reloadMu  sync.Mutex
}

/**
 * Create new server instance with process manager and history
 * @param {config.AppConfig} cfg - Loaded configuration
 * @returns {Server} Returns new server instance, processes are not started yet
 * @description
 * - Memory history sink is always on, it backs the events API
 * - history.path adds a JSON lines sink
 * - history.postgres_dsn adds a Postgres sink, a connection failure only disables it;
 *   it also answers the events API for processes no longer declared
 * - Registers the process collector in the default prometheus registry
 */
func NewServer(cfg *config.AppConfig) *Server {
	s := &Server{
		cfg:       cfg,
		memory:    NewMemorySink(cfg.History.Keep),
		startTime: time.Now(),
	}
	sinks := []EventSink{s.memory}
	if cfg.History.Path != "" {
		if fs, err := NewFileSink(cfg.History.Path); err != nil {
			logger.Errorf("History file disabled: %v", err)
		} else {
			sinks = append(sinks, fs)
		}
	}
	if cfg.History.PostgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), historyConnectTimeout)
		if ps, err := NewPostgresSink(ctx, cfg.History.PostgresDSN); err != nil {
			logger.Errorf("History database disabled: %v", err)
		} else {
			sinks = append(sinks, ps)
			s.archive = ps
		}
		cancel()
	}
	s.recorder = NewRecorder(cfg.History.Capacity, sinks...)
	s.pm = NewProcessManager(cfg.Apps, s.onEvent)
	s.logs = NewLogService(s.pm)

	if err := registerCollector(prometheus.DefaultRegisterer, NewProcessCollector(s.pm)); err != nil {
		logger.Warnf("Failed to register process collector: %v", err)
	}
	return s
}

// onEvent 在进程实例锁内调用，只做不阻塞的操作
func (s *Server) onEvent(e models.Event) {
	ObserveEvent(e)
	s.recorder.Record(e)
}

func (s *Server) Processes() *ProcessManager {
	return s.pm
}

func (s *Server) Logs() *LogService {
	return s.logs
}

func (s *Server) Config() *config.AppConfig {
	s.cfgMutex.RLock()
	defer s.cfgMutex.RUnlock()
	return s.cfg
}

/**
 * Recent lifecycle events of a process
 * @param {context.Context} ctx - Context of the archive query
 * @param {string} name - Process name
 * @param {int} limit - Maximum number of events, <= 0 means all kept
 * @returns {[]models.Event} Events, oldest first
 * @returns {error} ErrProcessNotFound
 * @description
 * - Declared processes are answered from memory
 * - A process removed by reload is looked up in the history database
 */
func (s *Server) Events(ctx context.Context, name string, limit int) ([]models.Event, error) {
	if _, err := s.pm.lookup(name); err == nil {
		return s.memory.Events(name, limit), nil
	}
	if s.archive == nil {
		return nil, ErrProcessNotFound
	}
	events, err := s.archive.Recent(ctx, name, limit)
	if err != nil {
		logger.Warnf("Failed to query history of '%s': %v", name, err)
		return nil, ErrProcessNotFound
	}
	if len(events) == 0 {
		return nil, ErrProcessNotFound
	}
	return events, nil
}

/**
 * Start managed processes and background tasks
 * @param {context.Context} ctx - Background tasks stop when ctx is cancelled
 * @description
 * - Apps that fail to start are retried by their restart policy, the error is only logged
 * - Starts metrics pushing and config watching when configured
 */
func (s *Server) Start(ctx context.Context) {
	cfg := s.Config()
	if err := s.pm.StartAll(ctx); err != nil {
		logger.Errorf("Some processes failed to start: %v", err)
	}
	go StartPushMetrics(ctx, cfg.Metrics, prometheus.DefaultGatherer)
	if cfg.Server.WatchConfig {
		s.WatchConfig(ctx)
	}
}

/**
 * Stop all processes and flush history
 * @description
 * - Waits for every process to exit, then drains the history recorder
 */
func (s *Server) Stop() {
	s.pm.StopAll()
	if err := s.recorder.Close(); err != nil {
		logger.Warnf("Failed to close history sinks: %v", err)
	}
}

/**
 * Reload the ecosystem file and apply it
 * @param {context.Context} ctx - Context for starting added apps
 * @returns {ReconcileResult} Names added, removed and updated
 * @returns {error} Load or validation error, the running set is unchanged then
 */
func (s *Server) Reload(ctx context.Context) (ReconcileResult, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	cur := s.Config()
	if cur.File == "" {
		return ReconcileResult{}, errors.New("configuration was not loaded from a file")
	}
	cfg, err := config.Load(cur.File, cur.Profile)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reload %s: %w", cur.File, err)
	}
	result := s.pm.Reconcile(ctx, cfg.Apps)
	for _, name := range result.Removed {
		s.memory.Forget(name)
	}
	s.cfgMutex.Lock()
	s.cfg = cfg
	s.cfgMutex.Unlock()
	config.Set(cfg)
	return result, nil
}

/**
 * Reload when the ecosystem file is written
 * @param {context.Context} ctx - Later events are ignored once ctx is cancelled
 */
func (s *Server) WatchConfig(ctx context.Context) {
	file := s.Config().File
	if file == "" {
		return
	}
	var timer *time.Timer
	var mu sync.Mutex

	v := viper.New()
	v.SetConfigFile(file)
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			logger.Infof("Configuration file %s changed, reloading", e.Name)
			if _, err := s.Reload(ctx); err != nil {
				logger.Errorf("Reload failed, keeping current apps: %v", err)
			}
		})
	})
	v.WatchConfig()
	logger.Infof("Watching %s for changes", file)
}

/**
 * Get health check response for the server
 * @returns {models.HealthResponse} Version, uptime, process counts and request counters
 */
func (s *Server) GetHealthz() models.HealthResponse {
	uptime := time.Since(s.startTime)

	metrics := models.Metrics{
		TotalRequests: GetTotalRequestCount(),
		ErrorRequests: GetTotalErrorCount(),
	}
	for _, d := range s.pm.GetProcesses() {
		metrics.TotalProcesses++
		switch d.Status {
		case models.StatusRunning:
			metrics.RunningProcesses++
		case models.StatusErrored:
			metrics.ErroredProcesses++
		}
	}
	return models.HealthResponse{
		Version:   env.Version,
		StartTime: s.startTime.Format(time.RFC3339),
		Status:    "UP",
		Uptime:    uptime.Truncate(time.Second).String(),
		Metrics:   metrics,
	}
}
