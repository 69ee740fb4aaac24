package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"rag-keeper/internal/config"
	"rag-keeper/internal/logger"
	"rag-keeper/internal/models"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_request_total",
			Help: "Total control API requests",
		},
		[]string{"route"},
	)

	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_request_errors_total",
			Help: "Control API requests answered with status >= 400",
		},
		[]string{"route"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keeper_request_duration_seconds",
			Help:    "Duration of control API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_process_starts_total",
			Help: "Successful spawns per managed process",
		},
		[]string{"name"},
	)

	processExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_process_exits_total",
			Help: "Unexpected exits and failed spawns per managed process",
		},
		[]string{"name", "type"},
	)

	// healthz用的本地计数，prometheus的counter不方便读回
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
)

func init() {
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestErrors)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(processStarts)
	prometheus.MustRegister(processExits)
}

func IncrementRequestCount(route string) {
	requestCount.WithLabelValues(route).Inc()
	totalRequests.Add(1)
}

func RecordRequestDuration(route string, seconds float64) {
	requestDuration.WithLabelValues(route).Observe(seconds)
}

func IncrementErrorCount(route string) {
	requestErrors.WithLabelValues(route).Inc()
	totalErrors.Add(1)
}

func GetTotalRequestCount() int64 {
	return totalRequests.Load()
}

func GetTotalErrorCount() int64 {
	return totalErrors.Load()
}

// ObserveEvent 根据生命周期事件更新进程计数器
func ObserveEvent(e models.Event) {
	switch e.Type {
	case models.EventStart:
		processStarts.WithLabelValues(e.Name).Inc()
	case models.EventExit, models.EventStartFailed:
		processExits.WithLabelValues(e.Name, string(e.Type)).Inc()
	}
}

/**
 * processCollector 采集时读取每个托管进程的状态
 * @property {*ProcessManager} pm - 进程管理器
 */
type processCollector struct {
	pm       *ProcessManager
	up       *prometheus.Desc
	restarts *prometheus.Desc
	uptime   *prometheus.Desc
}

func NewProcessCollector(pm *ProcessManager) prometheus.Collector {
	return &processCollector{
		pm: pm,
		up: prometheus.NewDesc("keeper_process_up",
			"1 when the managed process is running", []string{"name", "status"}, nil),
		restarts: prometheus.NewDesc("keeper_process_restarts",
			"Total restarts of the managed process", []string{"name"}, nil),
		uptime: prometheus.NewDesc("keeper_process_uptime_seconds",
			"Seconds since the current run started, 0 when not running", []string{"name"}, nil),
	}
}

func (c *processCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.restarts
	ch <- c.uptime
}

func (c *processCollector) Collect(ch chan<- prometheus.Metric) {
	for _, d := range c.pm.GetProcesses() {
		up, uptime := 0.0, 0.0
		if d.Status == models.StatusRunning {
			up = 1
			uptime = time.Since(d.StartTime).Seconds()
		}
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up, d.Name, string(d.Status))
		ch <- prometheus.MustNewConstMetric(c.restarts, prometheus.CounterValue, float64(d.TotalRestarts), d.Name)
		ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, uptime, d.Name)
	}
}

/**
 * Register a collector, replacing a previously registered one with the same descriptors
 * @param {prometheus.Registerer} reg - Target registry
 * @param {prometheus.Collector} c - Collector to register
 * @returns {error} Registration error other than a duplicate
 */
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	err := reg.Register(c)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		reg.Unregister(are.ExistingCollector)
		return reg.Register(c)
	}
	return err
}

/**
 * Push metrics to the Pushgateway once
 * @param {config.MetricsConfig} cfg - Pushgateway address and job name
 * @param {prometheus.Gatherer} g - Metrics source
 * @returns {error} Push error
 */
func PushMetrics(cfg config.MetricsConfig, g prometheus.Gatherer) error {
	return push.New(cfg.Pushgateway, cfg.Job).Gatherer(g).Push()
}

/**
 * Push metrics periodically until ctx is cancelled
 * @param {context.Context} ctx - Stops the loop
 * @param {config.MetricsConfig} cfg - Empty pushgateway disables pushing
 * @param {prometheus.Gatherer} g - Metrics source
 */
func StartPushMetrics(ctx context.Context, cfg config.MetricsConfig, g prometheus.Gatherer) {
	if cfg.Pushgateway == "" {
		logger.Info("Metrics pushing is disabled (no pushgateway)")
		return
	}
	interval := time.Duration(cfg.PushInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := PushMetrics(cfg, g); err != nil {
				logger.Warnf("Failed to push metrics to %s: %v", cfg.Pushgateway, err)
			}
		}
	}
}
