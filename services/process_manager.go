package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"rag-keeper/internal/config"
	"rag-keeper/internal/logger"
	"rag-keeper/internal/models"
)

/**
 * ProcessManager 按名字管理进程实例
 * @property {map[string]*ProcessInstance} processes - 名字到实例
 * @property {[]string} order - 配置文件中的声明顺序
 */
type ProcessManager struct {
	processes map[string]*ProcessInstance
	order     []string
	onEvent   func(models.Event)
	mutex     sync.RWMutex
}

/**
 * ReconcileResult 重新加载配置后的变化
 */
type ReconcileResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Updated []string `json:"updated"`
}

/**
 * Create process manager from validated app declarations
 * @param {[]config.AppSpec} apps - Apps in declaration order, names already unique
 * @param {func(models.Event)} onEvent - Lifecycle event sink, may be nil
 * @returns {*ProcessManager} Manager with every app in stopped state
 */
func NewProcessManager(apps []config.AppSpec, onEvent func(models.Event)) *ProcessManager {
	pm := &ProcessManager{
		processes: make(map[string]*ProcessInstance, len(apps)),
		onEvent:   onEvent,
	}
	for _, app := range apps {
		pm.processes[app.Name] = NewProcessInstance(app, onEvent)
		pm.order = append(pm.order, app.Name)
	}
	return pm
}

func (pm *ProcessManager) GetInstance(name string) *ProcessInstance {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()
	return pm.processes[name]
}

// GetInstances 按声明顺序返回所有实例
func (pm *ProcessManager) GetInstances() []*ProcessInstance {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()
	instances := make([]*ProcessInstance, 0, len(pm.order))
	for _, name := range pm.order {
		instances = append(instances, pm.processes[name])
	}
	return instances
}

func (pm *ProcessManager) lookup(name string) (*ProcessInstance, error) {
	pi := pm.GetInstance(name)
	if pi == nil {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	}
	return pi, nil
}

/**
 * Start every app declared with autostart
 * @param {context.Context} ctx - Cancelling stops launching further apps
 * @returns {error} Joined start errors, apps that failed keep retrying per policy
 */
func (pm *ProcessManager) StartAll(ctx context.Context) error {
	var errs []error
	for _, pi := range pm.GetInstances() {
		if err := ctx.Err(); err != nil {
			return err
		}
		spec := pi.Spec()
		if !spec.ShouldAutoStart() {
			logger.Infof("Process '%s' has autostart disabled, skipped", spec.Name)
			continue
		}
		if err := pi.StartProcess(); err != nil && !errors.Is(err, ErrProcessAlreadyRunning) {
			errs = append(errs, fmt.Errorf("start %s: %w", spec.Name, err))
		}
	}
	return errors.Join(errs...)
}

/**
 * Stop every running or waiting process concurrently
 * @description
 * - Each process gets its own kill_timeout
 * - Returns once all processes have exited
 */
func (pm *ProcessManager) StopAll() {
	var wg sync.WaitGroup
	for _, pi := range pm.GetInstances() {
		wg.Add(1)
		go func(pi *ProcessInstance) {
			defer wg.Done()
			if err := pi.StopProcess(); err != nil && !errors.Is(err, ErrProcessNotRunning) {
				logger.Errorf("Failed to stop process '%s': %v", pi.Name(), err)
			}
		}(pi)
	}
	wg.Wait()
}

func (pm *ProcessManager) StartProcess(name string) error {
	pi, err := pm.lookup(name)
	if err != nil {
		return err
	}
	return pi.StartProcess()
}

func (pm *ProcessManager) StopProcess(name string) error {
	pi, err := pm.lookup(name)
	if err != nil {
		return err
	}
	return pi.StopProcess()
}

func (pm *ProcessManager) RestartProcess(name string) error {
	pi, err := pm.lookup(name)
	if err != nil {
		return err
	}
	return pi.RestartProcess()
}

func (pm *ProcessManager) ResetProcess(name string) error {
	pi, err := pm.lookup(name)
	if err != nil {
		return err
	}
	pi.ResetProcess()
	return nil
}

func (pm *ProcessManager) GetProcess(name string) (models.ProcessDetail, error) {
	pi, err := pm.lookup(name)
	if err != nil {
		return models.ProcessDetail{}, err
	}
	return pi.GetDetail(), nil
}

func (pm *ProcessManager) GetProcesses() []models.ProcessDetail {
	instances := pm.GetInstances()
	details := make([]models.ProcessDetail, 0, len(instances))
	for _, pi := range instances {
		details = append(details, pi.GetDetail())
	}
	return details
}

/**
 * Apply a reloaded app list
 * @param {context.Context} ctx - Context for starting added apps
 * @param {[]config.AppSpec} apps - New validated declarations
 * @returns {ReconcileResult} Names added, removed and updated
 * @description
 * - Removed apps are stopped and dropped
 * - Existing apps whose declaration changed get it on their next spawn and are reported as updated
 * - Added apps are started when autostart is on
 */
func (pm *ProcessManager) Reconcile(ctx context.Context, apps []config.AppSpec) ReconcileResult {
	var result ReconcileResult
	var removed, added []*ProcessInstance

	pm.mutex.Lock()
	next := make(map[string]*ProcessInstance, len(apps))
	order := make([]string, 0, len(apps))
	for _, app := range apps {
		if pi, ok := pm.processes[app.Name]; ok {
			// 声明未变的进程不算更新
			if !reflect.DeepEqual(pi.Spec(), app) {
				pi.SetSpec(app)
				result.Updated = append(result.Updated, app.Name)
			}
			next[app.Name] = pi
		} else {
			pi := NewProcessInstance(app, pm.onEvent)
			next[app.Name] = pi
			added = append(added, pi)
			result.Added = append(result.Added, app.Name)
		}
		order = append(order, app.Name)
	}
	for _, name := range pm.order {
		if _, ok := next[name]; !ok {
			removed = append(removed, pm.processes[name])
			result.Removed = append(result.Removed, name)
		}
	}
	pm.processes = next
	pm.order = order
	pm.mutex.Unlock()

	for _, pi := range removed {
		if err := pi.StopProcess(); err != nil && !errors.Is(err, ErrProcessNotRunning) {
			logger.Errorf("Failed to stop removed process '%s': %v", pi.Name(), err)
		}
	}
	for _, pi := range added {
		if ctx.Err() != nil {
			break
		}
		spec := pi.Spec()
		if !spec.ShouldAutoStart() {
			continue
		}
		if err := pi.StartProcess(); err != nil {
			logger.Errorf("Failed to start added process '%s': %v", spec.Name, err)
		}
	}
	logger.Infof("Reconciled apps: added=%v removed=%v updated=%v", result.Added, result.Removed, result.Updated)
	return result
}
