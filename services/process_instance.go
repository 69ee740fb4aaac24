package services

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"rag-keeper/internal/config"
	"rag-keeper/internal/logger"
	"rag-keeper/internal/models"
	"rag-keeper/internal/utils"
)

var (
	ErrProcessNotFound       = errors.New("process not found")
	ErrProcessAlreadyRunning = errors.New("process already running")
	ErrProcessNotRunning     = errors.New("process not running")
)

// 进程退出后等待输出管道关闭的最长时间
const outputWaitDelay = time.Second

type processWatcher struct {
	onEvent func(models.Event) //生命周期事件回调，在实例锁内调用，不能阻塞
}

/**
 * ProcessInstance 托管进程实例
 * @property {config.AppSpec} spec - 进程声明
 * @property {string} status - 进程状态: running/waiting/exited/errored/stopped
 * @property {string} runID - 每次拉起生成的ID
 * @property {int} restartCount - 连续自动重启次数
 * @property {int} totalRestarts - 累计重启次数
 * @property {time.Time} startTime - 启动时间
 * @property {time.Time} lastExitTime - 最后退出时间
 * @property {string} lastExitReason - 最后退出原因
 */
type ProcessInstance struct {
	spec           config.AppSpec   //进程声明，reload时替换，下次拉起生效
	status         models.RunStatus //状态
	runID          string           //本次运行的ID
	restartCount   int              //连续重启次数
	totalRestarts  int              //累计重启次数
	startTime      time.Time        //启动时间
	lastExitTime   time.Time        //最后一次退出的时间
	lastExitCode   int              //最后一次退出码
	lastExitReason string           //最后一次退出的原因
	watcher        processWatcher   //监测协程的设置
	cmd            *exec.Cmd        //当前运行的命令，未运行时为nil
	done           chan struct{}    //当前运行的监测协程结束时关闭
	generation     uint64           //每次拉起加一，丢弃过期的监测协程和重启定时器
	restartTimer   *time.Timer      //等待中的自动重启
	mutex          sync.Mutex       //保护实例数据一致性
}

/**
 * NewProcessInstance 创建新的进程实例
 * @param {config.AppSpec} spec - 已经解析过默认值和路径的进程声明
 * @param {func(models.Event)} onEvent - 生命周期事件回调，可以为nil
 * @returns {ProcessInstance} 返回创建的进程实例，初始状态为stopped
 */
func NewProcessInstance(spec config.AppSpec, onEvent func(models.Event)) *ProcessInstance {
	return &ProcessInstance{
		spec:    spec,
		status:  models.StatusStopped,
		watcher: processWatcher{onEvent: onEvent},
	}
}

func (pi *ProcessInstance) Name() string {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.spec.Name
}

func (pi *ProcessInstance) Spec() config.AppSpec {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.spec
}

// SetSpec 替换进程声明，正在运行的进程不受影响，下次拉起时生效
func (pi *ProcessInstance) SetSpec(spec config.AppSpec) {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	pi.spec = spec
}

func (pi *ProcessInstance) Status() models.RunStatus {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.status
}

func (pi *ProcessInstance) pid() int {
	if pi.cmd == nil || pi.cmd.Process == nil {
		return 0
	}
	return pi.cmd.Process.Pid
}

func (pi *ProcessInstance) Pid() int {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.pid()
}

func (pi *ProcessInstance) GetDetail() models.ProcessDetail {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	command, args, _ := pi.spec.CommandLine()
	detail := models.ProcessDetail{
		Name:           pi.spec.Name,
		Command:        command,
		Args:           args,
		WorkDir:        pi.spec.Cwd,
		Interpreter:    pi.spec.Interpreter,
		OutFile:        pi.spec.OutFile,
		ErrorFile:      pi.spec.ErrorFile,
		RestartDelay:   pi.spec.RestartDelay,
		MaxRestarts:    pi.spec.RestartLimit(),
		AutoRestart:    pi.spec.ShouldAutoRestart(),
		Pid:            pi.pid(),
		RunID:          pi.runID,
		Status:         pi.status,
		RestartCount:   pi.restartCount,
		TotalRestarts:  pi.totalRestarts,
		StartTime:      pi.startTime,
		LastExitTime:   pi.lastExitTime,
		LastExitCode:   pi.lastExitCode,
		LastExitReason: pi.lastExitReason,
	}
	if pi.status == models.StatusRunning {
		detail.Uptime = time.Since(pi.startTime).Truncate(time.Second).String()
	}
	return detail
}

/**
 * StartProcess 手动启动进程
 * @returns {error} 返回错误信息
 * @description
 * - 取消等待中的自动重启，连续重启计数清零
 * - 拉起失败时按崩溃处理，自动重启计数立即开始
 * @throws
 * - ErrProcessAlreadyRunning 进程正在运行或正在停止
 * - 找不到可执行文件/解释器、工作目录不存在、日志文件无法打开
 */
func (pi *ProcessInstance) StartProcess() error {
	return pi.start(false)
}

/**
 * RestartProcess 手动重启进程
 * @returns {error} 返回错误信息
 * @description
 * - 运行中的进程先停止，再启动
 * - errored状态的进程通过重启恢复
 * - 累计重启次数加一，连续重启计数清零
 */
func (pi *ProcessInstance) RestartProcess() error {
	if err := pi.StopProcess(); err != nil && !errors.Is(err, ErrProcessNotRunning) {
		return err
	}
	return pi.start(true)
}

func (pi *ProcessInstance) start(restart bool) error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.cmd != nil {
		return ErrProcessAlreadyRunning
	}
	pi.cancelRestartLocked()
	pi.restartCount = 0
	if restart {
		pi.totalRestarts++
		pi.emitLocked(models.EventRestart, "restarted by user")
	}
	if err := pi.spawnLocked(); err != nil {
		pi.spawnFailedLocked(err)
		return err
	}
	return nil
}

/**
 * spawnLocked 拉起进程，调用方持有锁
 * @returns {error} 返回错误信息
 * @description
 * - 解析解释器和参数，合并环境变量
 * - 以追加方式打开日志文件，标准输出和标准错误分别写入各自的文件
 * - 子进程放到独立进程组，停止时整组结束
 * - 启动协程监控进程退出
 */
func (pi *ProcessInstance) spawnLocked() error {
	pi.generation++

	command, args, err := pi.spec.CommandLine()
	if err != nil {
		return err
	}
	outputs, err := openOutputs(&pi.spec)
	if err != nil {
		return err
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = pi.spec.Cwd
	cmd.Env = pi.spec.Environ(os.Environ())
	cmd.Stdout = outputs.stdout
	cmd.Stderr = outputs.stderr
	cmd.WaitDelay = outputWaitDelay
	utils.SetNewPG(cmd)

	logger.WithField(logger.FieldProcess, pi.spec.Name).Debugf("Executing command: %s %v (cwd: %s)", command, args, cmd.Dir)
	if err := cmd.Start(); err != nil {
		outputs.Close()
		return err
	}

	done := make(chan struct{})
	pi.cmd = cmd
	pi.done = done
	pi.status = models.StatusRunning
	pi.startTime = time.Now()
	pi.runID = xid.New().String()

	logger.WithFields(map[string]interface{}{
		logger.FieldProcess: pi.spec.Name,
		logger.FieldPid:     cmd.Process.Pid,
		logger.FieldRunID:   pi.runID,
	}).Infof("Process '%s' started", pi.spec.Name)
	pi.emitLocked(models.EventStart, "")

	go pi.watchProcess(cmd, outputs, pi.generation, done)
	return nil
}

/**
 * spawnFailedLocked 拉起失败等同于立即崩溃
 * @param {error} err - 拉起错误
 * @description
 * - autorestart关闭: exited，与进程崩溃后的状态一致
 * - 否则按重启策略计数，达到max_restarts后errored
 */
func (pi *ProcessInstance) spawnFailedLocked(err error) {
	pi.cmd = nil
	pi.startTime = time.Time{}
	pi.lastExitTime = time.Now()
	pi.lastExitCode = -1
	pi.lastExitReason = fmt.Sprintf("start failed: %v", err)
	logger.WithField(logger.FieldProcess, pi.spec.Name).Errorf("Failed to start process '%s', error: %v", pi.spec.Name, err)
	pi.emitLocked(models.EventStartFailed, pi.lastExitReason)

	if !pi.spec.ShouldAutoRestart() {
		pi.status = models.StatusExited
		return
	}
	pi.scheduleRestartLocked()
}

/**
 * watchProcess 监控进程状态的协程
 * @param {*exec.Cmd} cmd - 本次运行的命令
 * @param {*processOutputs} outputs - 本次运行的日志输出
 * @param {uint64} generation - 拉起时的代数
 * @param {chan struct{}} done - 协程结束时关闭
 * @description
 * - 等待进程退出，刷新并关闭日志文件
 * - 被用户停止的进程不再重启
 * - 否则按重启策略处理
 */
func (pi *ProcessInstance) watchProcess(cmd *exec.Cmd, outputs *processOutputs, generation uint64, done chan struct{}) {
	waitErr := cmd.Wait()
	if err := outputs.Close(); err != nil {
		logger.Warnf("Process '%s' log files close error: %v", pi.Name(), err)
	}

	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	defer close(done)

	if generation != pi.generation || pi.cmd != cmd {
		return
	}
	code, reason := utils.DescribeExit(cmd.ProcessState, waitErr)
	pid := pi.pid()
	pi.cmd = nil
	pi.lastExitTime = time.Now()
	pi.lastExitCode = code
	pi.lastExitReason = reason

	if pi.status == models.StatusStopped {
		logger.Infof("Process '%s' (PID: %d) stopped by user", pi.spec.Name, pid)
		pi.lastExitReason = "stopped by user"
		pi.emitLocked(models.EventStop, reason)
		return
	}
	logger.WithFields(map[string]interface{}{
		logger.FieldProcess: pi.spec.Name,
		logger.FieldPid:     pid,
	}).Warnf("Process '%s' exited: %s", pi.spec.Name, reason)
	pi.emitLocked(models.EventExit, reason)
	pi.autoRestartLocked(code)
}

/**
 * autoRestartLocked 进程退出后的重启策略
 * @param {int} code - 退出码
 * @description
 * - autorestart关闭或退出码在stop_exit_codes里: exited，不重启
 * - 运行时长达到min_uptime: 连续重启计数清零
 * - 连续重启次数达到max_restarts: errored，不再重启
 * - 否则等待restart_delay后重启
 */
func (pi *ProcessInstance) autoRestartLocked(code int) {
	if !pi.spec.ShouldAutoRestart() || pi.spec.IsStopExitCode(code) {
		pi.status = models.StatusExited
		return
	}
	if pi.lastExitTime.Sub(pi.startTime) >= pi.spec.MinUptimeDuration() {
		pi.restartCount = 0
	}
	pi.scheduleRestartLocked()
}

func (pi *ProcessInstance) scheduleRestartLocked() {
	limit := pi.spec.RestartLimit()
	if pi.restartCount >= limit {
		pi.status = models.StatusErrored
		logger.Warnf("Process '%s' has reached maximum restart count (%d), not restarting",
			pi.spec.Name, limit)
		pi.emitLocked(models.EventErrored, fmt.Sprintf("max restarts (%d) exceeded", limit))
		return
	}

	delay := pi.spec.RestartDelayDuration()
	pi.status = models.StatusWaiting
	logger.Infof("Process '%s' will restart in %v (restart: %d/%d)",
		pi.spec.Name, delay, pi.restartCount+1, limit)

	generation := pi.generation
	pi.restartTimer = time.AfterFunc(delay, func() {
		pi.restartFromTimer(generation)
	})
}

func (pi *ProcessInstance) restartFromTimer(generation uint64) {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	// 期间被手动停止或者重新启动过
	if pi.status != models.StatusWaiting || generation != pi.generation {
		return
	}
	pi.restartTimer = nil
	pi.restartCount++
	pi.totalRestarts++
	pi.emitLocked(models.EventRestart, "")
	if err := pi.spawnLocked(); err != nil {
		pi.spawnFailedLocked(err)
	}
}

func (pi *ProcessInstance) cancelRestartLocked() {
	if pi.restartTimer != nil {
		pi.restartTimer.Stop()
		pi.restartTimer = nil
	}
}

/**
 * StopProcess 停止进程
 * @returns {error} 返回错误信息
 * @description
 * - 取消等待中的自动重启
 * - 向进程组发送SIGTERM，kill_timeout内没有退出则发送SIGKILL
 * - 等待监测协程处理完退出
 * @throws
 * - ErrProcessNotRunning 进程已经是stopped状态
 */
func (pi *ProcessInstance) StopProcess() error {
	pi.mutex.Lock()
	if pi.status == models.StatusStopped && pi.cmd == nil {
		pi.mutex.Unlock()
		return ErrProcessNotRunning
	}
	pi.cancelRestartLocked()
	prev := pi.status
	pi.status = models.StatusStopped
	if pi.cmd == nil {
		pi.generation++
		pi.lastExitReason = "stopped by user"
		pi.emitLocked(models.EventStop, fmt.Sprintf("stopped while %s", prev))
		pi.mutex.Unlock()
		return nil
	}
	name := pi.spec.Name
	pid := pi.pid()
	done := pi.done
	timeout := pi.spec.KillTimeoutDuration()
	pi.mutex.Unlock()

	if err := utils.TerminateProcess(pid); err != nil {
		logger.Warnf("Failed to terminate process '%s' (PID: %d): %v", name, pid, err)
	}
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warnf("Process '%s' (PID: %d) didn't exit in %v, killing", name, pid, timeout)
		if err := utils.KillProcessByPID(pid); err != nil {
			logger.Errorf("Failed to kill process '%s' (PID: %d): %v", name, pid, err)
			return err
		}
		<-done
	}
	logger.Infof("Process '%s' (PID: %d) stopped", name, pid)
	return nil
}

// ResetProcess 重启计数清零
func (pi *ProcessInstance) ResetProcess() {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	pi.restartCount = 0
	pi.totalRestarts = 0
}

func (pi *ProcessInstance) emitLocked(t models.EventType, reason string) {
	if pi.watcher.onEvent == nil {
		return
	}
	pi.watcher.onEvent(models.Event{
		ID:           uuid.New().String(),
		Type:         t,
		Name:         pi.spec.Name,
		RunID:        pi.runID,
		Pid:          pi.pid(),
		ExitCode:     pi.lastExitCode,
		Status:       pi.status,
		RestartCount: pi.restartCount,
		Reason:       reason,
		OccurredAt:   time.Now(),
	})
}
