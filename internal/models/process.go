package models

import "time"

type RunStatus string

const (
	// 表示正在运行
	StatusRunning RunStatus = "running"
	// 进程已退出，等待restart_delay后自动重启
	StatusWaiting RunStatus = "waiting"
	// 表示程序退出且不需要重启: autorestart关闭或者退出码在stop_exit_codes里
	StatusExited RunStatus = "exited"
	// 连续重启次数超过max_restarts，不再自动恢复，需要手动start/restart
	StatusErrored RunStatus = "errored"
	// 表示被用户手动停止
	StatusStopped RunStatus = "stopped"
)

// IsActive running和waiting都算活动状态，stop需要处理
func (s RunStatus) IsActive() bool {
	return s == StatusRunning || s == StatusWaiting
}

type ProcessDetail struct {
	Name           string    `json:"name"`           //进程名，唯一
	Command        string    `json:"command"`        //解析后的启动命令
	Args           []string  `json:"args"`           //进程参数
	WorkDir        string    `json:"workDir"`        //工作目录
	Interpreter    string    `json:"interpreter"`    //解释器，none表示直接执行
	OutFile        string    `json:"outFile"`        //标准输出日志
	ErrorFile      string    `json:"errorFile"`      //标准错误日志
	RestartDelay   int       `json:"restartDelay"`   //自动重启延时(毫秒)
	MaxRestarts    int       `json:"maxRestarts"`    //最大连续重启次数
	AutoRestart    bool      `json:"autoRestart"`    //是否自动重启
	Pid            int       `json:"pid"`            //进程PID
	RunID          string    `json:"runId"`          //每次启动生成的ID
	Status         RunStatus `json:"status"`         //状态
	RestartCount   int       `json:"restartCount"`   //连续重启次数
	TotalRestarts  int       `json:"totalRestarts"`  //累计重启次数
	StartTime      time.Time `json:"startTime"`      //启动时间
	Uptime         string    `json:"uptime"`         //运行时长
	LastExitTime   time.Time `json:"lastExitTime"`   //最后一次退出的时间
	LastExitCode   int       `json:"lastExitCode"`   //最后一次退出码
	LastExitReason string    `json:"lastExitReason"` //最后一次退出的原因
}
