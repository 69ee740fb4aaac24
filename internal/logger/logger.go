package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"rag-keeper/internal/config"
	"rag-keeper/internal/env"
)

var (
	defaultLogger *logrus.Logger
)

// 常用的结构化字段名
const (
	FieldProcess = "process"
	FieldPid     = "pid"
	FieldRunID   = "run_id"
	FieldError   = "error"
)

// GetLogLevelFromString 将字符串转换为日志级别
func GetLogLevelFromString(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.WarnLevel // 默认级别
	}
}

// InitLogger 初始化日志系统
func InitLogger(cfg *config.LogConfig) {
	var output io.Writer
	if cfg.Path == "console" || cfg.Path == "" {
		output = os.Stdout
	} else {
		output = setupLogFileOutput(cfg.Path)
	}
	defaultLogger = newLogger(output, cfg)
}

// InitLoggerWithMode 根据运行模式初始化日志系统
// isServerMode: true表示守护进程模式，false表示CLI模式
func InitLoggerWithMode(cfg *config.LogConfig, isServerMode bool) {
	if cfg.Path == "console" {
		defaultLogger = newLogger(os.Stdout, cfg)
		return
	}
	var output io.Writer
	if cfg.Path == "" {
		// 如果没有指定日志路径，使用默认路径
		output = setupLogFileOutput(filepath.Join(env.LogsDir(), "rag-keeper.log"))
	} else {
		output = setupLogFileOutput(cfg.Path)
	}

	// 如果是服务器模式，同时输出到控制台
	if isServerMode {
		output = io.MultiWriter(os.Stdout, output)
	}
	defaultLogger = newLogger(output, cfg)
}

func newLogger(output io.Writer, cfg *config.LogConfig) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetLevel(GetLogLevelFromString(cfg.Level))
	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: true,
		})
	}
	return l
}

// setupLogFileOutput 设置日志文件输出
func setupLogFileOutput(logPath string) io.Writer {
	// 确保日志目录存在
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "创建日志目录失败: %v\n", err)
		return os.Stdout
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		// 在日志系统初始化失败时，暂时使用标准错误输出
		fmt.Fprintf(os.Stderr, "打开日志文件失败: %v\n", err)
		return os.Stdout
	}
	return file
}

// SetOutput 替换日志输出，测试中用来捕获日志
func SetOutput(w io.Writer) {
	get().SetOutput(w)
}

func get() *logrus.Logger {
	if defaultLogger == nil {
		defaultLogger = newLogger(os.Stderr, &config.LogConfig{Level: "warn"})
	}
	return defaultLogger
}

// WithField 返回带一个结构化字段的日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return get().WithField(key, value)
}

// WithFields 返回带多个结构化字段的日志条目
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return get().WithFields(logrus.Fields(fields))
}

// Debug 输出调试日志
func Debug(v ...interface{}) {
	get().Debug(v...)
}

// Debugf 输出格式化调试日志
func Debugf(format string, v ...interface{}) {
	get().Debugf(format, v...)
}

// Info 输出信息日志
func Info(v ...interface{}) {
	get().Info(v...)
}

// Infof 输出格式化信息日志
func Infof(format string, v ...interface{}) {
	get().Infof(format, v...)
}

// Warn 输出警告日志
func Warn(v ...interface{}) {
	get().Warn(v...)
}

// Warnf 输出格式化警告日志
func Warnf(format string, v ...interface{}) {
	get().Warnf(format, v...)
}

// Error 输出错误日志
func Error(v ...interface{}) {
	get().Error(v...)
}

// Errorf 输出格式化错误日志
func Errorf(format string, v ...interface{}) {
	get().Errorf(format, v...)
}

// Fatal 输出致命错误日志并退出程序
func Fatal(v ...interface{}) {
	get().Fatal(v...)
}

// Fatalf 输出格式化致命错误日志并退出程序
func Fatalf(format string, v ...interface{}) {
	get().Fatalf(format, v...)
}
