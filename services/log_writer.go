package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rag-keeper/internal/config"
)

// maxLineLength 没有换行的输出超过这个长度时先写出一段
const maxLineLength = 64 * 1024

// timestampWriter 按行缓冲，每一行加上时间前缀后写入下游
type timestampWriter struct {
	out        io.Writer
	layout     string
	now        func() time.Time
	buffer     []byte
	bufferLock sync.Mutex
}

func newTimestampWriter(out io.Writer, layout string) *timestampWriter {
	if layout == "" {
		layout = config.DefaultLogDateFormat
	}
	return &timestampWriter{out: out, layout: layout, now: time.Now}
}

func (w *timestampWriter) Write(p []byte) (n int, err error) {
	w.bufferLock.Lock()
	defer w.bufferLock.Unlock()

	w.buffer = append(w.buffer, p...)
	for _, line := range w.processBuffer() {
		if err := w.writeLine(line); err != nil {
			return 0, err
		}
	}
	for len(w.buffer) >= maxLineLength {
		line := string(w.buffer[:maxLineLength])
		w.buffer = append([]byte(nil), w.buffer[maxLineLength:]...)
		if err := w.writeLine(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// 一行一次Write，out和err指向同一个文件时不会在行内交错
func (w *timestampWriter) writeLine(line string) error {
	_, err := io.WriteString(w.out, w.now().Format(w.layout)+": "+line+"\n")
	return err
}

// processBuffer returns complete lines, an incomplete tail stays in the buffer
func (w *timestampWriter) processBuffer() []string {
	var lines []string
	var i, start int

	for i < len(w.buffer) {
		if w.buffer[i] == '\n' {
			line := string(w.buffer[start:i])
			lines = append(lines, strings.TrimSuffix(line, "\r"))
			start = i + 1
		}
		i++
	}
	if start > 0 {
		w.buffer = w.buffer[start:]
	}
	return lines
}

// Flush writes a pending partial line, used when the process exits
func (w *timestampWriter) Flush() error {
	w.bufferLock.Lock()
	defer w.bufferLock.Unlock()

	if len(w.buffer) == 0 {
		return nil
	}
	line := string(w.buffer)
	w.buffer = nil
	return w.writeLine(line)
}

/**
 * processOutputs stdout/stderr destinations of one run
 * @property {io.Writer} stdout - Writer bound to out_file
 * @property {io.Writer} stderr - Writer bound to error_file
 */
type processOutputs struct {
	stdout   io.Writer
	stderr   io.Writer
	flushers []*timestampWriter
	files    []*os.File
}

/**
 * Open the log files of an app for one run
 * @param {config.AppSpec} spec - App declaration with resolved paths
 * @returns {*processOutputs} Writers for the child process
 * @returns {error} Error if a directory or file can't be created
 * @description
 * - Files are opened in append mode, parent directories are created
 * - out_file == error_file shares one descriptor
 * - time: true wraps each stream in a timestamp writer
 */
func openOutputs(spec *config.AppSpec) (*processOutputs, error) {
	o := &processOutputs{}
	outFile, err := openLogFile(spec.OutFile)
	if err != nil {
		return nil, err
	}
	o.files = append(o.files, outFile)

	errFile := outFile
	if spec.ErrorFile != spec.OutFile {
		if errFile, err = openLogFile(spec.ErrorFile); err != nil {
			o.Close()
			return nil, err
		}
		o.files = append(o.files, errFile)
	}

	if !spec.Time {
		o.stdout, o.stderr = outFile, errFile
		return o, nil
	}
	stdout := newTimestampWriter(outFile, spec.LogDateFormat)
	stderr := newTimestampWriter(errFile, spec.LogDateFormat)
	o.flushers = append(o.flushers, stdout, stderr)
	o.stdout, o.stderr = stdout, stderr
	return o, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

// Close flushes partial lines and closes the files
func (o *processOutputs) Close() error {
	var errs []error
	for _, f := range o.flushers {
		errs = append(errs, f.Flush())
	}
	for _, f := range o.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}
