package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"rag-keeper/internal/models"
)

const (
	StreamOut = "out"
	StreamErr = "err"

	DefaultTailLines = 50
	MaxTailLines     = 5000
)

var ErrInvalidStream = errors.New("stream must be out or err")

// 从文件末尾往前读的块大小
const tailChunk = 8192

type LogService struct {
	pm *ProcessManager
}

func NewLogService(pm *ProcessManager) *LogService {
	return &LogService{pm: pm}
}

/**
 * Read the last lines of a process log file
 * @param {string} name - Process name
 * @param {string} stream - "out" for out_file, "err" for error_file
 * @param {int} lines - Number of lines, <= 0 means DefaultTailLines
 * @returns {models.LogTail} File path and lines, empty when the file doesn't exist yet
 * @returns {error} ErrProcessNotFound, ErrInvalidStream or a read error
 */
func (ls *LogService) Tail(name, stream string, lines int) (models.LogTail, error) {
	pi, err := ls.pm.lookup(name)
	if err != nil {
		return models.LogTail{}, err
	}
	spec := pi.Spec()
	var path string
	switch stream {
	case StreamOut, "":
		stream, path = StreamOut, spec.OutFile
	case StreamErr:
		path = spec.ErrorFile
	default:
		return models.LogTail{}, fmt.Errorf("%w: %q", ErrInvalidStream, stream)
	}
	if lines <= 0 {
		lines = DefaultTailLines
	}
	lines = min(lines, MaxTailLines)

	result := models.LogTail{Name: name, Stream: stream, File: path, Lines: []string{}}
	tail, err := tailFile(path, lines)
	if errors.Is(err, os.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return result, err
	}
	result.Lines = tail
	return result, nil
}

/**
 * tailFile 从文件末尾按块往前读，直到凑够n行
 */
func tailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	var data []byte
	offset := size
	for offset > 0 && bytes.Count(data, []byte{'\n'}) <= n {
		step := min(int64(tailChunk), offset)
		offset -= step
		chunk := make([]byte, step)
		if _, err := f.ReadAt(chunk, offset); err != nil && err != io.EOF {
			return nil, err
		}
		data = append(chunk, data...)
	}

	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return []string{}, nil
	}
	all := strings.Split(text, "\n")
	// 没读到文件头时，第一行可能不完整
	if offset > 0 && len(all) > n {
		all = all[1:]
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}
