package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"rag-keeper/internal/models"
)

/**
 * FileSink 以JSON Lines格式追加写入事件
 * @property {string} path - 事件文件路径
 */
type FileSink struct {
	path  string
	file  *os.File
	enc   *json.Encoder
	mutex sync.Mutex
}

/**
 * Open or create the JSON lines event file
 * @param {string} path - Event file, parent directories are created
 * @returns {*FileSink} Sink appending one event per line
 * @returns {error} Error if the file can't be opened
 */
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file %s: %w", path, err)
	}
	return &FileSink{path: path, file: f, enc: json.NewEncoder(f)}, nil
}

func (s *FileSink) Send(_ context.Context, e models.Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.enc.Encode(e)
}

func (s *FileSink) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.file.Close()
}
