package models

// LogTail 日志文件尾部内容
type LogTail struct {
	Name   string   `json:"name"`
	Stream string   `json:"stream"`
	File   string   `json:"file"`
	Lines  []string `json:"lines"`
}
