package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"rag-keeper/internal/config"
)

func TestGetLogLevelFromString(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"INFO":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"verbose": logrus.WarnLevel,
	}
	for in, want := range tests {
		if got := GetLogLevelFromString(in); got != want {
			t.Errorf("GetLogLevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "keeper.log")
	InitLogger(&config.LogConfig{Level: "info", Path: path, Format: "json"})

	Debugf("hidden %d", 1)
	WithField(FieldProcess, "rag-backend").Info("started")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(out, `"process":"rag-backend"`) || !strings.Contains(out, `"msg":"started"`) {
		t.Errorf("structured field missing: %s", out)
	}
}

func TestSetOutput(t *testing.T) {
	InitLogger(&config.LogConfig{Level: "warn"})
	var buf bytes.Buffer
	SetOutput(&buf)

	Infof("quiet")
	Warnf("loud %s", "warning")

	if strings.Contains(buf.String(), "quiet") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(buf.String(), "loud warning") {
		t.Errorf("warning missing: %q", buf.String())
	}
}
