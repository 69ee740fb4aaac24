package configcmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rag-keeper/cmd/root"
)

const ecosystem = `
history:
  postgres_dsn: postgres://keeper:secret@db:5432/keeper
apps:
  - name: rag-backend
    script: .venv/bin/python
    args: backend/app.py
    interpreter: none
    env:
      AWS_REGION: us-east-1
    env_production:
      AWS_REGION: eu-west-1
  - name: frontend
    script: npx
    args: serve -s dist -l 5173
    cwd: frontend
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ecosystem.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func useConfig(t *testing.T, path, profile string) {
	t.Helper()
	oldFile, oldProfile := root.ConfigFile, root.Profile
	root.ConfigFile, root.Profile = path, profile
	t.Cleanup(func() { root.ConfigFile, root.Profile = oldFile, oldProfile })
}

func TestShowConfig(t *testing.T) {
	useConfig(t, writeConfig(t, ecosystem), "production")
	cfg, err := root.LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	var buf bytes.Buffer
	if err := showConfig(&buf, cfg); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"profile: production",
		"AWS_REGION: eu-west-1",
		"max_restarts: 16",
		"kill_timeout: 1600",
		"frontend-out.log",
		"address: 127.0.0.1:8999",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Errorf("password leaked:\n%s", out)
	}
}

func TestValidateCommand(t *testing.T) {
	useConfig(t, writeConfig(t, ecosystem), "")
	var buf bytes.Buffer
	validateCmd.SetOut(&buf)
	if err := validateCmd.RunE(validateCmd, nil); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(buf.String(), "is valid, 2 apps") {
		t.Errorf("unexpected output %q", buf.String())
	}

	useConfig(t, writeConfig(t, "apps:\n  - name: a\n    script: x\n  - name: a\n    script: y\n"), "")
	err := validateCmd.RunE(validateCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "duplicate app name") {
		t.Errorf("expected duplicate name error, got %v", err)
	}
}
