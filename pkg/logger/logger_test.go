package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(Config{Level: "info", Dir: dir}); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer func() { _ = Init(Config{Level: "info"}) }()

	Info("[TEST] hello %d", 42)
	Critical("[TEST] boom")
	Sync()

	path := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "[TEST] hello 42") {
		t.Fatalf("log file misses info line: %s", data)
	}
	if !strings.Contains(string(data), `"critical":true`) {
		t.Fatalf("log file misses critical flag: %s", data)
	}
}

func TestInitBadLevel(t *testing.T) {
	if err := Init(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for bad level")
	}
}
