package fileops

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	f := NewFileOps(filepath.Join(t.TempDir(), "kittbar"))
	if err := f.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	if _, err := f.LoadConfig("kittbar.yaml"); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("LoadConfig on empty dir = %v, want ErrConfigNotFound", err)
	}

	if err := f.SaveConfig("kittbar.yaml", []byte("capture: {}\n")); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	data, err := f.LoadConfig("kittbar.yaml")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if string(data) != "capture: {}\n" {
		t.Fatalf("LoadConfig = %q", data)
	}
}

func TestPIDLifecycle(t *testing.T) {
	f := NewFileOps(t.TempDir())

	if err := f.CheckPID(); err != nil {
		t.Fatalf("CheckPID without file: %v", err)
	}
	if err := f.SavePID(); err != nil {
		t.Fatalf("SavePID: %v", err)
	}
	// Our own PID is not "another instance".
	if err := f.CheckPID(); err != nil {
		t.Fatalf("CheckPID with own PID: %v", err)
	}

	// The parent process is alive for the duration of the test.
	ppid := os.Getppid()
	if err := os.WriteFile(filepath.Join(f.GetConfigDir(), pidFilename), []byte(strconv.Itoa(ppid)), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := f.CheckPID(); !errors.Is(err, ErrProcessAlreadyRunning) {
		t.Fatalf("CheckPID with live foreign PID = %v, want ErrProcessAlreadyRunning", err)
	}

	if err := f.CleanupPID(); err != nil {
		t.Fatalf("CleanupPID: %v", err)
	}
	if err := f.CleanupPID(); err != nil {
		t.Fatalf("second CleanupPID: %v", err)
	}
}

func TestCheckPIDInvalidContent(t *testing.T) {
	f := NewFileOps(t.TempDir())
	if err := os.WriteFile(filepath.Join(f.GetConfigDir(), pidFilename), []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := f.CheckPID(); err == nil {
		t.Fatal("expected error for invalid PID content")
	}
}
