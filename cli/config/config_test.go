package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/freetracer/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "freetracer.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("cannot write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
socket_path: /tmp/test.sock
helper:
  expected_version: "0.9"
  unit_path: /etc/systemd/system/freetracer-helperd.service
  install_command: ["pkexec", "/usr/lib/freetracer/install-helper"]
  install_wait_attempts: 5
  install_wait_interval: 250ms
devices:
  path_prefix: /dev/
adapter:
  type: webhook
  url: https://hooks.example.com/flash
  timeout: 5s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SocketPath != "/tmp/test.sock" {
		t.Errorf("SocketPath = %q", cfg.SocketPath)
	}
	if cfg.Helper.ExpectedVersion != "0.9" {
		t.Errorf("ExpectedVersion = %q", cfg.Helper.ExpectedVersion)
	}
	if len(cfg.Helper.InstallCommand) != 2 || cfg.Helper.InstallCommand[0] != "pkexec" {
		t.Errorf("InstallCommand = %v", cfg.Helper.InstallCommand)
	}
	if cfg.Helper.InstallWaitInterval.Duration != 250*time.Millisecond {
		t.Errorf("InstallWaitInterval = %v", cfg.Helper.InstallWaitInterval.Duration)
	}
	if cfg.Adapter.Type != "webhook" || cfg.Adapter.Timeout.Duration != 5*time.Second {
		t.Errorf("Adapter = %+v", cfg.Adapter)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SocketPath != DefaultSocketPath {
		t.Errorf("SocketPath = %q, want default", cfg.SocketPath)
	}
	if cfg.Helper.ExpectedVersion != types.HelperProtocolVersion {
		t.Errorf("ExpectedVersion = %q, want protocol version", cfg.Helper.ExpectedVersion)
	}
	if cfg.Helper.UnitPath != DefaultUnitPath {
		t.Errorf("UnitPath = %q, want default", cfg.Helper.UnitPath)
	}
	if cfg.Devices.PathPrefix != "/dev/" {
		t.Errorf("PathPrefix = %q, want /dev/", cfg.Devices.PathPrefix)
	}
}

// The default socket and unit paths derive from the shared service
// identity, not free-form strings.
func TestDefaults_CarryServiceName(t *testing.T) {
	if !strings.Contains(DefaultSocketPath, types.ServiceName) {
		t.Errorf("DefaultSocketPath = %q, want it under the %q directory", DefaultSocketPath, types.ServiceName)
	}
	if !strings.Contains(DefaultUnitPath, types.ServiceName) {
		t.Errorf("DefaultUnitPath = %q, want the %q unit", DefaultUnitPath, types.ServiceName)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("FT_TEST_SOCKET", "/tmp/env.sock")
	cfg, err := Load(writeConfig(t, "socket_path: ${FT_TEST_SOCKET}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SocketPath != "/tmp/env.sock" {
		t.Errorf("SocketPath = %q, want expanded value", cfg.SocketPath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want not-found error", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, ":\n  - broken")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	if _, err := Load(writeConfig(t, "helper:\n  install_wait_interval: soon\n")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.SocketPath != DefaultSocketPath {
		t.Errorf("SocketPath = %q, want default", cfg.SocketPath)
	}
}
