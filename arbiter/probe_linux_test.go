//go:build linux

package arbiter

import (
	"os"
	"path/filepath"
	"testing"
)

func fakeSysfs(t *testing.T, device, removable string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, device)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "removable"), []byte(removable+"\n"), 0o644); err != nil {
		t.Fatalf("write removable: %v", err)
	}
	return root
}

func fakeMounts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mounts")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write mounts: %v", err)
	}
	return path
}

func TestProbeDevice_Removable(t *testing.T) {
	sys := fakeSysfs(t, "sdb", "1")
	mounts := fakeMounts(t, "/dev/sda1 / ext4 rw 0 0\n/dev/sdb1 /media/usb vfat rw 0 0\n")

	target, err := probeDevice(sys, mounts, "/dev/sdb")
	if err != nil {
		t.Fatalf("probeDevice failed: %v", err)
	}
	if !target.Removable {
		t.Error("Removable = false, want true")
	}
	if target.MountPoint != "/media/usb" {
		t.Errorf("MountPoint = %q, want /media/usb", target.MountPoint)
	}
	if target.Name != "/dev/sdb" {
		t.Errorf("Name = %q", target.Name)
	}
}

func TestProbeDevice_FixedDisk(t *testing.T) {
	sys := fakeSysfs(t, "sda", "0")
	mounts := fakeMounts(t, "/dev/sda1 / ext4 rw 0 0\n")

	target, err := probeDevice(sys, mounts, "/dev/sda")
	if err != nil {
		t.Fatalf("probeDevice failed: %v", err)
	}
	if target.Removable {
		t.Error("Removable = true for a fixed disk")
	}
}

func TestProbeDevice_NotMounted(t *testing.T) {
	sys := fakeSysfs(t, "sdc", "1")
	mounts := fakeMounts(t, "/dev/sda1 / ext4 rw 0 0\n")

	target, err := probeDevice(sys, mounts, "/dev/sdc")
	if err != nil {
		t.Fatalf("probeDevice failed: %v", err)
	}
	if target.MountPoint != "" {
		t.Errorf("MountPoint = %q, want empty", target.MountPoint)
	}
}

func TestProbeDevice_UnknownDevice(t *testing.T) {
	sys := fakeSysfs(t, "sdb", "1")
	mounts := fakeMounts(t, "")

	if _, err := probeDevice(sys, mounts, "/dev/sdz"); err == nil {
		t.Error("expected error for unknown device")
	}
}
