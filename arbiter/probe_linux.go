//go:build linux

package arbiter

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/justapithecus/freetracer/iox"
	"github.com/justapithecus/freetracer/types"
)

// ProbeDevice inspects a whole-disk block device (e.g. /dev/sdb)
// through sysfs. Removability comes from the kernel, never from the
// caller's say-so.
func ProbeDevice(devicePath string) (types.DeviceTarget, error) {
	return probeDevice("/sys/block", "/proc/mounts", devicePath)
}

func probeDevice(sysBlock, mounts, devicePath string) (types.DeviceTarget, error) {
	name := filepath.Base(devicePath)

	raw, err := os.ReadFile(filepath.Join(sysBlock, name, "removable"))
	if err != nil {
		return types.DeviceTarget{}, fmt.Errorf("no such block device %q: %w", devicePath, err)
	}
	removable := strings.TrimSpace(string(raw)) == "1"

	mountPoint, err := firstMountPoint(mounts, devicePath)
	if err != nil {
		return types.DeviceTarget{}, err
	}

	return types.DeviceTarget{
		Name:       devicePath,
		Removable:  removable,
		MountPoint: mountPoint,
	}, nil
}

// firstMountPoint scans the mount table for the device or any of its
// partitions and returns the first mount point found, empty if none.
func firstMountPoint(mounts, devicePath string) (string, error) {
	f, err := os.Open(mounts)
	if err != nil {
		return "", fmt.Errorf("cannot read mount table: %w", err)
	}
	defer iox.DiscardClose(f)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if strings.HasPrefix(fields[0], devicePath) {
			return fields[1], nil
		}
	}
	return "", scanner.Err()
}
