//go:build !linux

package arbiter

import (
	"errors"

	"github.com/justapithecus/freetracer/types"
)

// ProbeDevice requires sysfs; only Linux hosts can flash.
func ProbeDevice(devicePath string) (types.DeviceTarget, error) {
	return types.DeviceTarget{}, errors.New("device probing is only supported on linux")
}
