package types

// DeviceTarget identifies a candidate flash target.
type DeviceTarget struct {
	// Name is the stable platform device identifier (e.g. "/dev/sdb").
	Name string `json:"name"`
	// Removable reports whether the platform classifies the device as
	// removable media. No destructive operation is ever attempted on a
	// target with Removable == false; upstream checks make that path
	// unreachable and the arbiter treats it as an invariant violation.
	Removable bool `json:"removable"`
	// MountPoint is the current mount point of the device's primary
	// volume, empty if not mounted.
	MountPoint string `json:"mount_point,omitempty"`
}
