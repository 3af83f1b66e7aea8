//go:build linux

package helperd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/justapithecus/freetracer/log"
)

const (
	udisksService = "org.freedesktop.UDisks2"
	udisksPath    = dbus.ObjectPath("/org/freedesktop/UDisks2")

	ifaceObjectManager = "org.freedesktop.DBus.ObjectManager"
	ifaceBlock         = "org.freedesktop.UDisks2.Block"
	ifaceFilesystem    = "org.freedesktop.UDisks2.Filesystem"
	ifaceDrive         = "org.freedesktop.UDisks2.Drive"

	errNotMounted = "org.freedesktop.UDisks2.Error.NotMounted"
)

// managedObjects is the ObjectManager result shape: object path ->
// interface name -> property name -> value.
type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// UDisksUnmounter unmounts and ejects devices through the UDisks2
// system service.
type UDisksUnmounter struct {
	conn   *dbus.Conn
	logger *log.Logger
}

// NewUDisksUnmounter connects to the system bus.
func NewUDisksUnmounter(logger *log.Logger) (*UDisksUnmounter, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("cannot connect to system bus: %w", err)
	}
	return &UDisksUnmounter{conn: conn, logger: logger}, nil
}

// Close releases the bus connection.
func (u *UDisksUnmounter) Close() error {
	return u.conn.Close()
}

// Unmount implements Unmounter. Every mounted filesystem on the device
// or its partitions is unmounted; an already-unmounted filesystem is
// not an error.
func (u *UDisksUnmounter) Unmount(ctx context.Context, devicePath string) error {
	objects, err := u.objects(ctx)
	if err != nil {
		return err
	}

	for path, ifaces := range objects {
		if !u.belongsTo(ifaces, devicePath) {
			continue
		}
		if _, ok := ifaces[ifaceFilesystem]; !ok {
			continue
		}

		call := u.conn.Object(udisksService, path).CallWithContext(
			ctx, ifaceFilesystem+".Unmount", 0, map[string]dbus.Variant{})
		if call.Err != nil && !isNotMounted(call.Err) {
			return fmt.Errorf("unmount %s: %w", path, call.Err)
		}
	}
	return nil
}

// Eject implements Unmounter. The device's drive is powered down after
// its filesystems are unmounted.
func (u *UDisksUnmounter) Eject(ctx context.Context, devicePath string) error {
	if err := u.Unmount(ctx, devicePath); err != nil {
		return err
	}

	objects, err := u.objects(ctx)
	if err != nil {
		return err
	}

	drive, err := u.driveFor(objects, devicePath)
	if err != nil {
		return err
	}

	call := u.conn.Object(udisksService, drive).CallWithContext(
		ctx, ifaceDrive+".Eject", 0, map[string]dbus.Variant{})
	if call.Err != nil {
		return fmt.Errorf("eject %s: %w", drive, call.Err)
	}
	return nil
}

func (u *UDisksUnmounter) objects(ctx context.Context) (managedObjects, error) {
	var objects managedObjects
	err := u.conn.Object(udisksService, udisksPath).CallWithContext(
		ctx, ifaceObjectManager+".GetManagedObjects", 0).Store(&objects)
	if err != nil {
		return nil, fmt.Errorf("cannot enumerate block devices: %w", err)
	}
	return objects, nil
}

// belongsTo reports whether the object is the device itself or one of
// its partitions (/dev/sdb, /dev/sdb1, ...).
func (u *UDisksUnmounter) belongsTo(ifaces map[string]map[string]dbus.Variant, devicePath string) bool {
	dev := blockDevice(ifaces)
	return dev == devicePath || strings.HasPrefix(dev, devicePath)
}

// driveFor resolves the UDisks2 drive object backing the device.
func (u *UDisksUnmounter) driveFor(objects managedObjects, devicePath string) (dbus.ObjectPath, error) {
	for _, ifaces := range objects {
		if blockDevice(ifaces) != devicePath {
			continue
		}
		v, ok := ifaces[ifaceBlock]["Drive"]
		if !ok {
			break
		}
		drive, ok := v.Value().(dbus.ObjectPath)
		if !ok || drive == "/" {
			break
		}
		return drive, nil
	}
	return "", fmt.Errorf("no drive backs device")
}

// blockDevice extracts the Block.Device property, a NUL-terminated
// byte string.
func blockDevice(ifaces map[string]map[string]dbus.Variant) string {
	block, ok := ifaces[ifaceBlock]
	if !ok {
		return ""
	}
	v, ok := block["Device"]
	if !ok {
		return ""
	}
	b, ok := v.Value().([]byte)
	if !ok {
		return ""
	}
	return string(bytes.TrimRight(b, "\x00"))
}

func isNotMounted(err error) bool {
	var derr dbus.Error
	if errors.As(err, &derr) {
		return derr.Name == errNotMounted
	}
	return false
}
