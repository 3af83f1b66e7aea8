package helper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// SystemdRegistry checks installation by the presence of the helper's
// systemd unit file and installs by running a configured installer
// command, typically a pkexec wrapper that prompts for authorization.
type SystemdRegistry struct {
	// UnitPath is the absolute path of the helper's unit file.
	UnitPath string
	// InstallCommand is the installer argv. Must not be empty.
	InstallCommand []string
}

// IsInstalled implements ServiceRegistry.
func (r *SystemdRegistry) IsInstalled(_ context.Context) (bool, error) {
	_, err := os.Stat(r.UnitPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("cannot stat helper unit: %w", err)
}

// Install implements ServiceRegistry. The installer command is expected
// to be idempotent; rerunning it over a current install succeeds.
func (r *SystemdRegistry) Install(ctx context.Context) error {
	if len(r.InstallCommand) == 0 {
		return errors.New("no installer command configured")
	}

	cmd := exec.CommandContext(ctx, r.InstallCommand[0], r.InstallCommand[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("installer failed: %w: %s", err, out)
	}
	return nil
}
