// Package arbiter mediates access to removable block devices. It is the
// only path by which unmount and eject requests reach the privileged
// helper, and it enforces the removable-media invariant before any
// request leaves the process.
package arbiter

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/freetracer/ipc"
	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/types"
)

// ErrDeviceNotRemovable rejects operations on fixed disks. A request
// carrying a non-removable target is refused locally and never reaches
// the helper.
var ErrDeviceNotRemovable = errors.New("device is not removable")

// Transport carries requests to the helper. Satisfied by *ipc.Client.
type Transport interface {
	Call(ctx context.Context, req *types.HelperRequest) (*types.HelperResponse, error)
}

// Lifecycle gates operations on helper install state and version.
// Satisfied by *helper.Manager.
type Lifecycle interface {
	Ensure(ctx context.Context) types.ReturnCode
}

// Arbiter issues unmount and eject requests for removable devices.
//
// TryAgain results propagate to the caller, who owns the single retry
// of the logical operation; the arbiter itself never retries.
type Arbiter struct {
	transport Transport
	lifecycle Lifecycle
	logger    *log.Logger
}

// New creates an arbiter.
func New(transport Transport, lifecycle Lifecycle, logger *log.Logger) *Arbiter {
	return &Arbiter{transport: transport, lifecycle: lifecycle, logger: logger}
}

// RequestUnmount unmounts every filesystem on the device. The device
// stays attached; use Eject to also power it down.
func (a *Arbiter) RequestUnmount(ctx context.Context, device types.DeviceTarget) (types.ReturnCode, error) {
	return a.dispatch(ctx, device, false)
}

// Eject unmounts and detaches the device. Eject is always an explicit,
// separate request and is never implied by an unmount.
func (a *Arbiter) Eject(ctx context.Context, device types.DeviceTarget) (types.ReturnCode, error) {
	return a.dispatch(ctx, device, true)
}

func (a *Arbiter) dispatch(ctx context.Context, device types.DeviceTarget, eject bool) (types.ReturnCode, error) {
	if !device.Removable {
		a.logger.Warn("refused operation on fixed disk", map[string]any{
			"eject": eject,
		})
		return types.CodeFailure, ErrDeviceNotRemovable
	}

	if code := a.lifecycle.Ensure(ctx); code != types.CodeSuccess {
		return code, nil
	}

	payload, err := ipc.EncodePayload(&types.UnmountPayload{
		DevicePath: device.Name,
		Eject:      eject,
	})
	if err != nil {
		return types.CodeFailure, fmt.Errorf("cannot encode unmount request: %w", err)
	}

	resp, err := a.transport.Call(ctx, &types.HelperRequest{
		Opcode:  types.OpUnmount,
		Payload: payload,
	})
	if err != nil {
		return types.CodeFailure, fmt.Errorf("unmount request failed: %w", err)
	}
	return resp.Code, nil
}
