package flasher

import (
	"context"
	"fmt"

	"github.com/justapithecus/freetracer/ipc"
	"github.com/justapithecus/freetracer/types"
)

// Transport carries requests to the helper. Satisfied by *ipc.Client.
type Transport interface {
	Call(ctx context.Context, req *types.HelperRequest) (*types.HelperResponse, error)
}

// Lifecycle gates writes on helper install state and version.
// Satisfied by *helper.Manager.
type Lifecycle interface {
	Ensure(ctx context.Context) types.ReturnCode
}

// RemoteWriter delegates the privileged write to the helper. The
// request names the image and device; the helper reads and writes on
// its side of the boundary, so no image bytes cross the socket.
//
// Progress is reported at stage granularity: total on entry, total
// written on success. Fine-grained counters live in the helper.
type RemoteWriter struct {
	transport Transport
	lifecycle Lifecycle
}

// NewRemoteWriter creates a writer backed by the helper.
func NewRemoteWriter(transport Transport, lifecycle Lifecycle) *RemoteWriter {
	return &RemoteWriter{transport: transport, lifecycle: lifecycle}
}

// WriteImage implements ImageWriter.
func (w *RemoteWriter) WriteImage(ctx context.Context, image *types.ImageDescriptor, device types.DeviceTarget, report func(Progress)) (types.ReturnCode, error) {
	if code := w.lifecycle.Ensure(ctx); code != types.CodeSuccess {
		return code, nil
	}

	payload, err := ipc.EncodePayload(&types.WriteImagePayload{
		ImagePath:  image.Path,
		DevicePath: device.Name,
		ImageSize:  image.Size,
	})
	if err != nil {
		return types.CodeFailure, fmt.Errorf("cannot encode write request: %w", err)
	}

	report(Progress{BytesTotal: image.Size})
	resp, err := w.transport.Call(ctx, &types.HelperRequest{
		Opcode:  types.OpWriteImage,
		Payload: payload,
	})
	if err != nil {
		return types.CodeFailedToWrite, fmt.Errorf("write request failed: %w", err)
	}

	if resp.Code == types.CodeSuccess {
		report(Progress{BytesWritten: image.Size, BytesTotal: image.Size})
	}
	return resp.Code, nil
}
