// Package helperd implements the privileged helper daemon: the serving
// side of the client's socket protocol. It authenticates peers at the
// door, then answers version, unmount, and write requests.
package helperd

import (
	"context"
	"fmt"

	"github.com/justapithecus/freetracer/ipc"
	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/metrics"
	"github.com/justapithecus/freetracer/types"
)

// Unmounter detaches filesystems from a block device.
type Unmounter interface {
	// Unmount unmounts every mounted filesystem on the device.
	Unmount(ctx context.Context, devicePath string) error
	// Eject unmounts and powers down the device.
	Eject(ctx context.Context, devicePath string) error
}

// Writer copies an image onto a block device.
type Writer interface {
	WriteImage(ctx context.Context, req *types.WriteImagePayload, report func(written, total int64)) error
}

// Config holds daemon wiring.
type Config struct {
	// SocketPath is the unix socket the daemon serves on.
	SocketPath string
}

// Daemon serves the helper protocol. One request maps to one reply;
// destructive work runs synchronously within the exchange so the reply
// code is the operation's true outcome.
type Daemon struct {
	server    *ipc.Server
	unmounter Unmounter
	writer    Writer
	logger    *log.Logger
	metrics   *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a daemon. The authorizer (auth.Guard in production)
// screens every connection before a single request is read.
func New(cfg Config, authorizer ipc.Authorizer, unmounter Unmounter, writer Writer, logger *log.Logger, collector *metrics.Collector) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		unmounter: unmounter,
		writer:    writer,
		logger:    logger,
		metrics:   collector,
		ctx:       ctx,
		cancel:    cancel,
	}
	d.server = ipc.NewServer(cfg.SocketPath, authorizer, d.handle, logger)
	return d
}

// Start begins serving.
func (d *Daemon) Start() error {
	return d.server.Start()
}

// Stop cancels in-flight operations and stops serving.
func (d *Daemon) Stop() error {
	d.cancel()
	return d.server.Stop()
}

func (d *Daemon) handle(req *types.HelperRequest) *types.HelperResponse {
	switch req.Opcode {
	case types.OpCheckInstalled, types.OpInstall:
		// The daemon answering at all is the affirmative.
		return &types.HelperResponse{Code: types.CodeSuccess}

	case types.OpQueryVersion:
		return &types.HelperResponse{
			Code:    types.CodeSuccess,
			Message: types.HelperProtocolVersion,
		}

	case types.OpUnmount:
		return d.handleUnmount(req.Payload)

	case types.OpWriteImage:
		return d.handleWriteImage(req.Payload)

	default:
		return &types.HelperResponse{
			Code:    types.CodeFailure,
			Message: fmt.Sprintf("unsupported opcode %q", req.Opcode),
		}
	}
}

func (d *Daemon) handleUnmount(body []byte) *types.HelperResponse {
	var payload types.UnmountPayload
	if err := ipc.DecodePayload(body, &payload); err != nil {
		d.metrics.IncIPCDecodeErrors()
		return &types.HelperResponse{Code: types.CodeFailure, Message: "malformed unmount payload"}
	}

	if err := d.unmounter.Unmount(d.ctx, payload.DevicePath); err != nil {
		d.logger.Error("unmount failed", map[string]any{
			"error": err.Error(),
		})
		return &types.HelperResponse{Code: types.CodeFailure, Message: "unmount failed"}
	}

	if payload.Eject {
		if err := d.unmounter.Eject(d.ctx, payload.DevicePath); err != nil {
			d.logger.Error("eject failed", map[string]any{
				"error": err.Error(),
			})
			return &types.HelperResponse{Code: types.CodeFailure, Message: "eject failed"}
		}
	}

	return &types.HelperResponse{Code: types.CodeSuccess}
}

func (d *Daemon) handleWriteImage(body []byte) *types.HelperResponse {
	var payload types.WriteImagePayload
	if err := ipc.DecodePayload(body, &payload); err != nil {
		d.metrics.IncIPCDecodeErrors()
		return &types.HelperResponse{Code: types.CodeFailure, Message: "malformed write payload"}
	}

	var written int64
	err := d.writer.WriteImage(d.ctx, &payload, func(w, total int64) {
		written = w
	})
	d.metrics.AddBytesWritten(written)
	if err != nil {
		d.logger.Error("image write failed", map[string]any{
			"error":   err.Error(),
			"written": written,
		})
		return &types.HelperResponse{Code: types.CodeFailedToWrite, Message: "write failed"}
	}

	return &types.HelperResponse{Code: types.CodeSuccess}
}
