package flasher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/freetracer/adapter"
	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/metrics"
	"github.com/justapithecus/freetracer/types"
)

// Stage names a step of the flash pipeline.
type Stage string

const (
	StageInit       Stage = "init"
	StageUnmounting Stage = "unmounting"
	StageWriting    Stage = "writing"
	StageEjecting   Stage = "ejecting"
	StageComplete   Stage = "complete"
	StageFailed     Stage = "failed"
)

// Devices issues unmount and eject requests. Satisfied by
// *arbiter.Arbiter.
type Devices interface {
	RequestUnmount(ctx context.Context, device types.DeviceTarget) (types.ReturnCode, error)
	Eject(ctx context.Context, device types.DeviceTarget) (types.ReturnCode, error)
}

// ImageWriter writes an image to a device, reporting progress.
type ImageWriter interface {
	WriteImage(ctx context.Context, image *types.ImageDescriptor, device types.DeviceTarget, report func(Progress)) (types.ReturnCode, error)
}

// Parser produces an image descriptor from a path. Boot-image parsing
// by default; a raw describe for explicit non-bootable writes.
type Parser func(path string) (*types.ImageDescriptor, error)

// Options select optional pipeline behavior.
type Options struct {
	// Eject detaches the device after a successful write. Eject is an
	// explicit choice; a bare flash leaves the device attached.
	Eject bool
}

// StageError is the terminal error of a failed pipeline run.
type StageError struct {
	Stage Stage
	Code  types.ReturnCode
	Err   error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s stage failed with code %s", e.Stage, e.Code)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline runs one flash operation through its stages:
// parse, unmount, write, optionally eject.
//
// Image parsing happens first and aborts the run before any privileged
// request is made. Operations that come back TryAgain after a
// corrective helper action are retried exactly once.
type Pipeline struct {
	Parse   Parser
	Devices Devices
	Writer  ImageWriter
	Sink    adapter.Adapter
	Metrics *metrics.Collector
	Logger  *log.Logger

	// OnStage observes stage transitions. Optional.
	OnStage func(Stage)
}

func (p *Pipeline) stage(s Stage) {
	if p.OnStage != nil {
		p.OnStage(s)
	}
	p.Logger.Debug("pipeline stage", map[string]any{
		"stage": string(s),
	})
}

// Run builds the pipeline's task function for Worker.Dispatch. The
// task's context governs cancellation of every stage.
func (p *Pipeline) Run(imagePath string, device types.DeviceTarget, opts Options) TaskFunc {
	return func(taskCtx context.Context, report func(Progress)) error {
		started := time.Now()
		p.Metrics.IncFlashStarted()

		retried := false
		var written int64
		err := p.run(taskCtx, imagePath, device, opts, report, &retried, &written)

		outcome := adapter.OutcomeSuccess
		switch {
		case err == nil:
			p.Metrics.IncFlashCompleted()
		case errors.Is(err, context.Canceled):
			outcome = adapter.OutcomeCancelled
			p.Metrics.IncFlashCancelled()
		default:
			outcome = adapter.OutcomeFailed
			p.Metrics.IncFlashFailed()
		}
		p.Metrics.AddBytesWritten(written)

		p.notify(adapter.FlashCompletedEvent{
			Outcome:      outcome,
			Duration:     time.Since(started),
			BytesWritten: written,
			Retried:      retried,
			FinishedAt:   time.Now().UTC(),
		})
		return err
	}
}

func (p *Pipeline) run(ctx context.Context, imagePath string, device types.DeviceTarget, opts Options, report func(Progress), retried *bool, written *int64) error {
	p.stage(StageInit)

	// Parse failures abort here; no privileged request has been made
	// yet and none will be.
	image, err := p.Parse(imagePath)
	if err != nil {
		p.stage(StageFailed)
		return &StageError{Stage: StageInit, Err: err}
	}
	report(Progress{BytesTotal: image.Size})

	p.stage(StageUnmounting)
	if err := p.retryOnce(ctx, StageUnmounting, retried, func(ctx context.Context) (types.ReturnCode, error) {
		return p.Devices.RequestUnmount(ctx, device)
	}); err != nil {
		p.stage(StageFailed)
		return err
	}

	p.stage(StageWriting)
	wrap := func(prog Progress) {
		*written = prog.BytesWritten
		report(prog)
	}
	if err := p.retryOnce(ctx, StageWriting, retried, func(ctx context.Context) (types.ReturnCode, error) {
		return p.Writer.WriteImage(ctx, image, device, wrap)
	}); err != nil {
		p.stage(StageFailed)
		return err
	}

	if opts.Eject {
		p.stage(StageEjecting)
		if err := p.retryOnce(ctx, StageEjecting, retried, func(ctx context.Context) (types.ReturnCode, error) {
			return p.Devices.Eject(ctx, device)
		}); err != nil {
			p.stage(StageFailed)
			return err
		}
	}

	p.stage(StageComplete)
	return nil
}

// retryOnce runs op, honoring a single TryAgain. A second TryAgain is
// terminal; the pipeline never loops on corrective actions.
func (p *Pipeline) retryOnce(ctx context.Context, stage Stage, retried *bool, op func(context.Context) (types.ReturnCode, error)) error {
	code, err := op(ctx)
	if err != nil {
		return &StageError{Stage: stage, Code: code, Err: err}
	}
	if code == types.CodeTryAgain {
		*retried = true
		p.Metrics.IncOpRetry()
		p.Logger.Info("retrying after corrective helper action", map[string]any{
			"stage": string(stage),
		})
		code, err = op(ctx)
		if err != nil {
			return &StageError{Stage: stage, Code: code, Err: err}
		}
	}
	if code != types.CodeSuccess {
		return &StageError{Stage: stage, Code: code}
	}
	return nil
}

func (p *Pipeline) notify(event adapter.FlashCompletedEvent) {
	if p.Sink == nil {
		return
	}
	// Delivery is best-effort on its own deadline; a sink outage never
	// changes the flash outcome.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.Sink.NotifyFlashCompleted(ctx, event); err != nil {
		p.Logger.Warn("completion notification failed", map[string]any{
			"error": err.Error(),
		})
	}
}
