package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/freetracer/arbiter"
	"github.com/justapithecus/freetracer/cli/render"
	"github.com/justapithecus/freetracer/cli/tui"
	"github.com/justapithecus/freetracer/eltorito"
	"github.com/justapithecus/freetracer/flasher"
	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/metrics"
	"github.com/justapithecus/freetracer/types"
)

// Flash exit codes:
//   - 0: success
//   - 1: refused (bad arguments, non-removable device, parse failure)
//   - 2: write failure
const (
	exitRefused      = 1
	exitWriteFailure = 2
)

// FlashResult is the response for the flash command. The retry and
// install counters come from the session's metrics snapshot.
type FlashResult struct {
	Device         string `json:"device"`
	Image          string `json:"image"`
	BytesWritten   int64  `json:"bytes_written"`
	DurationMS     int64  `json:"duration_ms"`
	Ejected        bool   `json:"ejected"`
	Retries        int64  `json:"retries"`
	HelperInstalls int64  `json:"helper_installs"`
}

// absorb folds the session's counters into the result.
func (r *FlashResult) absorb(snap metrics.Snapshot) {
	r.Retries = snap.OpRetries
	r.HelperInstalls = snap.HelperInstalls
}

// FlashCommand returns the flash command, the only destructive command
// in the CLI.
func FlashCommand() *cli.Command {
	return &cli.Command{
		Name:      "flash",
		Usage:     "Write a boot image to a removable device",
		ArgsUsage: "<image> <device>",
		Flags: []cli.Flag{
			ConfigFlag,
			FormatFlag,
			TUIFlag,
			EjectFlag,
			RawFlag,
		},
		Action: flashAction,
	}
}

func flashAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: freetracer flash <image> <device>", exitRefused)
	}
	imagePath, devicePath := c.Args().Get(0), c.Args().Get(1)

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitRefused)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitRefused)
	}

	logger := log.NewLogger("freetracer")
	defer func() { _ = logger.Sync() }()

	if !strings.HasPrefix(devicePath, cfg.Devices.PathPrefix) {
		return cli.Exit(fmt.Sprintf("device %q is outside %q", devicePath, cfg.Devices.PathPrefix), exitRefused)
	}

	// The kernel decides removability; a fixed disk never gets past
	// this point.
	target, err := arbiter.ProbeDevice(devicePath)
	if err != nil {
		return cli.Exit(err.Error(), exitRefused)
	}
	if !target.Removable {
		return cli.Exit(fmt.Sprintf("refusing to flash %s: not a removable device", devicePath), exitRefused)
	}

	transport := newLazyTransport(cfg.SocketPath, logger.Named("ipc"))
	defer transport.Close()

	collector := metrics.NewCollector("cli")
	lifecycle := newLifecycle(cfg, transport, logger, collector)
	devices := arbiter.New(transport, lifecycle, logger.Named("arbiter"))
	sink, err := newSink(cfg)
	if err != nil {
		return err
	}

	parse := eltorito.Parse
	if c.Bool("raw") {
		parse = eltorito.Describe
	}

	var stages chan flasher.Stage
	pipeline := &flasher.Pipeline{
		Parse:   parse,
		Devices: devices,
		Writer:  flasher.NewRemoteWriter(transport, lifecycle),
		Sink:    sink,
		Metrics: collector,
		Logger:  logger.Named("pipeline"),
	}
	if c.Bool("tui") {
		stages = make(chan flasher.Stage, 16)
		pipeline.OnStage = func(s flasher.Stage) {
			select {
			case stages <- s:
			default:
			}
		}
	}

	started := time.Now()
	worker := flasher.NewWorker(logger.Named("worker"))
	task, err := worker.Dispatch(c.Context, pipeline.Run(imagePath, target, flasher.Options{
		Eject: c.Bool("eject"),
	}))
	if err != nil {
		return cli.Exit(err.Error(), exitRefused)
	}

	if stages != nil {
		if err := tui.RunFlash(func() (flasher.TaskState, flasher.Progress) {
			return task.State(), task.Progress()
		}, stages); err != nil {
			logger.Warn("progress view failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	if err := task.Join(); err != nil {
		return cli.Exit(err.Error(), flashExitCode(err))
	}

	result := FlashResult{
		Device:       devicePath,
		Image:        imagePath,
		BytesWritten: task.Progress().BytesWritten,
		DurationMS:   time.Since(started).Milliseconds(),
		Ejected:      c.Bool("eject"),
	}
	result.absorb(collector.Snapshot())
	return r.Render(result)
}

func flashExitCode(err error) int {
	var serr *flasher.StageError
	if errors.As(err, &serr) && serr.Code == types.CodeFailedToWrite {
		return exitWriteFailure
	}
	return exitRefused
}
