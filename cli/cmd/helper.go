package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/freetracer/cli/render"
	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/types"
)

// HelperStatusResponse is the response for helper status.
type HelperStatusResponse struct {
	Installed       bool   `json:"installed"`
	Version         string `json:"version,omitempty"`
	ExpectedVersion string `json:"expected_version"`
	Current         bool   `json:"current"`
}

// HelperCommand returns the helper command group.
func HelperCommand() *cli.Command {
	return &cli.Command{
		Name:  "helper",
		Usage: "Manage the privileged helper daemon",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show helper install state and version",
				Flags:  append(ReadOnlyFlags(), ConfigFlag),
				Action: helperStatusAction,
			},
			{
				Name:   "install",
				Usage:  "Install or update the helper daemon",
				Flags:  []cli.Flag{ConfigFlag},
				Action: helperInstallAction,
			},
		},
	}
}

func helperStatusAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for helper status", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger := log.NewLogger("freetracer")
	defer func() { _ = logger.Sync() }()

	transport := newLazyTransport(cfg.SocketPath, logger.Named("ipc"))
	defer transport.Close()
	manager := newLifecycle(cfg, transport, logger, nil)

	resp := HelperStatusResponse{ExpectedVersion: cfg.Helper.ExpectedVersion}
	resp.Installed, err = manager.IsInstalled(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if resp.Installed {
		// A registered helper that does not answer is reported as
		// installed but not current.
		if version, err := manager.RequestVersion(c.Context); err == nil {
			resp.Version = version
			resp.Current = version == cfg.Helper.ExpectedVersion
		}
	}

	return r.Render(resp)
}

func helperInstallAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger := log.NewLogger("freetracer")
	defer func() { _ = logger.Sync() }()

	transport := newLazyTransport(cfg.SocketPath, logger.Named("ipc"))
	defer transport.Close()
	manager := newLifecycle(cfg, transport, logger, nil)

	if code := manager.Install(c.Context); code != types.CodeSuccess {
		return cli.Exit("helper install failed", 1)
	}
	logger.Info("helper installed", map[string]any{
		"version": cfg.Helper.ExpectedVersion,
	})
	return nil
}
