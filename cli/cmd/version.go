package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/freetracer/cli/render"
	"github.com/justapithecus/freetracer/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version  string `json:"version"`
	Protocol string `json:"protocol"`
	Commit   string `json:"commit"`
}

// VersionCommand returns the version command. It reports the CLI's own
// version and the helper protocol version it expects; it never
// contacts the helper.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version", 1)
		}

		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		return r.Render(VersionResponse{
			Version:  types.Version,
			Protocol: types.HelperProtocolVersion,
			Commit:   commit,
		})
	}
}
