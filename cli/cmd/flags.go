// Package cmd provides CLI commands for the freetracer binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags.
var (
	// ConfigFlag points at a freetracer.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a freetracer.yaml config file",
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// TUIFlag enables the Bubble Tea progress view.
	// Only valid for flash.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show an interactive progress view (flash only)",
	}

	// EjectFlag detaches the device after a successful write.
	EjectFlag = &cli.BoolFlag{
		Name:  "eject",
		Usage: "Eject the device after writing",
	}

	// RawFlag opts into writing images with no recognizable boot
	// record.
	RawFlag = &cli.BoolFlag{
		Name:  "raw",
		Usage: "Write the image even if it has no boot record",
	}
)

// ReadOnlyFlags returns the shared flags for read-only commands.
// Includes --tui so unsupported commands can reject it with a clear
// message instead of a generic "flag not defined" error.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		TUIFlag,
	}
}
