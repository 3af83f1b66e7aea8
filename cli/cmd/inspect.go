package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/freetracer/cli/render"
	"github.com/justapithecus/freetracer/eltorito"
	"github.com/justapithecus/freetracer/types"
)

// BootEntryView is one boot catalog entry in inspect output.
type BootEntryView struct {
	Bootable    bool   `json:"bootable"`
	Media       string `json:"media"`
	LoadSegment uint16 `json:"load_segment"`
	SystemType  uint8  `json:"system_type"`
	SectorCount uint16 `json:"sector_count"`
	LoadRBA     uint32 `json:"load_rba"`
}

// InspectResponse is the response for the inspect command.
type InspectResponse struct {
	Path      string          `json:"path"`
	SizeBytes int64           `json:"size_bytes"`
	Developer string          `json:"developer"`
	Platform  string          `json:"platform"`
	Bootable  bool            `json:"bootable"`
	Entries   []BootEntryView `json:"entries"`
}

// InspectCommand returns the inspect command. Inspect parses the boot
// catalog without touching any device; it is read-only.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show an image's boot catalog",
		ArgsUsage: "<image>",
		Flags:     ReadOnlyFlags(),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: freetracer inspect <image>", 1)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for inspect", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	image, err := eltorito.Parse(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return r.Render(describeImage(image))
}

func describeImage(image *types.ImageDescriptor) InspectResponse {
	resp := InspectResponse{
		Path:      image.Path,
		SizeBytes: image.Size,
		Developer: image.Developer,
		Platform:  platformName(image.Platform),
		Bootable:  image.Bootable(),
	}
	for _, e := range image.BootEntries {
		resp.Entries = append(resp.Entries, BootEntryView{
			Bootable:    e.Bootable(),
			Media:       bootMediaName(e.BootMedia),
			LoadSegment: e.LoadSegment,
			SystemType:  e.SystemType,
			SectorCount: e.SectorCount,
			LoadRBA:     e.LoadRBA,
		})
	}
	return resp
}

func platformName(platform byte) string {
	switch platform {
	case 0x00:
		return "80x86"
	case 0x01:
		return "powerpc"
	case 0x02:
		return "mac"
	case 0xEF:
		return "efi"
	default:
		return "unknown"
	}
}

func bootMediaName(media uint8) string {
	switch media {
	case 0:
		return "no_emulation"
	case 1:
		return "floppy_1.2m"
	case 2:
		return "floppy_1.44m"
	case 3:
		return "floppy_2.88m"
	case 4:
		return "hard_disk"
	default:
		return "unknown"
	}
}
