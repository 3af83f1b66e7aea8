package types

// BootCatalogEntry is one parsed initial/default entry from an
// El Torito boot catalog.
type BootCatalogEntry struct {
	// BootIndicator is 0x88 for bootable entries.
	BootIndicator byte `json:"boot_indicator"`
	// BootMedia is the boot media type (0 = no emulation).
	BootMedia byte `json:"boot_media"`
	// LoadSegment is the load segment for the initial boot image,
	// 0 meaning the traditional 0x7C0.
	LoadSegment uint16 `json:"load_segment"`
	// SystemType is the partition type byte of the boot image.
	SystemType byte `json:"system_type"`
	// SectorCount is the number of virtual sectors loaded at boot.
	SectorCount uint16 `json:"sector_count"`
	// LoadRBA is the start address of the virtual disk (relative block
	// address within the image).
	LoadRBA uint32 `json:"load_rba"`
}

// Bootable returns true if the entry is marked bootable.
func (e BootCatalogEntry) Bootable() bool {
	return e.BootIndicator == 0x88
}

// ImageDescriptor describes a validated source image.
// Produced once per selected image and cached for the session; the
// caller owns it and discards it when a new image is selected.
type ImageDescriptor struct {
	// Path is the source image path.
	Path string `json:"path"`
	// Size is the image size in bytes.
	Size int64 `json:"size"`
	// Developer is the manufacturer/developer string from the catalog
	// validation entry, trimmed of padding.
	Developer string `json:"developer,omitempty"`
	// Platform is the platform ID from the validation entry
	// (0 = 80x86, 1 = PowerPC, 2 = Mac, 0xEF = EFI).
	Platform byte `json:"platform"`
	// BootEntries are the parsed boot catalog entries, empty when the
	// image has no boot record and raw writes were explicitly permitted.
	BootEntries []BootCatalogEntry `json:"boot_entries,omitempty"`
}

// Bootable returns true if the image carries at least one bootable
// catalog entry.
func (d *ImageDescriptor) Bootable() bool {
	for _, e := range d.BootEntries {
		if e.Bootable() {
			return true
		}
	}
	return false
}
