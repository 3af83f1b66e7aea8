package eltorito

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/freetracer/iox"
	"github.com/justapithecus/freetracer/types"
)

// Parse opens the image at path and validates its El Torito boot
// catalog, returning a descriptor with the parsed boot entries.
//
// Failure modes:
//   - *ParseError{Kind: ErrNoBootRecord}: no boot record volume
//     descriptor at the fixed sector (not necessarily fatal for raw
//     writes; see Describe)
//   - *ParseError{Kind: ErrInvalidValidationEntry}: catalog signature
//     or checksum failure; must abort the flash pipeline
//   - *ParseError{Kind: ErrTruncated, ErrRead}: short or failed reads
func Parse(path string) (*types.ImageDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Kind: ErrRead, Msg: "cannot open image", Err: err}
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return nil, &ParseError{Kind: ErrRead, Msg: "cannot stat image", Err: err}
	}

	desc, err := parse(f, info.Size())
	if err != nil {
		return nil, err
	}
	desc.Path = path
	return desc, nil
}

// Describe builds a descriptor for an image without a boot catalog.
// This is the explicit opt-in for raw writes after Parse reported
// ErrNoBootRecord; it never runs for catalog-bearing images.
func Describe(path string) (*types.ImageDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ParseError{Kind: ErrRead, Msg: "cannot stat image", Err: err}
	}
	return &types.ImageDescriptor{Path: path, Size: info.Size()}, nil
}

// parse validates the boot record and catalog from r.
func parse(r io.ReaderAt, size int64) (*types.ImageDescriptor, error) {
	bootRecord, err := readSector(r, size, BootRecordSector)
	if err != nil {
		// An image too small to hold the descriptor area has no boot
		// record by definition.
		var perr *ParseError
		if errors.As(err, &perr) && perr.Kind == ErrTruncated {
			return nil, &ParseError{Kind: ErrNoBootRecord, Msg: "image too small for a boot record"}
		}
		return nil, err
	}

	catalogLBA, err := parseBootRecord(bootRecord)
	if err != nil {
		return nil, err
	}

	catalog, err := readSector(r, size, int64(catalogLBA))
	if err != nil {
		return nil, err
	}

	v, err := decodeValidationEntry(catalog[:EntrySize])
	if err != nil {
		return nil, err
	}

	desc := &types.ImageDescriptor{
		Size:      size,
		Platform:  v.PlatformID,
		Developer: trimPadding(v.IDString[:]),
	}

	// Initial/default entries follow the validation entry until the
	// catalog extent is exhausted or a terminator record is reached.
	for off := EntrySize; off+EntrySize <= SectorSize; off += EntrySize {
		rec := catalog[off : off+EntrySize]
		if rec[0] != bootIndicatorBootable {
			// Terminator, section header, or zero fill: the
			// initial/default region is over.
			break
		}
		desc.BootEntries = append(desc.BootEntries, decodeBootEntry(rec))
	}

	if len(desc.BootEntries) == 0 {
		return nil, &ParseError{
			Kind: ErrInvalidValidationEntry,
			Msg:  "boot catalog has no bootable entry",
		}
	}

	return desc, nil
}

// parseBootRecord checks the volume descriptor at the boot record
// sector and extracts the boot catalog pointer.
func parseBootRecord(sector []byte) (uint32, error) {
	if sector[0] != 0x00 || !bytes.Equal(sector[1:6], standardIdentifier) {
		return 0, &ParseError{Kind: ErrNoBootRecord, Msg: "no boot record volume descriptor"}
	}
	if !bytes.HasPrefix(sector[7:], bootSystemIdentifier) {
		return 0, &ParseError{Kind: ErrNoBootRecord, Msg: "boot record is not El Torito"}
	}
	return binary.LittleEndian.Uint32(sector[catalogPointerOffset : catalogPointerOffset+4]), nil
}

// readSector reads one full sector, bounds-checked against the image size.
func readSector(r io.ReaderAt, size, sector int64) ([]byte, error) {
	offset := sector * SectorSize
	if offset+SectorSize > size {
		return nil, &ParseError{
			Kind: ErrTruncated,
			Msg:  fmt.Sprintf("sector %d beyond image end", sector),
		}
	}

	buf := make([]byte, SectorSize)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return nil, &ParseError{
			Kind: ErrRead,
			Msg:  fmt.Sprintf("cannot read sector %d", sector),
			Err:  err,
		}
	}
	return buf, nil
}

// trimPadding strips trailing NUL and space padding from a fixed-width
// identifier field.
func trimPadding(b []byte) string {
	return string(bytes.TrimRight(b, "\x00 "))
}
