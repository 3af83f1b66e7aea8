// Package eltorito parses and validates ISO 9660 / El Torito boot
// images before anything privileged happens.
//
// The parser only reads the source file. It performs no writes and
// requires no privilege; a validation failure here aborts the whole
// flash pipeline before any helper request is issued.
package eltorito

import (
	"encoding/binary"
	"fmt"

	"github.com/justapithecus/freetracer/types"
)

// ISO 9660 / El Torito layout constants.
const (
	// SectorSize is the ISO 9660 logical sector size.
	SectorSize = 2048
	// BootRecordSector is the fixed sector of the Boot Record Volume
	// Descriptor.
	BootRecordSector = 17
	// EntrySize is the size of every boot catalog record.
	EntrySize = 32
	// catalogPointerOffset is the byte offset of the boot catalog LBA
	// within the boot record volume descriptor.
	catalogPointerOffset = 0x47
)

// Validation entry signature bytes (the fixed magic pair).
const (
	sigByte1 = 0x55
	sigByte2 = 0xAA
)

// validationHeaderID is the required header ID of a validation entry.
const validationHeaderID = 0x01

// Boot indicator values for initial/default entries.
const (
	bootIndicatorBootable = 0x88
	bootIndicatorNone     = 0x00
)

// standardIdentifier is the ISO 9660 volume descriptor magic.
var standardIdentifier = []byte("CD001")

// bootSystemIdentifier identifies an El Torito boot record.
var bootSystemIdentifier = []byte("EL TORITO SPECIFICATION")

// ParseErrorKind classifies image parse errors.
type ParseErrorKind int

const (
	// ErrNoBootRecord indicates the image has no El Torito boot record.
	// The caller may still permit a raw write, but only as an explicit
	// choice (see Describe), never silently.
	ErrNoBootRecord ParseErrorKind = iota
	// ErrInvalidValidationEntry indicates a signature or checksum
	// failure in the catalog validation entry.
	ErrInvalidValidationEntry
	// ErrTruncated indicates the image ended before a referenced
	// sector or record.
	ErrTruncated
	// ErrRead indicates an I/O failure reading the image.
	ErrRead
)

// ParseError represents an image validation failure.
type ParseError struct {
	Kind ParseErrorKind
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// validationEntry is the fixed 32-byte validation record at the head of
// the boot catalog. All multi-byte fields are little-endian on the wire.
type validationEntry struct {
	HeaderID   byte
	PlatformID byte
	// 2 reserved bytes
	IDString [24]byte
	Checksum uint16
	Sig      [2]byte
}

// decodeValidationEntry decodes the first catalog record and enforces
// its integrity rules: the signature bytes must equal the fixed magic
// pair, and the 16-bit little-endian word sum of the whole record must
// be zero modulo 0x10000.
func decodeValidationEntry(rec []byte) (*validationEntry, error) {
	if len(rec) < EntrySize {
		return nil, &ParseError{
			Kind: ErrTruncated,
			Msg:  fmt.Sprintf("validation entry needs %d bytes, have %d", EntrySize, len(rec)),
		}
	}

	v := &validationEntry{
		HeaderID:   rec[0],
		PlatformID: rec[1],
		Checksum:   binary.LittleEndian.Uint16(rec[28:30]),
		Sig:        [2]byte{rec[30], rec[31]},
	}
	copy(v.IDString[:], rec[4:28])

	if v.Sig[0] != sigByte1 || v.Sig[1] != sigByte2 {
		return nil, &ParseError{
			Kind: ErrInvalidValidationEntry,
			Msg:  "validation entry signature mismatch",
		}
	}

	// Word sum over the full record, checksum field included.
	var sum uint16
	for off := 0; off < EntrySize; off += 2 {
		sum += binary.LittleEndian.Uint16(rec[off : off+2])
	}
	if sum != 0 {
		return nil, &ParseError{
			Kind: ErrInvalidValidationEntry,
			Msg:  "validation entry checksum nonzero",
		}
	}

	if v.HeaderID != validationHeaderID {
		return nil, &ParseError{
			Kind: ErrInvalidValidationEntry,
			Msg:  fmt.Sprintf("validation entry header id 0x%02X", v.HeaderID),
		}
	}

	return v, nil
}

// decodeBootEntry decodes a 32-byte initial/default entry.
func decodeBootEntry(rec []byte) types.BootCatalogEntry {
	return types.BootCatalogEntry{
		BootIndicator: rec[0],
		BootMedia:     rec[1],
		LoadSegment:   binary.LittleEndian.Uint16(rec[2:4]),
		SystemType:    rec[4],
		SectorCount:   binary.LittleEndian.Uint16(rec[6:8]),
		LoadRBA:       binary.LittleEndian.Uint32(rec[8:12]),
	}
}
