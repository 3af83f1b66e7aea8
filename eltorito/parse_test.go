package eltorito

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testCatalogLBA = 19

// buildBootRecord builds a Boot Record Volume Descriptor sector
// pointing at the given catalog LBA.
func buildBootRecord(catalogLBA uint32) []byte {
	sector := make([]byte, SectorSize)
	sector[0] = 0x00
	copy(sector[1:6], standardIdentifier)
	sector[6] = 0x01
	copy(sector[7:], bootSystemIdentifier)
	binary.LittleEndian.PutUint32(sector[catalogPointerOffset:], catalogLBA)
	return sector
}

// buildValidationEntry builds a 32-byte validation entry with a correct
// checksum for the given header fields.
func buildValidationEntry(headerID, platformID byte, id string) []byte {
	rec := make([]byte, EntrySize)
	rec[0] = headerID
	rec[1] = platformID
	copy(rec[4:28], id)
	rec[30] = sigByte1
	rec[31] = sigByte2

	// Checksum makes the 16-bit word sum zero mod 0x10000.
	var sum uint16
	for off := 0; off < EntrySize; off += 2 {
		sum += binary.LittleEndian.Uint16(rec[off : off+2])
	}
	binary.LittleEndian.PutUint16(rec[28:30], -sum)
	return rec
}

// buildBootEntry builds a 32-byte initial/default entry.
func buildBootEntry(indicator, media byte, sectorCount uint16, loadRBA uint32) []byte {
	rec := make([]byte, EntrySize)
	rec[0] = indicator
	rec[1] = media
	binary.LittleEndian.PutUint16(rec[6:8], sectorCount)
	binary.LittleEndian.PutUint32(rec[8:12], loadRBA)
	return rec
}

// buildImage assembles a minimal image: boot record at sector 17,
// catalog records at testCatalogLBA.
func buildImage(bootRecord []byte, catalogRecords ...[]byte) []byte {
	img := make([]byte, (testCatalogLBA+1)*SectorSize)
	copy(img[BootRecordSector*SectorSize:], bootRecord)
	off := testCatalogLBA * SectorSize
	for _, rec := range catalogRecords {
		copy(img[off:], rec)
		off += len(rec)
	}
	return img
}

// writeImage writes img to a temp file and returns its path.
func writeImage(t *testing.T, img []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.iso")
	if err := os.WriteFile(path, img, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func parseKind(t *testing.T, err error) ParseErrorKind {
	t.Helper()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	return perr.Kind
}

func TestParse_ValidImage(t *testing.T) {
	img := buildImage(
		buildBootRecord(testCatalogLBA),
		buildValidationEntry(0x01, 0x00, "FREETRACER TEST"),
		buildBootEntry(0x88, 0x00, 4, 0x10),
	)

	desc, err := Parse(writeImage(t, img))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(desc.BootEntries) != 1 {
		t.Fatalf("got %d boot entries, want 1", len(desc.BootEntries))
	}
	entry := desc.BootEntries[0]
	if entry.SectorCount != 4 {
		t.Errorf("SectorCount = %d, want 4", entry.SectorCount)
	}
	if entry.LoadRBA != 16 {
		t.Errorf("LoadRBA = %d, want 16", entry.LoadRBA)
	}
	if !entry.Bootable() {
		t.Error("entry should be bootable")
	}
	if desc.Developer != "FREETRACER TEST" {
		t.Errorf("Developer = %q, want %q", desc.Developer, "FREETRACER TEST")
	}
	if !desc.Bootable() {
		t.Error("descriptor should be bootable")
	}
	if desc.Size != int64(len(img)) {
		t.Errorf("Size = %d, want %d", desc.Size, len(img))
	}
}

func TestParse_MultipleBootEntries(t *testing.T) {
	img := buildImage(
		buildBootRecord(testCatalogLBA),
		buildValidationEntry(0x01, 0xEF, "DEV"),
		buildBootEntry(0x88, 0x00, 4, 0x10),
		buildBootEntry(0x88, 0x00, 8, 0x20),
		make([]byte, EntrySize), // terminator: parsing stops here
		buildBootEntry(0x88, 0x00, 16, 0x40),
	)

	desc, err := Parse(writeImage(t, img))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(desc.BootEntries) != 2 {
		t.Fatalf("got %d boot entries, want 2 (stop at terminator)", len(desc.BootEntries))
	}
	if desc.BootEntries[1].LoadRBA != 0x20 {
		t.Errorf("BootEntries[1].LoadRBA = %d, want %d", desc.BootEntries[1].LoadRBA, 0x20)
	}
	if desc.Platform != 0xEF {
		t.Errorf("Platform = 0x%02X, want 0xEF", desc.Platform)
	}
}

// A corrupted signature pair is rejected regardless of checksum
// correctness: the checksum below is recomputed over the zeroed
// signature bytes so only the signature check can fail first.
func TestParse_SignatureCorrupted(t *testing.T) {
	validation := buildValidationEntry(0x01, 0x00, "DEV")
	validation[30] = 0x00
	validation[31] = 0x00
	var sum uint16
	binary.LittleEndian.PutUint16(validation[28:30], 0)
	for off := 0; off < EntrySize; off += 2 {
		sum += binary.LittleEndian.Uint16(validation[off : off+2])
	}
	binary.LittleEndian.PutUint16(validation[28:30], -sum)

	img := buildImage(
		buildBootRecord(testCatalogLBA),
		validation,
		buildBootEntry(0x88, 0x00, 4, 0x10),
	)

	_, err := Parse(writeImage(t, img))
	if err == nil {
		t.Fatal("expected error for corrupted signature")
	}
	if kind := parseKind(t, err); kind != ErrInvalidValidationEntry {
		t.Errorf("Kind = %v, want ErrInvalidValidationEntry", kind)
	}
}

// A nonzero word sum is rejected even with correct signature bytes.
func TestParse_ChecksumMismatch(t *testing.T) {
	validation := buildValidationEntry(0x01, 0x00, "DEV")
	checksum := binary.LittleEndian.Uint16(validation[28:30])
	binary.LittleEndian.PutUint16(validation[28:30], checksum+1)

	img := buildImage(
		buildBootRecord(testCatalogLBA),
		validation,
		buildBootEntry(0x88, 0x00, 4, 0x10),
	)

	_, err := Parse(writeImage(t, img))
	if err == nil {
		t.Fatal("expected error for checksum mismatch")
	}
	if kind := parseKind(t, err); kind != ErrInvalidValidationEntry {
		t.Errorf("Kind = %v, want ErrInvalidValidationEntry", kind)
	}
}

func TestParse_BadHeaderID(t *testing.T) {
	img := buildImage(
		buildBootRecord(testCatalogLBA),
		buildValidationEntry(0x02, 0x00, "DEV"),
		buildBootEntry(0x88, 0x00, 4, 0x10),
	)

	_, err := Parse(writeImage(t, img))
	if err == nil {
		t.Fatal("expected error for bad header id")
	}
	if kind := parseKind(t, err); kind != ErrInvalidValidationEntry {
		t.Errorf("Kind = %v, want ErrInvalidValidationEntry", kind)
	}
}

func TestParse_NoBootRecord(t *testing.T) {
	tests := []struct {
		name string
		img  []byte
	}{
		{
			name: "zeroed descriptor sector",
			img:  buildImage(make([]byte, SectorSize)),
		},
		{
			name: "image smaller than descriptor area",
			img:  make([]byte, 4*SectorSize),
		},
		{
			name: "volume descriptor without el torito identifier",
			img: func() []byte {
				rec := buildBootRecord(testCatalogLBA)
				copy(rec[7:7+len(bootSystemIdentifier)], make([]byte, len(bootSystemIdentifier)))
				return buildImage(rec)
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(writeImage(t, tt.img))
			if err == nil {
				t.Fatal("expected error")
			}
			if kind := parseKind(t, err); kind != ErrNoBootRecord {
				t.Errorf("Kind = %v, want ErrNoBootRecord", kind)
			}
		})
	}
}

func TestParse_CatalogBeyondImage(t *testing.T) {
	img := buildImage(buildBootRecord(10_000))

	_, err := Parse(writeImage(t, img))
	if err == nil {
		t.Fatal("expected error for out-of-range catalog")
	}
	if kind := parseKind(t, err); kind != ErrTruncated {
		t.Errorf("Kind = %v, want ErrTruncated", kind)
	}
}

func TestParse_NoBootableEntry(t *testing.T) {
	img := buildImage(
		buildBootRecord(testCatalogLBA),
		buildValidationEntry(0x01, 0x00, "DEV"),
		make([]byte, EntrySize),
	)

	_, err := Parse(writeImage(t, img))
	if err == nil {
		t.Fatal("expected error for empty catalog")
	}
	if kind := parseKind(t, err); kind != ErrInvalidValidationEntry {
		t.Errorf("Kind = %v, want ErrInvalidValidationEntry", kind)
	}
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "absent.iso"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if kind := parseKind(t, err); kind != ErrRead {
		t.Errorf("Kind = %v, want ErrRead", kind)
	}
}

func TestDescribe(t *testing.T) {
	img := make([]byte, 3*SectorSize)
	path := writeImage(t, img)

	desc, err := Describe(path)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if desc.Size != int64(len(img)) {
		t.Errorf("Size = %d, want %d", desc.Size, len(img))
	}
	if len(desc.BootEntries) != 0 {
		t.Errorf("raw descriptor should have no boot entries, got %d", len(desc.BootEntries))
	}
	if desc.Bootable() {
		t.Error("raw descriptor should not be bootable")
	}
}
