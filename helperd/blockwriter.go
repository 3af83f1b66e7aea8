package helperd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/freetracer/iox"
	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/types"
)

// DefaultChunkSize is the copy buffer size for device writes.
const DefaultChunkSize = 4 << 20

// BlockWriter copies an image file onto a raw block device in chunks,
// syncing once at the end so a success reply means the bytes reached
// the device.
type BlockWriter struct {
	// ChunkSize overrides DefaultChunkSize when positive.
	ChunkSize int
	Logger    *log.Logger
}

// WriteImage implements Writer.
func (w *BlockWriter) WriteImage(ctx context.Context, req *types.WriteImagePayload, report func(written, total int64)) (err error) {
	src, err := os.Open(req.ImagePath)
	if err != nil {
		return fmt.Errorf("cannot open image: %w", err)
	}
	defer iox.DiscardClose(src)

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat image: %w", err)
	}
	total := info.Size()
	if req.ImageSize > 0 && req.ImageSize != total {
		// The image changed between the client's parse and this write.
		return fmt.Errorf("image size changed: expected %d, found %d", req.ImageSize, total)
	}

	dst, err := os.OpenFile(req.DevicePath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("cannot open device: %w", err)
	}
	defer iox.CloseWith(&err, dst)

	chunk := w.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	buf := make([]byte, chunk)
	var written int64
	report(written, total)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("device write at offset %d: %w", written, werr)
			}
			written += int64(n)
			report(written, total)
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return fmt.Errorf("image read at offset %d: %w", written, rerr)
		}
	}

	if err := dst.Sync(); err != nil {
		return fmt.Errorf("device sync: %w", err)
	}

	w.Logger.Info("image written", map[string]any{
		"bytes": written,
	})
	return nil
}
