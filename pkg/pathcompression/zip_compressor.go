package pathcompression

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

type zipCompressor struct {
	level        Level
	ioBufferPool *sync.Pool
	ioBufferSize int
}

func newZipCompressor(level Level, ioBufferPool *sync.Pool, ioBufferSize int) *zipCompressor {
	return &zipCompressor{
		level:        level,
		ioBufferPool: ioBufferPool,
		ioBufferSize: ioBufferSize,
	}
}

func (c *zipCompressor) compress(ctx context.Context, sourceDir string, out *os.File) (retErr error) {
	bufWriter := bufio.NewWriterSize(out, c.ioBufferSize)
	zw := zip.NewWriter(bufWriter)

	// Use klauspost's flate for deflate entries instead of the stdlib one.
	flateLevel := c.level.flateLevel()
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flateLevel)
	})

	defer func() {
		if err := zw.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("zip writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	bufPtr := c.ioBufferPool.Get().(*[]byte)
	defer c.ioBufferPool.Put(bufPtr)
	buf := *bufPtr
	buf = buf[:cap(buf)]

	return walkFiles(ctx, sourceDir, func(absPath, relPathKey string, info os.FileInfo) error {
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("failed to create zip header for %s: %w", relPathKey, err)
		}
		header.Name = relPathKey
		header.Method = zip.Deflate

		entry, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to write zip header for %s: %w", relPathKey, err)
		}

		f, err := secureFileOpen(absPath, info)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", absPath, err)
		}
		defer f.Close()

		if _, err := io.CopyBuffer(entry, f, buf); err != nil {
			return fmt.Errorf("failed to compress %s: %w", relPathKey, err)
		}
		return nil
	})
}
