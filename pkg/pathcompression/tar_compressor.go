package pathcompression

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/pgzip"
)

// tarCompressor writes .tar archives, optionally gzip-compressed through
// pgzip, which parallelizes the deflate work across cores.
type tarCompressor struct {
	format       Format
	level        Level
	ioBufferPool *sync.Pool
	ioBufferSize int
}

func newTarCompressor(format Format, level Level, ioBufferPool *sync.Pool, ioBufferSize int) *tarCompressor {
	return &tarCompressor{
		format:       format,
		level:        level,
		ioBufferPool: ioBufferPool,
		ioBufferSize: ioBufferSize,
	}
}

func (c *tarCompressor) compress(ctx context.Context, sourceDir string, out *os.File) (retErr error) {
	bufWriter := bufio.NewWriterSize(out, c.ioBufferSize)

	var archiveWriter io.Writer = bufWriter
	var gzipWriter *pgzip.Writer
	if c.format == Gzip {
		var err error
		gzipWriter, err = pgzip.NewWriterLevel(bufWriter, c.level.gzipLevel())
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		archiveWriter = gzipWriter
	}

	tw := tar.NewWriter(archiveWriter)

	defer func() {
		if err := tw.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if gzipWriter != nil {
			if err := gzipWriter.Close(); err != nil && retErr == nil {
				retErr = fmt.Errorf("gzip writer close failed: %w", err)
			}
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
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to create tar header for %s: %w", relPathKey, err)
		}
		header.Name = relPathKey

		f, err := secureFileOpen(absPath, info)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", absPath, err)
		}
		defer f.Close()

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", relPathKey, err)
		}
		if _, err := io.CopyBuffer(tw, f, buf); err != nil {
			return fmt.Errorf("failed to compress %s: %w", relPathKey, err)
		}
		return nil
	})
}
