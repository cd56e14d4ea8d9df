package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/klauspost/compress/zstd"
)

// CompressFile writes a zstd compressed copy of path into dir and returns its path.
// level is a zstd compression level between 1 and 19; 0 selects the default (3).
func CompressFile(ctx context.Context, path, dir string, level int, logger log.Logger) (string, error) {
	if level == 0 {
		level = 3
	}
	if level < 1 || level > 19 {
		return "", fmt.Errorf("compression level must be between 1 and 19, got %d", level)
	}

	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if err := in.Close(); err != nil {
			logger.Warnf("failed to close %s: %s", path, err)
		}
	}()

	outPath := filepath.Join(dir, filepath.Base(path)+".zst")
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create compressed file: %w", err)
	}

	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		_ = out.Close()
		return "", fmt.Errorf("create zstd writer: %w", err)
	}

	if _, err := io.Copy(zw, &contextReader{ctx: ctx, r: in}); err != nil {
		_ = zw.Close()
		_ = out.Close()
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("finish zstd stream: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close compressed file: %w", err)
	}

	logger.Debugf("Compressed %s to %s", path, outPath)
	return outPath, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
