package chunkassembler

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Assembler pulls pieces from a PieceSource and coalesces them into chunks of the configured size.
// Bytes of a piece that do not fit into the current chunk are carried over to the next one.
// An Assembler belongs to a single upload and is not safe for concurrent use.
type Assembler struct {
	source    PieceSource
	chunkSize int64

	// piece is the currently held piece, piece[pieceOffset:] is not yet consumed.
	piece       []byte
	pieceOffset int
	exhausted   bool

	// pending keeps the bytes of a chunk under construction when the source fails mid-chunk.
	pending []byte
}

// New creates a new Assembler reading from source.
func New(source PieceSource, config Config) (*Assembler, error) {
	if source == nil {
		return nil, fmt.Errorf("piece source is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Assembler{
		source:    source,
		chunkSize: config.ChunkSize,
	}, nil
}

// ChunkSize returns the configured maximum chunk size.
func (a *Assembler) ChunkSize() int64 {
	return a.chunkSize
}

// Next returns the next chunk. Its length is in (0, ChunkSize]; only the final chunk may be shorter
// than ChunkSize. io.EOF is returned once the source is drained and no bytes remain.
func (a *Assembler) Next(ctx context.Context) ([]byte, error) {
	buf := a.pending
	a.pending = nil
	if buf == nil {
		buf = make([]byte, 0, a.initialCapacity())
	}

	for int64(len(buf)) < a.chunkSize {
		if a.pieceOffset >= len(a.piece) {
			if a.exhausted {
				break
			}
			if err := a.fetch(ctx); err != nil {
				a.pending = buf
				return nil, err
			}
			continue
		}

		need := int(a.chunkSize - int64(len(buf)))
		available := len(a.piece) - a.pieceOffset
		if available < need {
			need = available
		}
		buf = append(buf, a.piece[a.pieceOffset:a.pieceOffset+need]...)
		a.pieceOffset += need
	}

	if len(buf) == 0 {
		return nil, io.EOF
	}
	return buf, nil
}

// Discard skips the next n bytes of the source. It is used when an upload is resumed
// at a non-zero offset, before any chunk has been requested.
func (a *Assembler) Discard(ctx context.Context, n int64) error {
	if n < 0 {
		return fmt.Errorf("cannot discard a negative number of bytes (%d)", n)
	}

	if pending := int64(len(a.pending)); pending > 0 {
		if n < pending {
			a.pending = a.pending[n:]
			return nil
		}
		n -= pending
		a.pending = nil
	}

	for n > 0 {
		if a.pieceOffset >= len(a.piece) {
			if a.exhausted {
				return ErrShortSource
			}
			if err := a.fetch(ctx); err != nil {
				return err
			}
			continue
		}

		available := int64(len(a.piece) - a.pieceOffset)
		if available > n {
			available = n
		}
		a.pieceOffset += int(available)
		n -= available
	}
	return nil
}

// Exhausted reports whether the source has been drained and every byte handed out.
func (a *Assembler) Exhausted() bool {
	return a.exhausted && a.pieceOffset >= len(a.piece) && len(a.pending) == 0
}

func (a *Assembler) fetch(ctx context.Context) error {
	piece, err := a.source.NextPiece(ctx)
	if errors.Is(err, io.EOF) {
		a.exhausted = true
		a.piece = nil
		a.pieceOffset = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("read piece: %w", err)
	}

	a.piece = piece
	a.pieceOffset = 0
	return nil
}

func (a *Assembler) initialCapacity() int64 {
	const maxPrealloc = 8 * 1024 * 1024
	if a.chunkSize > maxPrealloc {
		return maxPrealloc
	}
	return a.chunkSize
}
