// Package chunkassembler turns a stream of arbitrarily sized byte pieces into fixed size chunks
// for a resumable upload. Every chunk except the last one is exactly the configured size.
package chunkassembler

import (
	"context"
	"errors"
)

// ErrShortSource is returned by Assembler.Discard when the source drains before the requested
// number of bytes could be skipped.
var ErrShortSource = errors.New("source ended before the requested offset")

// PieceSource produces the raw pieces of the data to upload.
// Implementations can read from files, memory buffers, readers or remote objects.
type PieceSource interface {
	// NextPiece returns the next piece of data. Pieces may have any length, including zero.
	// io.EOF signals that the source is exhausted; it is never returned together with data.
	// Any other error is a source failure and is passed on to the caller unchanged.
	NextPiece(ctx context.Context) ([]byte, error)
}

// SizedPieceSource is a PieceSource that knows the total number of bytes it will produce.
type SizedPieceSource interface {
	PieceSource
	Size() int64
}
