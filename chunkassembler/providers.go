package chunkassembler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultBufferSize is the piece size used by ReaderPieceSource when none is given.
const DefaultBufferSize = 256 * 1024

// ByteSlicePieceSource yields pre-loaded byte slices one by one.
// Useful for data that is already in memory and for tests.
type ByteSlicePieceSource struct {
	pieces [][]byte
	next   int
}

// NewByteSlicePieceSource creates a PieceSource from byte slices.
func NewByteSlicePieceSource(pieces [][]byte) *ByteSlicePieceSource {
	return &ByteSlicePieceSource{pieces: pieces}
}

// NextPiece ...
func (p *ByteSlicePieceSource) NextPiece(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.next >= len(p.pieces) {
		return nil, io.EOF
	}
	piece := p.pieces[p.next]
	p.next++
	return piece, nil
}

// Size returns the sum of the piece lengths.
func (p *ByteSlicePieceSource) Size() int64 {
	var size int64
	for _, piece := range p.pieces {
		size += int64(len(piece))
	}
	return size
}

// ReaderPieceSource reads pieces of at most BufferSize bytes from an io.Reader.
// Every returned piece is a fresh slice, so the assembler may hold on to it.
type ReaderPieceSource struct {
	reader     io.Reader
	bufferSize int
	done       bool
}

// NewReaderPieceSource creates a PieceSource reading from r. bufferSize <= 0 selects DefaultBufferSize.
func NewReaderPieceSource(r io.Reader, bufferSize int) *ReaderPieceSource {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &ReaderPieceSource{reader: r, bufferSize: bufferSize}
}

// NextPiece ...
func (p *ReaderPieceSource) NextPiece(ctx context.Context) ([]byte, error) {
	if p.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, p.bufferSize)
	n, err := p.reader.Read(buf)
	if errors.Is(err, io.EOF) {
		p.done = true
		if n == 0 {
			return nil, io.EOF
		}
		return buf[:n], nil
	}
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return buf[:n], nil
}

// FilePieceSource reads pieces from a file on disk.
type FilePieceSource struct {
	*ReaderPieceSource
	file *os.File
	size int64
}

// NewFilePieceSource opens path and creates a PieceSource for its content.
func NewFilePieceSource(path string, bufferSize int) (*FilePieceSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &FilePieceSource{
		ReaderPieceSource: NewReaderPieceSource(file, bufferSize),
		file:              file,
		size:              info.Size(),
	}, nil
}

// Size returns the size of the file when it was opened.
func (p *FilePieceSource) Size() int64 {
	return p.size
}

// Close closes the underlying file.
func (p *FilePieceSource) Close() error {
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
