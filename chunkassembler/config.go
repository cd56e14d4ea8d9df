package chunkassembler

import (
	"fmt"
)

const (
	// MinOptimalChunkSize is the lower bound used by OptimalChunkSize.
	MinOptimalChunkSize int64 = 5 * 1024 * 1024
	// MaxOptimalChunkSize is the upper bound used by OptimalChunkSize.
	MaxOptimalChunkSize int64 = 200 * 1024 * 1024
	// DefaultChunkSize is used when no chunk size is configured and the total size is unknown.
	DefaultChunkSize = MinOptimalChunkSize

	targetChunkCount = 100
)

// Config holds configuration for the chunk assembler.
type Config struct {
	// ChunkSize is the maximum size of an emitted chunk in bytes.
	// Every chunk except the last one has exactly this size.
	// Default: 5 MiB
	ChunkSize int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
	}
}

// Validate ...
func (c Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1 byte, got %d", c.ChunkSize)
	}
	return nil
}

// OptimalChunkSize picks a chunk size that splits totalSize into roughly a hundred transfers,
// bounded by MinOptimalChunkSize and MaxOptimalChunkSize.
func OptimalChunkSize(totalSize int64) int64 {
	if totalSize <= 0 {
		return DefaultChunkSize
	}
	return optimalChunkSize(totalSize, MinOptimalChunkSize, MaxOptimalChunkSize, targetChunkCount)
}

func optimalChunkSize(totalSize, min, max, count int64) int64 {
	cs := totalSize / count
	if totalSize%count != 0 {
		cs++
	}

	if cs < min {
		cs = min
	}

	if max > 0 && cs > max {
		cs = max
	}

	return cs
}
