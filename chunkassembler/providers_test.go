package chunkassembler

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"
)

func readAll(t *testing.T, source PieceSource) ([]byte, int) {
	t.Helper()
	var data []byte
	pieces := 0
	for {
		piece, err := source.NextPiece(context.Background())
		if err == io.EOF {
			return data, pieces
		}
		if err != nil {
			t.Fatalf("NextPiece error: %v", err)
		}
		pieces++
		data = append(data, piece...)
	}
}

func TestByteSlicePieceSource(t *testing.T) {
	pieces := [][]byte{
		[]byte("first piece"),
		[]byte("second piece with more data"),
		[]byte("third"),
	}

	source := NewByteSlicePieceSource(pieces)

	if source.Size() != 43 {
		t.Errorf("Expected size 43, got %d", source.Size())
	}

	data, count := readAll(t, source)
	if count != 3 {
		t.Errorf("Expected 3 pieces, got %d", count)
	}
	if string(data) != "first piecesecond piece with more datathird" {
		t.Errorf("Unexpected data: %q", data)
	}

	if _, err := source.NextPiece(context.Background()); err != io.EOF {
		t.Errorf("Expected io.EOF after the last piece, got %v", err)
	}
}

func TestByteSlicePieceSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewByteSlicePieceSource([][]byte{[]byte("a")}).NextPiece(ctx); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestReaderPieceSource(t *testing.T) {
	payload := strings.Repeat("0123456789", 10)

	source := NewReaderPieceSource(iotest.HalfReader(strings.NewReader(payload)), 16)
	data, count := readAll(t, source)

	if string(data) != payload {
		t.Errorf("Read data doesn't match original")
	}
	if count < 100/16 {
		t.Errorf("Expected at least %d pieces, got %d", 100/16, count)
	}
}

func TestReaderPieceSource_DataWithEOF(t *testing.T) {
	source := NewReaderPieceSource(iotest.DataErrReader(strings.NewReader("abc")), 8)
	data, _ := readAll(t, source)

	if string(data) != "abc" {
		t.Errorf("Expected %q, got %q", "abc", data)
	}
}

func TestFilePieceSource(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.bin")

	testData := make([]byte, 100)
	for i := range testData {
		testData[i] = byte(i)
	}
	if err := os.WriteFile(testFile, testData, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	source, err := NewFilePieceSource(testFile, 30)
	if err != nil {
		t.Fatalf("NewFilePieceSource error: %v", err)
	}
	defer source.Close()

	if source.Size() != 100 {
		t.Errorf("Expected size 100, got %d", source.Size())
	}

	a, err := New(source, Config{ChunkSize: 40})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	chunks := drain(t, a)

	if s := sizes(chunks); len(s) != 3 || s[0] != 40 || s[1] != 40 || s[2] != 20 {
		t.Errorf("Expected chunk sizes [40 40 20], got %v", s)
	}
	if !bytes.Equal(bytes.Join(chunks, nil), testData) {
		t.Errorf("Read data doesn't match original")
	}
}

func TestFilePieceSource_Errors(t *testing.T) {
	if _, err := NewFilePieceSource(filepath.Join(t.TempDir(), "missing"), 0); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := NewFilePieceSource(t.TempDir(), 0); err == nil {
		t.Error("Expected error for directory")
	}
}

func TestStats(t *testing.T) {
	stats := NewStats()

	if stats.FinishedCount() != 0 {
		t.Errorf("Expected 0 finished, got %d", stats.FinishedCount())
	}

	if stats.Average() != 0 {
		t.Errorf("Expected 0 average, got %v", stats.Average())
	}

	stats.Update(100*time.Millisecond, 10)
	stats.Update(200*time.Millisecond, 10)
	stats.Update(300*time.Millisecond, 5)

	if stats.FinishedCount() != 3 {
		t.Errorf("Expected 3 finished, got %d", stats.FinishedCount())
	}

	if stats.TotalBytes() != 25 {
		t.Errorf("Expected 25 bytes, got %d", stats.TotalBytes())
	}

	expectedAvg := 200 * time.Millisecond
	if stats.Average() != expectedAvg {
		t.Errorf("Expected %v average, got %v", expectedAvg, stats.Average())
	}

	expectedTotal := 600 * time.Millisecond
	if stats.TotalDuration() != expectedTotal {
		t.Errorf("Expected %v total, got %v", expectedTotal, stats.TotalDuration())
	}
}

func TestOptimalChunkSize(t *testing.T) {
	tests := []struct {
		name      string
		totalSize int64
		want      int64
	}{
		{name: "unknown size", totalSize: 0, want: DefaultChunkSize},
		{name: "small file", totalSize: 10 * 1024 * 1024, want: MinOptimalChunkSize},
		{name: "large file", totalSize: 1024 * 1024 * 1024, want: 1024*1024*1024/100 + 1},
		{name: "very large file", totalSize: 100 * 1024 * 1024 * 1024, want: MaxOptimalChunkSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OptimalChunkSize(tt.totalSize); got != tt.want {
				t.Errorf("OptimalChunkSize(%d) = %d, want %d", tt.totalSize, got, tt.want)
			}
		})
	}
}
