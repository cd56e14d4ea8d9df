package upload

import (
	"context"
	"net/url"
)

// Progress is reported after every chunk transfer, and once more when the upload completes.
type Progress struct {
	Offset      int64
	TotalLength int64
	// Fraction is Offset/TotalLength, in [0, 1].
	Fraction float64
	// ChunkSize is the size of the chunk just transferred, 0 for the completion event.
	ChunkSize int64
	Done      bool
	// MediaID is set on the completion event.
	MediaID string
}

// Result describes a completed upload.
type Result struct {
	UploadURL *url.URL
	MediaID   string
	Offset    int64
}

func emit(ctx context.Context, events chan<- Progress, p Progress) error {
	if events == nil {
		return nil
	}
	select {
	case events <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
