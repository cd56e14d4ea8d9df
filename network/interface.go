package network

import (
	"context"
	"net/http"
)

// Response is the part of an HTTP response the upload protocol consumes.
type Response struct {
	StatusCode int
	Header     http.Header
	// Body holds at most the first KiB of the response body, for error reporting.
	Body string
}

// Transport issues the three requests of a resumable upload.
type Transport interface {
	Create(ctx context.Context, url string, header http.Header) (*Response, error)
	QueryOffset(ctx context.Context, url string, header http.Header) (*Response, error)
	SendChunk(ctx context.Context, url string, header http.Header, body []byte) (*Response, error)
}
