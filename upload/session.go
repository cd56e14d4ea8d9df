package upload

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/bitrise-io/go-tusupload/protocol"
)

// Session is the in-memory state of one upload. It is owned by a single Uploader.
type Session struct {
	// CreationURL is the endpoint that creates upload resources.
	CreationURL *url.URL
	// UploadURL is the resolved upload resource. Set once, by creation or on resume.
	UploadURL *url.URL
	// TotalLength is the number of bytes the upload will have once complete.
	TotalLength int64
	// Offset is the number of bytes the server has acknowledged.
	Offset int64
	// MediaID is the identifier assigned by the server during creation, if any.
	MediaID string
	// Header is sent with every request, e.g. Authorization.
	Header   http.Header
	Metadata *protocol.Metadata
}

// NewSession ...
func NewSession(endpoint string, totalLength int64, header http.Header, metadata *protocol.Metadata) (*Session, error) {
	if totalLength < 0 {
		return nil, fmt.Errorf("upload length must not be negative, got %d", totalLength)
	}

	var creationURL *url.URL
	if endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("endpoint must be an absolute URL: %s", endpoint)
		}
		creationURL = u
	}

	if header == nil {
		header = http.Header{}
	}

	return &Session{
		CreationURL: creationURL,
		TotalLength: totalLength,
		Header:      header,
		Metadata:    metadata,
	}, nil
}

func (s *Session) setUploadURL(u *url.URL) error {
	if s.UploadURL != nil {
		return fmt.Errorf("upload URL is already set to %s", s.UploadURL)
	}
	s.UploadURL = u
	return nil
}

// Fraction returns Offset/TotalLength, 1 for an empty upload.
func (s *Session) Fraction() float64 {
	if s.TotalLength == 0 {
		return 1
	}
	return float64(s.Offset) / float64(s.TotalLength)
}
