// Package protocol holds the wire-level pieces of the tus 1.0.0 resumable upload protocol:
// header names, metadata encoding, offset parsing and upload location resolution.
package protocol

// Version is sent in the Tus-Resumable header of every request.
const Version = "1.0.0"

// Header names as they appear on the wire.
const (
	HeaderResumable   = "Tus-Resumable"
	HeaderUploadLen   = "Upload-Length"
	HeaderUploadOff   = "Upload-Offset"
	HeaderMetadata    = "Upload-Metadata"
	HeaderContentType = "Content-Type"
	HeaderLocation    = "Location"
	HeaderMediaID     = "Stream-Media-Id"
)

// OffsetContentType is the content type of a chunk transfer body.
const OffsetContentType = "application/offset+octet-stream"
