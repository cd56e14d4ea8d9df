// Package upload drives a resumable upload: it creates the upload resource, determines the
// offset to continue from, transfers the source chunk by chunk and reconciles every transfer
// with the offset reported by the server.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bitrise-io/go-tusupload/chunkassembler"
	"github.com/bitrise-io/go-tusupload/network"
	"github.com/bitrise-io/go-tusupload/protocol"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

const (
	opCreation    = "creation"
	opOffsetQuery = "offset query"
	opTransfer    = "transfer"
)

// ErrSourceLength is returned when the source produces more or fewer bytes than the upload length.
var ErrSourceLength = errors.New("source length does not match upload length")

// ErrUploadFailed is returned by an Uploader after a failed transfer.
var ErrUploadFailed = errors.New("upload failed earlier, resume it with a new uploader")

// Uploader runs the upload state machine for a single Session:
// Created -> DeterminingOffset -> Transferring -> Completed.
// Requests are strictly sequential; an Uploader must not be used from multiple goroutines.
type Uploader struct {
	transport network.Transport
	assembler *chunkassembler.Assembler
	session   *Session
	state     State
	stats     *chunkassembler.Stats
	logger    log.Logger
}

// NewUploader ...
func NewUploader(transport network.Transport, assembler *chunkassembler.Assembler, session *Session, logger log.Logger) (*Uploader, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is nil")
	}
	if assembler == nil {
		return nil, fmt.Errorf("assembler is nil")
	}
	if session == nil {
		return nil, fmt.Errorf("session is nil")
	}

	return &Uploader{
		transport: transport,
		assembler: assembler,
		session:   session,
		state:     StateCreated,
		stats:     chunkassembler.NewStats(),
		logger:    logger,
	}, nil
}

// Session returns the session driven by the uploader.
func (u *Uploader) Session() *Session {
	return u.session
}

// State ...
func (u *Uploader) State() State {
	return u.state
}

// Stats returns the chunk transfer statistics.
func (u *Uploader) Stats() *chunkassembler.Stats {
	return u.stats
}

// Upload creates the upload resource and transfers the whole source. A progress event is sent
// on events after every transfer and once on completion; events may be nil.
func (u *Uploader) Upload(ctx context.Context, events chan<- Progress) (Result, error) {
	if u.state == StateCreated {
		if err := u.Create(ctx); err != nil {
			return Result{}, err
		}
	}
	return u.run(ctx, events)
}

// Resume continues an upload that was created earlier at uploadURL. The current offset is
// queried from the server and that many bytes are skipped from the source.
func (u *Uploader) Resume(ctx context.Context, uploadURL string, events chan<- Progress) (Result, error) {
	if u.state != StateCreated {
		return Result{}, fmt.Errorf("cannot resume in state %s", u.state)
	}

	resolved, err := protocol.ResolveLocation(uploadURL, u.session.CreationURL)
	if err != nil {
		return Result{}, err
	}
	if err := u.session.setUploadURL(resolved); err != nil {
		return Result{}, err
	}
	u.state = StateDeterminingOffset

	return u.run(ctx, events)
}

func (u *Uploader) run(ctx context.Context, events chan<- Progress) (Result, error) {
	if u.state == StateFailed {
		return Result{}, ErrUploadFailed
	}
	if u.state == StateDeterminingOffset {
		if err := u.DetermineOffset(ctx); err != nil {
			return Result{}, err
		}
	}

	for {
		progress, err := u.Next(ctx)
		if err != nil {
			return Result{}, err
		}
		if err := emit(ctx, events, progress); err != nil {
			return Result{}, err
		}
		if progress.Done {
			break
		}
	}

	u.logger.Donef("Upload completed: %s transferred in %d chunks (avg %s per chunk)",
		units.HumanSizeWithPrecision(float64(u.stats.TotalBytes()), 3),
		u.stats.FinishedCount(), u.stats.Average().Round(time.Millisecond))

	return Result{
		UploadURL: u.session.UploadURL,
		MediaID:   u.session.MediaID,
		Offset:    u.session.Offset,
	}, nil
}

// Create issues the creation request and records the resolved upload URL.
func (u *Uploader) Create(ctx context.Context) error {
	if u.state != StateCreated {
		return fmt.Errorf("cannot create upload in state %s", u.state)
	}
	if u.session.CreationURL == nil {
		return fmt.Errorf("no creation endpoint configured")
	}

	header := u.header()
	header.Set(protocol.HeaderUploadLen, strconv.FormatInt(u.session.TotalLength, 10))
	if metadata := protocol.EncodeMetadata(u.session.Metadata); metadata != "" {
		header.Set(protocol.HeaderMetadata, metadata)
	}

	u.logger.Debugf("Creating upload of %s at %s", units.HumanSizeWithPrecision(float64(u.session.TotalLength), 3), u.session.CreationURL)
	resp, err := u.transport.Create(ctx, u.session.CreationURL.String(), header)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}

	if !isCreationSuccess(resp.StatusCode) {
		return protocol.StatusError(opCreation, resp.StatusCode, resp.Body)
	}
	if resp.StatusCode == http.StatusNotFound {
		u.logger.Warnf("Creation returned HTTP 404, continuing with the returned location")
	}

	location := resp.Header.Get(protocol.HeaderLocation)
	if location == "" {
		return protocol.NewProtocolError(opCreation, "missing location", protocol.ErrMissingLocation)
	}
	uploadURL, err := protocol.ResolveLocation(location, u.session.CreationURL)
	if err != nil {
		return err
	}
	if err := u.session.setUploadURL(uploadURL); err != nil {
		return err
	}
	u.session.MediaID = resp.Header.Get(protocol.HeaderMediaID)

	u.logger.Infof("Upload created: %s", uploadURL)
	if u.session.MediaID != "" {
		u.logger.Debugf("Media ID: %s", u.session.MediaID)
	}

	u.state = StateDeterminingOffset
	return nil
}

// DetermineOffset queries the offset the server holds for the upload.
func (u *Uploader) DetermineOffset(ctx context.Context) error {
	if u.state == StateFailed {
		return ErrUploadFailed
	}
	if u.state != StateDeterminingOffset {
		return fmt.Errorf("cannot determine offset in state %s", u.state)
	}

	resp, err := u.transport.QueryOffset(ctx, u.session.UploadURL.String(), u.header())
	if err != nil {
		return fmt.Errorf("query offset: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return protocol.StatusError(opOffsetQuery, resp.StatusCode, resp.Body)
	}

	offset, err := offsetFromResponse(opOffsetQuery, resp)
	if err != nil {
		return err
	}
	if offset > u.session.TotalLength {
		return protocol.NewProtocolError(opOffsetQuery,
			fmt.Sprintf("offset %d exceeds upload length %d", offset, u.session.TotalLength), nil)
	}
	if offset < u.session.Offset {
		return protocol.NewProtocolError(opOffsetQuery,
			fmt.Sprintf("offset %d is behind the acknowledged offset %d", offset, u.session.Offset), nil)
	}

	if skip := offset - u.session.Offset; skip > 0 {
		u.logger.Infof("Resuming upload at %s", units.HumanSizeWithPrecision(float64(offset), 3))
		if err := u.assembler.Discard(ctx, skip); err != nil {
			u.state = StateFailed
			if errors.Is(err, chunkassembler.ErrShortSource) {
				return fmt.Errorf("skip %d already uploaded bytes: %w", skip, ErrSourceLength)
			}
			return fmt.Errorf("skip %d already uploaded bytes: %w", skip, err)
		}
	}

	u.session.Offset = offset
	u.state = StateTransferring
	return nil
}

// Next transfers the next chunk and returns the resulting progress. Once the source is
// drained it moves to StateCompleted and returns a progress with Done set. A failed transfer
// moves to StateFailed: the chunk is gone from the source, so no further chunk is sent.
func (u *Uploader) Next(ctx context.Context) (Progress, error) {
	switch u.state {
	case StateCompleted:
		return u.completion(), nil
	case StateTransferring:
	case StateFailed:
		return Progress{}, ErrUploadFailed
	default:
		return Progress{}, fmt.Errorf("cannot transfer in state %s", u.state)
	}

	chunk, err := u.assembler.Next(ctx)
	if errors.Is(err, io.EOF) {
		if u.session.Offset != u.session.TotalLength {
			return u.fail(fmt.Errorf("source ended at %d bytes, upload length is %d: %w",
				u.session.Offset, u.session.TotalLength, ErrSourceLength))
		}
		u.state = StateCompleted
		return u.completion(), nil
	}
	if err != nil {
		return Progress{}, fmt.Errorf("assemble chunk: %w", err)
	}

	size := int64(len(chunk))
	expected := u.session.Offset + size
	if expected > u.session.TotalLength {
		return u.fail(fmt.Errorf("source exceeds upload length %d: %w", u.session.TotalLength, ErrSourceLength))
	}

	header := u.header()
	header.Set(protocol.HeaderUploadOff, strconv.FormatInt(u.session.Offset, 10))
	header.Set(protocol.HeaderContentType, protocol.OffsetContentType)

	u.logger.Debugf("Transferring chunk %d (%d bytes at offset %d)", u.stats.FinishedCount()+1, size, u.session.Offset)
	start := time.Now()
	resp, err := u.transport.SendChunk(ctx, u.session.UploadURL.String(), header, chunk)
	if err != nil {
		return u.fail(fmt.Errorf("transfer chunk at offset %d: %w", u.session.Offset, err))
	}
	if !isSuccess(resp.StatusCode) {
		return u.fail(protocol.StatusError(opTransfer, resp.StatusCode, resp.Body))
	}

	raw := resp.Header.Get(protocol.HeaderUploadOff)
	if raw == "" {
		return u.fail(protocol.NewProtocolError(opTransfer, "missing upload offset", protocol.ErrMalformedOffset))
	}
	offset, err := protocol.Reconcile(raw, expected)
	if err != nil {
		var mismatch *protocol.OffsetMismatchError
		if errors.As(err, &mismatch) {
			return u.fail(err)
		}
		return u.fail(protocol.NewProtocolError(opTransfer, "malformed upload offset", err))
	}

	u.session.Offset = offset
	u.stats.Update(time.Since(start), size)

	return Progress{
		Offset:      u.session.Offset,
		TotalLength: u.session.TotalLength,
		Fraction:    u.session.Fraction(),
		ChunkSize:   size,
	}, nil
}

func (u *Uploader) fail(err error) (Progress, error) {
	u.state = StateFailed
	return Progress{}, err
}

func (u *Uploader) completion() Progress {
	return Progress{
		Offset:      u.session.Offset,
		TotalLength: u.session.TotalLength,
		Fraction:    u.session.Fraction(),
		Done:        true,
		MediaID:     u.session.MediaID,
	}
}

func (u *Uploader) header() http.Header {
	header := u.session.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(protocol.HeaderResumable, protocol.Version)
	return header
}

func offsetFromResponse(op string, resp *network.Response) (int64, error) {
	raw := resp.Header.Get(protocol.HeaderUploadOff)
	if raw == "" {
		return 0, protocol.NewProtocolError(op, "missing upload offset", protocol.ErrMalformedOffset)
	}
	offset, err := protocol.ParseOffset(raw)
	if err != nil {
		return 0, protocol.NewProtocolError(op, "malformed upload offset", err)
	}
	return offset, nil
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// isCreationSuccess also accepts 404: some backends answer the creation request with
// 404 while still returning a usable Location.
func isCreationSuccess(statusCode int) bool {
	return isSuccess(statusCode) || statusCode == http.StatusNotFound
}
