package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/bitrise-io/go-tusupload/chunkassembler"
	"github.com/bitrise-io/go-tusupload/network"
	"github.com/bitrise-io/go-tusupload/source"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// SourceOpener opens the data to upload.
type SourceOpener interface {
	Open(ctx context.Context, params source.Params) (source.Source, error)
}

// Service uploads sources described by Params. Every Upload call runs its own session.
type Service struct {
	envRepo   env.Repository
	logger    log.Logger
	transport network.Transport
	opener    SourceOpener

	newTracker trackerFactory
}

// NewService creates a new upload service. `transport` and `opener` can be nil, unless you want to
// provide custom implementations.
func NewService(envRepo env.Repository, logger log.Logger, transport network.Transport, opener SourceOpener) *Service {
	if transport == nil {
		transport = network.NewClient(logger)
	}
	if opener == nil {
		opener = source.NewDefaultOpener(logger)
	}
	return &Service{
		envRepo:   envRepo,
		logger:    logger,
		transport: transport,
		opener:    opener,

		newTracker: analytics.NewDefaultTracker,
	}
}

// Upload opens the source, creates (or resumes) the upload and transfers it. Progress events
// are sent on events, which may be nil.
func (s *Service) Upload(ctx context.Context, params Params, events chan<- Progress) (Result, error) {
	s.logger.TDebugf("Upload start")
	defer func() {
		s.logger.TDebugf("Upload done")
	}()

	if err := params.validate(); err != nil {
		return Result{}, fmt.Errorf("invalid params: %w", err)
	}

	tracker := newUploadTracker(s.envRepo, s.logger, s.newTracker)
	defer tracker.wait()

	src, err := s.opener.Open(ctx, params.Source)
	if err != nil {
		return Result{}, fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			s.logger.Warnf("failed to close source: %s", err)
		}
	}()

	size := src.Size()
	s.logger.Printf("Source: %s (%s)", src.Name(), units.HumanSizeWithPrecision(float64(size), 3))

	config := chunkassembler.Config{ChunkSize: params.ChunkSize}
	if config.ChunkSize == 0 {
		config.ChunkSize = chunkassembler.OptimalChunkSize(size)
	}
	assembler, err := chunkassembler.New(src, config)
	if err != nil {
		return Result{}, err
	}
	s.logger.Debugf("Chunk size: %s", units.BytesSize(float64(config.ChunkSize)))

	metadata := params.Metadata.Clone()
	if _, ok := metadata.Get("filename"); !ok && src.Name() != "" {
		metadata.Set("filename", src.Name())
	}

	session, err := NewSession(params.Endpoint, size, params.header(), metadata)
	if err != nil {
		return Result{}, err
	}
	uploader, err := NewUploader(s.transport, assembler, session, s.logger)
	if err != nil {
		return Result{}, err
	}

	startTime := time.Now()
	var result Result
	resumed := params.UploadURL != ""
	if resumed {
		s.logger.Infof("Resuming upload %s...", params.UploadURL)
		result, err = uploader.Resume(ctx, params.UploadURL, events)
	} else {
		s.logger.Infof("Uploading %s...", src.Name())
		result, err = uploader.Upload(ctx, events)
	}
	uploadTime := time.Since(startTime).Round(time.Second)
	if err != nil {
		tracker.logUploadFailed(uploadTime, session.Offset, err.Error())
		if session.UploadURL != nil {
			s.logger.Warnf("Upload can be resumed from offset %d at %s", session.Offset, session.UploadURL)
		}
		return Result{}, fmt.Errorf("upload failed: %w", err)
	}

	s.logger.Donef("Uploaded in %s", uploadTime)
	tracker.logUploadCompleted(uploadTime, size, config.ChunkSize, uploader.Stats().FinishedCount(), resumed)
	return result, nil
}
