package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/bitrise-io/go-tusupload/chunkassembler"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
)

// Source is an opened upload source.
type Source interface {
	chunkassembler.SizedPieceSource
	// Name is the file name of the source, used as the default filename metadata.
	Name() string
	Close() error
}

// Params selects the data to upload. Exactly one of Path, URL and S3 must be set.
type Params struct {
	// Path is a local file path, may be a doublestar glob pattern matching a single file.
	Path string
	// URL is a remote file downloaded before the upload.
	URL string
	S3  *S3Params
	// Compress zstd compresses local and remote files before the upload.
	Compress         bool
	CompressionLevel int
	BufferSize       int
	// HTTPClient is used for URL downloads; may be nil.
	HTTPClient *http.Client
}

// Opener opens upload sources.
type Opener struct {
	pathProvider pathutil.PathProvider
	pathModifier pathutil.PathModifier
	pathChecker  pathutil.PathChecker
	logger       log.Logger
}

// NewOpener ...
func NewOpener(pathProvider pathutil.PathProvider, pathModifier pathutil.PathModifier, pathChecker pathutil.PathChecker, logger log.Logger) *Opener {
	return &Opener{
		pathProvider: pathProvider,
		pathModifier: pathModifier,
		pathChecker:  pathChecker,
		logger:       logger,
	}
}

// NewDefaultOpener creates an Opener working on the real file system.
func NewDefaultOpener(logger log.Logger) *Opener {
	return NewOpener(pathutil.NewPathProvider(), pathutil.NewPathModifier(), pathutil.NewPathChecker(), logger)
}

// Open ...
func (o *Opener) Open(ctx context.Context, params Params) (Source, error) {
	set := 0
	for _, ok := range []bool{params.Path != "", params.URL != "", params.S3 != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of path, URL and S3 object must be set, got %d", set)
	}

	if params.S3 != nil {
		s3Params := *params.S3
		if s3Params.BufferSize == 0 {
			s3Params.BufferSize = params.BufferSize
		}
		s, err := NewS3PieceSource(ctx, s3Params, o.logger)
		if err != nil {
			return nil, err
		}
		return &s3Source{S3PieceSource: s, name: path.Base(s3Params.Key)}, nil
	}

	var tmpDir string
	cleanup := func() {
		if tmpDir != "" {
			if err := os.RemoveAll(tmpDir); err != nil {
				o.logger.Warnf("failed to remove %s: %s", tmpDir, err)
			}
		}
	}
	tempDir := func() (string, error) {
		if tmpDir == "" {
			dir, err := o.pathProvider.CreateTempDir("tus-upload")
			if err != nil {
				return "", fmt.Errorf("create temp dir: %w", err)
			}
			tmpDir = dir
		}
		return tmpDir, nil
	}

	var filePath string
	if params.URL != "" {
		dir, err := tempDir()
		if err != nil {
			return nil, err
		}
		filePath = filepath.Join(dir, remoteFileName(params.URL))
		o.logger.Infof("Downloading %s...", params.URL)
		if err := DownloadRemote(ctx, params.HTTPClient, params.URL, filePath); err != nil {
			cleanup()
			return nil, err
		}
	} else {
		resolved, err := ResolvePath(params.Path, o.pathModifier, o.pathChecker)
		if err != nil {
			return nil, err
		}
		filePath = resolved
	}
	name := filepath.Base(filePath)

	if params.Compress {
		dir, err := tempDir()
		if err != nil {
			return nil, err
		}
		o.logger.Infof("Compressing %s...", name)
		compressed, err := CompressFile(ctx, filePath, dir, params.CompressionLevel, o.logger)
		if err != nil {
			cleanup()
			return nil, err
		}
		filePath = compressed
		name = filepath.Base(compressed)
	}

	file, err := chunkassembler.NewFilePieceSource(filePath, params.BufferSize)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &fileSource{FilePieceSource: file, name: name, cleanup: cleanup}, nil
}

func remoteFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "download"
	}
	return name
}

type fileSource struct {
	*chunkassembler.FilePieceSource
	name    string
	cleanup func()
}

func (s *fileSource) Name() string {
	return s.name
}

func (s *fileSource) Close() error {
	err := s.FilePieceSource.Close()
	s.cleanup()
	return err
}

type s3Source struct {
	*S3PieceSource
	name string
}

func (s *s3Source) Name() string {
	return s.name
}
