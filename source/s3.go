package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-tusupload/chunkassembler"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
)

const (
	numS3Retries = 3
	// regionProbe is only used to ask S3 where a bucket lives.
	regionProbe = "us-east-1"
)

// ErrObjectNotFound ...
var ErrObjectNotFound = errors.New("source object not found")

// S3Params ...
type S3Params struct {
	Bucket string
	Key    string
	// Region is looked up from the bucket when empty.
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// BufferSize is the size of the pieces read from the object body.
	BufferSize int
}

type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3PieceSource streams an S3 object. The object is opened on the first NextPiece call.
type S3PieceSource struct {
	client     s3API
	bucket     string
	key        string
	size       int64
	bufferSize int
	retryWait  time.Duration

	body   io.ReadCloser
	reader *chunkassembler.ReaderPieceSource
	logger log.Logger
}

// NewS3PieceSource loads AWS credentials and looks up the object size.
func NewS3PieceSource(ctx context.Context, params S3Params, logger log.Logger) (*S3PieceSource, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}
	if params.Key == "" {
		return nil, fmt.Errorf("key must not be empty")
	}

	cfg, err := loadAWSConfig(ctx, params, logger)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3PieceSource(ctx, s3.NewFromConfig(*cfg), params, 5*time.Second, logger)
}

func newS3PieceSource(ctx context.Context, client s3API, params S3Params, retryWait time.Duration, logger log.Logger) (*S3PieceSource, error) {
	s := &S3PieceSource{
		client:     client,
		bucket:     params.Bucket,
		key:        params.Key,
		bufferSize: params.BufferSize,
		retryWait:  retryWait,
		logger:     logger,
	}

	size, err := s.headObjectWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	s.size = size
	return s, nil
}

// Size returns the object size reported by HeadObject.
func (s *S3PieceSource) Size() int64 {
	return s.size
}

// NextPiece ...
func (s *S3PieceSource) NextPiece(ctx context.Context) ([]byte, error) {
	if s.reader == nil {
		result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
		})
		if err != nil {
			return nil, fmt.Errorf("get object: %w", err)
		}
		s.body = result.Body
		s.reader = chunkassembler.NewReaderPieceSource(result.Body, s.bufferSize)
	}
	return s.reader.NextPiece(ctx)
}

// Close closes the object body, if it was opened.
func (s *S3PieceSource) Close() error {
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}

func (s *S3PieceSource) headObjectWithRetry(ctx context.Context) (int64, error) {
	var size int64
	err := retry.Times(numS3Retries).Wait(s.retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
		})
		if err != nil {
			var apiError smithy.APIError
			if errors.As(err, &apiError) {
				if _, ok := apiError.(*types.NotFound); ok {
					return fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key, ErrObjectNotFound), true
				}
			}
			s.logger.Debugf("head object (attempt %d): %s", attempt, err)
			return fmt.Errorf("head object: %w", err), false
		}

		size = aws.ToInt64(out.ContentLength)
		return nil, true
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}

func loadAWSConfig(ctx context.Context, params S3Params, logger log.Logger) (*aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if params.AccessKeyID != "" && params.SecretAccessKey != "" {
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(params.AccessKeyID, params.SecretAccessKey, "")))
	} else {
		logger.Debugf("aws credentials not defined, loading credentials from environment...")
	}

	region := params.Region
	if region == "" {
		probeCfg, err := config.LoadDefaultConfig(ctx, append(opts, config.WithRegion(regionProbe))...)
		if err != nil {
			return nil, fmt.Errorf("failed to load config, %v", err)
		}
		region, err = manager.GetBucketRegion(ctx, s3.NewFromConfig(probeCfg), params.Bucket)
		if err != nil {
			return nil, fmt.Errorf("get region of bucket %s: %w", params.Bucket, err)
		}
		logger.Debugf("Bucket %s is in region %s", params.Bucket, region)
	}

	cfg, err := config.LoadDefaultConfig(ctx, append(opts, config.WithRegion(region))...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config, %v", err)
	}
	return &cfg, nil
}
