package upload

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bitrise-io/go-tusupload/protocol"
	"github.com/bitrise-io/go-tusupload/source"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/docker/go-units"
)

// Environment variables read by NewParamsFromEnv.
const (
	EnvEndpoint         = "TUS_ENDPOINT"
	EnvToken            = "TUS_TOKEN"
	EnvUploadURL        = "TUS_UPLOAD_URL"
	EnvChunkSize        = "TUS_CHUNK_SIZE"
	EnvSourcePath       = "TUS_SOURCE_PATH"
	EnvSourceURL        = "TUS_SOURCE_URL"
	EnvMetadata         = "TUS_METADATA"
	EnvCompress         = "TUS_COMPRESS"
	EnvCompressionLevel = "TUS_COMPRESSION_LEVEL"
	EnvS3Bucket         = "TUS_S3_BUCKET"
	EnvS3Key            = "TUS_S3_KEY"
	EnvS3Region         = "TUS_S3_REGION"
	EnvS3AccessKeyID    = "TUS_S3_ACCESS_KEY_ID"
	EnvS3SecretKey      = "TUS_S3_SECRET_ACCESS_KEY"
)

// Params ...
type Params struct {
	// Endpoint is the creation URL.
	Endpoint string
	// Token is sent as a bearer token when set.
	Token string
	// Header is sent with every request.
	Header map[string]string
	// UploadURL resumes an existing upload instead of creating a new one.
	UploadURL string
	// ChunkSize is the maximum chunk size; 0 picks a size based on the source size.
	ChunkSize int64
	// Metadata is sent on creation. A "filename" entry is added from the source name when missing.
	Metadata *protocol.Metadata
	Source   source.Params
}

func (p Params) validate() error {
	if p.Endpoint == "" && p.UploadURL == "" {
		return fmt.Errorf("either the endpoint or an upload URL to resume must be set")
	}
	if p.Endpoint == "" {
		u, err := url.Parse(p.UploadURL)
		if err != nil {
			return fmt.Errorf("invalid upload URL: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("upload URL must be absolute when no endpoint is set: %s", p.UploadURL)
		}
	}
	if p.ChunkSize < 0 {
		return fmt.Errorf("chunk size must not be negative, got %d", p.ChunkSize)
	}
	return nil
}

func (p Params) header() http.Header {
	header := http.Header{}
	for k, v := range p.Header {
		header.Set(k, v)
	}
	if p.Token != "" {
		header.Set("Authorization", fmt.Sprintf("Bearer %s", p.Token))
	}
	return header
}

// NewParamsFromEnv reads upload parameters from the environment.
func NewParamsFromEnv(envRepo env.Repository) (Params, error) {
	params := Params{
		Endpoint:  strings.TrimSpace(envRepo.Get(EnvEndpoint)),
		Token:     envRepo.Get(EnvToken),
		UploadURL: strings.TrimSpace(envRepo.Get(EnvUploadURL)),
		Source: source.Params{
			Path: strings.TrimSpace(envRepo.Get(EnvSourcePath)),
			URL:  strings.TrimSpace(envRepo.Get(EnvSourceURL)),
		},
	}

	if chunkSize := strings.TrimSpace(envRepo.Get(EnvChunkSize)); chunkSize != "" {
		size, err := units.RAMInBytes(chunkSize)
		if err != nil {
			return Params{}, fmt.Errorf("invalid %s '%s': %w", EnvChunkSize, chunkSize, err)
		}
		params.ChunkSize = size
	}

	metadata, err := parseMetadata(envRepo.Get(EnvMetadata))
	if err != nil {
		return Params{}, fmt.Errorf("invalid %s: %w", EnvMetadata, err)
	}
	params.Metadata = metadata

	if compress := strings.TrimSpace(envRepo.Get(EnvCompress)); compress != "" {
		value, err := strconv.ParseBool(compress)
		if err != nil {
			return Params{}, fmt.Errorf("invalid %s '%s': %w", EnvCompress, compress, err)
		}
		params.Source.Compress = value
	}
	if level := strings.TrimSpace(envRepo.Get(EnvCompressionLevel)); level != "" {
		value, err := strconv.Atoi(level)
		if err != nil {
			return Params{}, fmt.Errorf("invalid %s '%s': %w", EnvCompressionLevel, level, err)
		}
		params.Source.CompressionLevel = value
	}

	if bucket := strings.TrimSpace(envRepo.Get(EnvS3Bucket)); bucket != "" {
		params.Source.S3 = &source.S3Params{
			Bucket:          bucket,
			Key:             strings.TrimSpace(envRepo.Get(EnvS3Key)),
			Region:          strings.TrimSpace(envRepo.Get(EnvS3Region)),
			AccessKeyID:     envRepo.Get(EnvS3AccessKeyID),
			SecretAccessKey: envRepo.Get(EnvS3SecretKey),
		}
	}

	if err := params.validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

// parseMetadata parses "key=value" pairs separated by "|".
func parseMetadata(raw string) (*protocol.Metadata, error) {
	metadata := protocol.NewMetadata()
	if strings.TrimSpace(raw) == "" {
		return metadata, nil
	}

	for _, pair := range strings.Split(raw, "|") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("metadata entry '%s' is not in key=value format", pair)
		}
		if strings.ContainsAny(key, " ,") {
			return nil, fmt.Errorf("metadata key '%s' must not contain spaces or commas", key)
		}
		metadata.Set(key, value)
	}
	return metadata, nil
}
