package property

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gopkg.in/yaml.v3"
)

// S3API is the subset of the S3 client used to fetch a config object.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// SourceOption customizes how Load and Seed resolve a config location.
type SourceOption func(*source)

type source struct {
	s3 S3API
}

// WithS3Client enables s3://bucket/key locations.
func WithS3Client(client S3API) SourceOption {
	return func(s *source) {
		s.s3 = client
	}
}

// Parse decodes a YAML property config. Missing values fall back to defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg.WithDefaults(), nil
}

// LoadFile reads a YAML property config from disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("property: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("property: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads a config from a local path or an s3://bucket/key URI.
func Load(ctx context.Context, location string, opts ...SourceOption) (*Config, error) {
	var src source
	for _, opt := range opts {
		opt(&src)
	}
	if !strings.HasPrefix(location, "s3://") {
		return LoadFile(location)
	}

	bucket, key, err := splitS3URI(location)
	if err != nil {
		return nil, err
	}
	if src.s3 == nil {
		return nil, fmt.Errorf("property: %s needs an s3 client", location)
	}
	out, err := src.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("property: s3 get %s: %w", location, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("property: read %s: %w", location, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("property: parse %s: %w", location, err)
	}
	return cfg, nil
}

func splitS3URI(uri string) (string, string, error) {
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", errors.New("property: s3 location must look like s3://bucket/key")
	}
	return bucket, key, nil
}

// Seed loads location into store unless an operator already saved a config.
func Seed(ctx context.Context, store Store, location string, opts ...SourceOption) (bool, error) {
	if location == "" {
		return false, nil
	}
	cfg, err := Load(ctx, location, opts...)
	if err != nil {
		return false, err
	}
	return store.SaveIfAbsent(ctx, cfg)
}
