package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mcpd/internal/mcperrors"
)

// Store is the blob store client used for module archive downloads
// (internal/modloader) and call-content offload (internal/callrecord).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Config carries the subset of mcpd's configuration that configures the
// blob store client: region, static credentials ("access_key:secret_key"),
// and the default bucket for module archives.
type Config struct {
	Region      string
	Credentials string // "access_key:secret_key"
	BucketName  string
	EndpointURL string // optional, for S3-compatible stores
}

type s3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds a Store backed by AWS S3 (or an S3-compatible
// endpoint), using static credentials the way
// mazori-ai-modelgate's Bedrock client loads its AWS SDK config.
func NewS3Store(ctx context.Context, cfg Config) (Store, error) {
	accessKey, secretKey, ok := strings.Cut(cfg.Credentials, ":")
	if !ok {
		return nil, mcperrors.InvalidArgument("blob_credentials must be \"access_key:secret_key\"")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, mcperrors.Wrap(mcperrors.KindInternal, err, "failed to load AWS config for blob store")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	return &s3Store{client: client, bucket: cfg.BucketName}, nil
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mcperrors.Wrap(mcperrors.KindUpstreamFailure, err, fmt.Sprintf("blob get %s", key))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, mcperrors.Wrap(mcperrors.KindUpstreamFailure, err, fmt.Sprintf("blob get %s: read body", key))
	}
	return data, nil
}

func (s *s3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return mcperrors.Wrap(mcperrors.KindUpstreamFailure, err, fmt.Sprintf("blob put %s", key))
	}
	return nil
}

// ContentKey builds the externalised call-content key, per spec.md's
// persistence-key layout: mcp_content/{call_uuid}.json.
func ContentKey(callUUID string) string {
	return fmt.Sprintf("mcp_content/%s.json", callUUID)
}

// ArchiveKey builds a module archive's key within funct_bucket_name:
// {package_name}.zip.
func ArchiveKey(packageName string) string {
	return fmt.Sprintf("%s.zip", packageName)
}
