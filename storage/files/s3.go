package filestore

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
)

// s3API is the subset of the S3 client used by s3Store.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Store struct {
	client s3API
	bucket string
}

var _ core.FileStore = (*s3Store)(nil)

// NewS3Store uses static credentials when configured, the default AWS credential chain otherwise.
func NewS3Store(ctx context.Context, conf core.StorageConfig) (*s3Store, error) {
	if conf.S3Bucket == "" {
		return nil, errors.New("storage.s3Bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(conf.S3Region)}
	if conf.S3AccessKey != "" && conf.S3SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.S3AccessKey, conf.S3SecretKey, ""),
		))
	}
	awsConf, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}

	client := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		if conf.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.S3Endpoint)
		}
		o.UsePathStyle = conf.S3UsePathStyle
	})
	return &s3Store{client: client, bucket: conf.S3Bucket}, nil
}

func (s *s3Store) Save(ctx context.Context, prefix string, up core.Upload) (string, error) {
	key := objectKey(prefix, up)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   up.Content,
	}
	if up.ContentType != "" {
		in.ContentType = aws.String(up.ContentType)
	}
	if up.Size > 0 {
		in.ContentLength = aws.Int64(up.Size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", errors.Wrap(err, "uploading to s3")
	}
	return key, nil
}

func (s *s3Store) Delete(ctx context.Context, ref string) error {
	if ref == "" || strings.HasPrefix(ref, "/") {
		return errBadRef
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	return errors.Wrap(err, "deleting from s3")
}
