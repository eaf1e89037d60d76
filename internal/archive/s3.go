package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"qms-data/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Object archived backup
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// S3Archive stores exported JSON backups in an S3-compatible bucket.
type S3Archive struct {
	client objectAPI
	bucket string
	prefix string
}

// NewS3Archive returns nil, nil when no bucket is configured.
func NewS3Archive(ctx context.Context, cfg *config.S3Config) (*S3Archive, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key prefix/YYYY/MM/DD/<unix-nanos>.json
func (a *S3Archive) Key(at time.Time) string {
	at = at.UTC()
	key := fmt.Sprintf("%04d/%02d/%02d/%d.json", at.Year(), at.Month(), at.Day(), at.UnixNano())
	if a.prefix == "" {
		return key
	}
	return a.prefix + "/" + key
}

// Upload writes one backup and returns its key.
func (a *S3Archive) Upload(ctx context.Context, at time.Time, data []byte) (string, error) {
	key := a.Key(at)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// Download reads a backup previously written by Upload.
func (a *S3Archive) Download(ctx context.Context, key string) ([]byte, error) {
	if !strings.HasPrefix(key, a.prefix) {
		return nil, fmt.Errorf("key %s outside archive prefix", key)
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// List returns archived backups, newest key first.
func (a *S3Archive) List(ctx context.Context, limit int) ([]Object, error) {
	if limit <= 0 {
		limit = 50
	}
	in := &s3.ListObjectsV2Input{Bucket: aws.String(a.bucket)}
	if a.prefix != "" {
		in.Prefix = aws.String(a.prefix + "/")
	}
	var objs []Object
	for {
		out, err := a.client.ListObjectsV2(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, o := range out.Contents {
			obj := Object{Key: aws.ToString(o.Key), Size: aws.ToInt64(o.Size)}
			if o.LastModified != nil {
				obj.LastModified = *o.LastModified
			}
			objs = append(objs, obj)
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		in.ContinuationToken = out.NextContinuationToken
	}
	// keys embed a zero-padded date then unix nanos, so lexical order is time order
	for i, j := 0, len(objs)-1; i < j; i, j = i+1, j-1 {
		objs[i], objs[j] = objs[j], objs[i]
	}
	if len(objs) > limit {
		objs = objs[:limit]
	}
	return objs, nil
}
