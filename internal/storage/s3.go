package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/chunkvault/chunkvault/internal/common"
)

// seams for testing
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Backend authenticates storage accounts against an S3-compatible service.
// A credential reference has the form "accessKey:secretKey"; every account
// writes under its own key prefix so quota snapshots can be computed per
// account.
type S3Backend struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	// QuotaLimit is the per-account byte budget reported in snapshots;
	// S3 itself enforces no quota.
	QuotaLimit int64
}

func NewS3Backend(bucket, region, baseEndpoint string, quotaLimit int64) *S3Backend {
	return &S3Backend{Bucket: bucket, Region: region, BaseEndpoint: baseEndpoint, QuotaLimit: quotaLimit}
}

func (b *S3Backend) Authenticate(ctx context.Context, credentialRef string) (Session, error) {
	accessKey, secretKey, ok := strings.Cut(credentialRef, ":")
	if !ok || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("%w: malformed credential reference", common.ErrBackendAuth)
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(b.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBackendAuth, err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(b.BaseEndpoint)
		o.UsePathStyle = true
	})

	// verify the credentials actually open the bucket
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.Bucket)}); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBackendAuth, err)
	}

	return &s3Session{
		client:     client,
		bucket:     b.Bucket,
		prefix:     accessKey,
		quotaLimit: b.QuotaLimit,
	}, nil
}

type s3Session struct {
	client     *s3.Client
	bucket     string
	prefix     string
	quotaLimit int64
}

func (s *s3Session) objectKey(name string) string {
	d := time.Now()
	return fmt.Sprintf("%s/%d/%d/%d/%v_%s", s.prefix, d.Year(), d.Month(), d.Day(), uuid.New(), name)
}

func (s *s3Session) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := s.objectKey(name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", common.ErrBackendIO, key, err)
	}

	return key, nil
}

func (s *s3Session) Get(ctx context.Context, objectID string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", common.ErrBackendIO, objectID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrBackendIO, objectID, err)
	}
	return data, nil
}

func (s *s3Session) Delete(ctx context.Context, objectID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", common.ErrBackendIO, objectID, err)
	}
	return nil
}

// Quota sums object sizes under the account prefix. The limit is the
// configured per-account budget.
func (s *s3Session) Quota(ctx context.Context) (Quota, error) {
	var used int64

	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + "/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return Quota{}, fmt.Errorf("%w: list %s: %v", common.ErrBackendIO, s.prefix, err)
		}
		for _, obj := range page.Contents {
			used += aws.ToInt64(obj.Size)
		}
	}

	return Quota{Used: used, Limit: s.quotaLimit}, nil
}
