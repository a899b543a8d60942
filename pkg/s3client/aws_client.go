package s3client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of *s3.Client the wrapper calls.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type AWSClient struct {
	api               s3API
	uploader          uploader
	retry             retryPolicy
	uploadConcurrency int
}

type Option func(*AWSClient)

// WithUploadConcurrency sets the number of parts uploaded in parallel per object.
func WithUploadConcurrency(n int) Option {
	return func(c *AWSClient) {
		if n > 0 {
			c.uploadConcurrency = n
		}
	}
}

// WithMaxRetries sets how often a retryable request is repeated.
func WithMaxRetries(n int) Option {
	return func(c *AWSClient) {
		if n >= 0 {
			c.retry.maxRetries = n
		}
	}
}

func NewAWSClient(cfg aws.Config, opts ...Option) *AWSClient {
	client := s3.NewFromConfig(cfg)
	c := &AWSClient{
		api:               client,
		retry:             defaultRetryPolicy(),
		uploadConcurrency: manager.DefaultUploadConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.uploader = manager.NewUploader(client, func(u *manager.Uploader) {
		u.Concurrency = c.uploadConcurrency
	})
	return c
}

// LoadConfig loads the shared AWS configuration, optionally pinned to a
// profile and region.
func LoadConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	var configOpts []func(*config.LoadOptions) error
	if profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		configOpts = append(configOpts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func (c *AWSClient) ListObjects(ctx context.Context, req *ListObjectsRequest) ([]ItemMetadata, error) {
	var items []ItemMetadata

	listPrefix := req.Prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(req.Bucket),
		Prefix: aws.String(listPrefix),
	})

	for paginator.HasMorePages() {
		page, err := withRetry(ctx, c.retry, func() (*s3.ListObjectsV2Output, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || obj.Size == nil {
				continue
			}
			// folder markers
			if strings.HasSuffix(*obj.Key, "/") {
				continue
			}

			items = append(items, ItemMetadata{
				Path:    trimKeyPrefix(*obj.Key, req.Prefix),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	return items, nil
}

func (c *AWSClient) HeadObject(ctx context.Context, req *HeadObjectRequest) (*ObjectInfo, error) {
	resp, err := withRetry(ctx, c.retry, func() (*s3.HeadObjectOutput, error) {
		return c.api.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket:       aws.String(req.Bucket),
			Key:          aws.String(req.Key),
			ChecksumMode: types.ChecksumModeEnabled,
		})
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("head %s: %w", FormatURI(req.Bucket, req.Key), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to head object: %w", err)
	}

	info := &ObjectInfo{
		Size:         aws.ToInt64(resp.ContentLength),
		ETag:         strings.Trim(aws.ToString(resp.ETag), `"`),
		ChecksumType: resp.ChecksumType,
		Checksums:    make(map[types.ChecksumAlgorithm]string),
	}

	stored := map[types.ChecksumAlgorithm]*string{
		types.ChecksumAlgorithmCrc32:     resp.ChecksumCRC32,
		types.ChecksumAlgorithmCrc32c:    resp.ChecksumCRC32C,
		types.ChecksumAlgorithmSha1:      resp.ChecksumSHA1,
		types.ChecksumAlgorithmSha256:    resp.ChecksumSHA256,
		types.ChecksumAlgorithmCrc64nvme: resp.ChecksumCRC64NVME,
	}
	for alg, v := range stored {
		if v != nil {
			info.Checksums[alg] = *v
		}
	}

	return info, nil
}

// GetObject streams the object body. The caller closes it.
func (c *AWSClient) GetObject(ctx context.Context, req *GetObjectRequest) (io.ReadCloser, error) {
	resp, err := withRetry(ctx, c.retry, func() (*s3.GetObjectOutput, error) {
		return c.api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(req.Bucket),
			Key:    aws.String(req.Key),
		})
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get %s: %w", FormatURI(req.Bucket, req.Key), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return resp.Body, nil
}

// PutObject uploads through the transfer manager, which switches to
// multipart uploads for large bodies.
func (c *AWSClient) PutObject(ctx context.Context, req *PutObjectRequest) error {
	input := &s3.PutObjectInput{
		Bucket:            aws.String(req.Bucket),
		Key:               aws.String(req.Key),
		Body:              req.Body,
		ChecksumAlgorithm: req.ChecksumAlgorithm,
	}
	if req.Size >= 0 {
		input.ContentLength = aws.Int64(req.Size)
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}

	if _, err := c.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}

	return nil
}
