package validator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yuya-takeyama/hardcopy/internal/checksum"
	"github.com/yuya-takeyama/hardcopy/internal/walker"
	"github.com/yuya-takeyama/hardcopy/pkg/s3client"
)

// S3Target is a copy stored under an s3://bucket/prefix location.
// Directories are implicit in object storage, so every directory is
// reported as present.
type S3Target struct {
	client   s3client.Client
	bucket   string
	prefix   string
	computer *checksum.Computer

	// heads keeps HeadObject results from Stat for the following Sum.
	heads sync.Map
}

func NewS3Target(client s3client.Client, uri string, computer *checksum.Computer) (*S3Target, error) {
	bucket, prefix, err := s3client.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return &S3Target{client: client, bucket: bucket, prefix: prefix, computer: computer}, nil
}

func (t *S3Target) key(rel string) string {
	if rel == "" {
		return t.prefix
	}
	return walker.JoinKey(t.prefix, rel)
}

func (t *S3Target) Location(rel string) string {
	return s3client.FormatURI(t.bucket, t.key(rel))
}

func (t *S3Target) Stat(ctx context.Context, rel string, dir bool) (Info, error) {
	if dir {
		return Info{Exists: true, IsDir: true, Size: -1}, nil
	}

	key := t.key(rel)
	info, err := t.client.HeadObject(ctx, &s3client.HeadObjectRequest{Bucket: t.bucket, Key: key})
	if err != nil {
		if errors.Is(err, s3client.ErrNotFound) {
			return Info{}, nil
		}
		return Info{}, err
	}
	if _, ok := s3client.ChecksumAlgorithmFor(t.computer.Algorithm()); ok {
		t.heads.Store(key, info)
	}
	return Info{Exists: true, Size: info.Size}, nil
}

// Sum uses the checksum S3 stored at upload time when it is a full-object
// checksum of the active algorithm, and streams the object otherwise.
func (t *S3Target) Sum(ctx context.Context, rel string) (checksum.Checksum, error) {
	key := t.key(rel)

	if alg, ok := s3client.ChecksumAlgorithmFor(t.computer.Algorithm()); ok {
		var info *s3client.ObjectInfo
		if cached, found := t.heads.LoadAndDelete(key); found {
			info = cached.(*s3client.ObjectInfo)
		} else {
			head, err := t.client.HeadObject(ctx, &s3client.HeadObjectRequest{Bucket: t.bucket, Key: key})
			if err != nil {
				return checksum.Checksum{}, err
			}
			info = head
		}
		if stored, ok := info.Checksum(alg); ok {
			sum, err := checksum.FromBase64(t.computer.Algorithm(), stored)
			if err != nil {
				return checksum.Checksum{}, fmt.Errorf("stored checksum of %s: %w", t.Location(rel), err)
			}
			return sum, nil
		}
	}

	body, err := t.client.GetObject(ctx, &s3client.GetObjectRequest{Bucket: t.bucket, Key: key})
	if err != nil {
		return checksum.Checksum{}, err
	}
	defer body.Close()

	return t.computer.SumReader(ctx, body)
}
