package s3client

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

type ItemMetadata struct {
	Path    string // Key relative to the listed prefix
	Size    int64
	ModTime time.Time
}

type Client interface {
	ListObjects(ctx context.Context, req *ListObjectsRequest) ([]ItemMetadata, error)
	HeadObject(ctx context.Context, req *HeadObjectRequest) (*ObjectInfo, error)
	GetObject(ctx context.Context, req *GetObjectRequest) (io.ReadCloser, error)
	PutObject(ctx context.Context, req *PutObjectRequest) error
}

type ListObjectsRequest struct {
	Bucket string
	Prefix string
}

type HeadObjectRequest struct {
	Bucket string
	Key    string
}

type GetObjectRequest struct {
	Bucket string
	Key    string
}

type PutObjectRequest struct {
	Bucket            string
	Key               string
	Body              io.Reader
	Size              int64
	ContentType       string
	ChecksumAlgorithm types.ChecksumAlgorithm
}

// ObjectInfo is the metadata of a stored object. Checksums holds the
// base64 values S3 returned, keyed by algorithm.
type ObjectInfo struct {
	Size         int64
	ETag         string
	ChecksumType types.ChecksumType
	Checksums    map[types.ChecksumAlgorithm]string
}

// Checksum returns the stored full-object checksum for alg, if any.
// Composite checksums of multipart uploads are not returned.
func (o *ObjectInfo) Checksum(alg types.ChecksumAlgorithm) (string, bool) {
	if o == nil || o.ChecksumType == types.ChecksumTypeComposite {
		return "", false
	}
	v, ok := o.Checksums[alg]
	if !ok || v == "" || isCompositeValue(v) {
		return "", false
	}
	return v, true
}

// isCompositeValue reports values like "abc==-3" that S3 returns for
// checksums of checksums.
func isCompositeValue(v string) bool {
	for i := len(v) - 1; i >= 0; i-- {
		if v[i] == '-' {
			return i < len(v)-1
		}
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return false
}
