package validator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/hardcopy/internal/checksum"
	"github.com/yuya-takeyama/hardcopy/pkg/s3client"
)

// mockS3Client stores objects in memory. Objects uploaded with a checksum
// algorithm report it from HeadObject like S3 does.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string]mockObject
	heads   int
	gets    int
}

type mockObject struct {
	data      []byte
	checksums map[types.ChecksumAlgorithm]string
	kind      types.ChecksumType
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string]mockObject)}
}

func (m *mockS3Client) put(t *testing.T, bucket, key, content string, alg checksum.Algorithm) {
	t.Helper()
	obj := mockObject{data: []byte(content), checksums: map[types.ChecksumAlgorithm]string{}, kind: types.ChecksumTypeFullObject}
	if alg != "" {
		computer, err := checksum.NewComputer(alg)
		require.NoError(t, err)
		sum, err := computer.SumReader(context.Background(), strings.NewReader(content))
		require.NoError(t, err)
		s3alg, ok := s3client.ChecksumAlgorithmFor(alg)
		require.True(t, ok)
		obj.checksums[s3alg] = sum.Base64()
	}
	m.mu.Lock()
	m.objects[bucket+"/"+key] = obj
	m.mu.Unlock()
}

func (m *mockS3Client) ListObjects(_ context.Context, req *s3client.ListObjectsRequest) ([]s3client.ItemMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []s3client.ItemMetadata
	for k, obj := range m.objects {
		prefix := req.Bucket + "/" + req.Prefix + "/"
		if strings.HasPrefix(k, prefix) {
			items = append(items, s3client.ItemMetadata{Path: strings.TrimPrefix(k, prefix), Size: int64(len(obj.data))})
		}
	}
	return items, nil
}

func (m *mockS3Client) HeadObject(_ context.Context, req *s3client.HeadObjectRequest) (*s3client.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heads++
	obj, ok := m.objects[req.Bucket+"/"+req.Key]
	if !ok {
		return nil, fmt.Errorf("head: %w", s3client.ErrNotFound)
	}
	return &s3client.ObjectInfo{Size: int64(len(obj.data)), ChecksumType: obj.kind, Checksums: obj.checksums}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, req *s3client.GetObjectRequest) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	obj, ok := m.objects[req.Bucket+"/"+req.Key]
	if !ok {
		return nil, fmt.Errorf("get: %w", s3client.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *mockS3Client) PutObject(_ context.Context, req *s3client.PutObjectRequest) error {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[req.Bucket+"/"+req.Key] = mockObject{data: data, kind: types.ChecksumTypeFullObject}
	return nil
}

func TestS3TargetUsesStoredChecksum(t *testing.T) {
	client := newMockS3Client()
	for rel, content := range sampleTree {
		client.put(t, "bucket", "backup/"+rel, content, checksum.CRC32C)
	}

	src := t.TempDir()
	writeTree(t, src, sampleTree)

	for _, ec := range engines(t) {
		t.Run(ec.name, func(t *testing.T) {
			client.gets = 0
			v := ec.new(t, Options{S3: client})
			res, err := v.IsValidCopyTree(context.Background(), src, "s3://bucket/backup/")
			require.NoError(t, err)
			assert.True(t, res.Valid, res.String())
			assert.Zero(t, client.gets, "stored checksums make downloads unnecessary")
		})
	}
}

func TestS3TargetStreamsWithoutStoredChecksum(t *testing.T) {
	client := newMockS3Client()
	for rel, content := range sampleTree {
		client.put(t, "bucket", "backup/"+rel, content, "")
	}

	src := t.TempDir()
	writeTree(t, src, sampleTree)

	for _, alg := range []checksum.Algorithm{checksum.CRC32C, checksum.MD5, checksum.SHA512} {
		t.Run(string(alg), func(t *testing.T) {
			client.gets = 0
			v, err := NewSerial(Options{S3: client, Algorithm: alg})
			require.NoError(t, err)

			res, err := v.IsValidCopyTree(context.Background(), src, "s3://bucket/backup")
			require.NoError(t, err)
			assert.True(t, res.Valid, res.String())
			assert.Equal(t, len(sampleTree), client.gets)
		})
	}
}

func TestS3TargetFailures(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, sampleTree)

	t.Run("missing object", func(t *testing.T) {
		client := newMockS3Client()
		for rel, content := range sampleTree {
			if rel != "sub/c.txt" {
				client.put(t, "bucket", rel, content, checksum.CRC32C)
			}
		}
		v, err := NewSerial(Options{S3: client})
		require.NoError(t, err)

		res, err := v.IsValidCopyTree(context.Background(), src, "s3://bucket")
		require.NoError(t, err)
		assert.Equal(t, ReasonMissing, res.Reason)
		assert.Equal(t, "s3://bucket/sub/c.txt", res.Path)
	})

	t.Run("corrupted object", func(t *testing.T) {
		client := newMockS3Client()
		for rel, content := range sampleTree {
			client.put(t, "bucket", rel, content, checksum.CRC32C)
		}
		client.put(t, "bucket", "a.txt", "alphA", checksum.CRC32C)

		v, err := NewSerial(Options{S3: client})
		require.NoError(t, err)

		res, err := v.IsValidCopyTree(context.Background(), src, "s3://bucket")
		require.NoError(t, err)
		assert.Equal(t, ReasonMismatch, res.Reason)
		assert.Equal(t, "s3://bucket/a.txt", res.Path)
	})

	t.Run("no client configured", func(t *testing.T) {
		v, err := NewSerial(Options{})
		require.NoError(t, err)

		_, err = v.IsValidCopyTree(context.Background(), src, "s3://bucket")
		assert.ErrorContains(t, err, "no S3 client configured")
	})
}

func TestS3TargetSingleFile(t *testing.T) {
	client := newMockS3Client()
	client.put(t, "bucket", "files/report.pdf", "pdf bytes", checksum.SHA256)

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"report.pdf": "pdf bytes"})

	v, err := NewSerial(Options{S3: client, Algorithm: checksum.SHA256})
	require.NoError(t, err)

	res, err := v.IsValidCopy(context.Background(), dir+"/report.pdf", "s3://bucket/files/report.pdf")
	require.NoError(t, err)
	assert.True(t, res.Valid, res.String())
}

func TestS3TargetCompositeChecksumFallsBack(t *testing.T) {
	client := newMockS3Client()
	client.put(t, "bucket", "big.bin", "multipart upload", "")
	obj := client.objects["bucket/big.bin"]
	obj.kind = types.ChecksumTypeComposite
	obj.checksums = map[types.ChecksumAlgorithm]string{types.ChecksumAlgorithmCrc32c: "AAAAAA==-2"}
	client.objects["bucket/big.bin"] = obj

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"big.bin": "multipart upload"})

	v, err := NewSerial(Options{S3: client})
	require.NoError(t, err)

	res, err := v.IsValidCopy(context.Background(), dir+"/big.bin", "s3://bucket/big.bin")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 1, client.gets)
}
