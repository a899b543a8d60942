package transfer

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/yuya-takeyama/hardcopy/internal/checksum"
	"github.com/yuya-takeyama/hardcopy/internal/walker"
	"github.com/yuya-takeyama/hardcopy/pkg/errors"
	"github.com/yuya-takeyama/hardcopy/pkg/planner"
	"github.com/yuya-takeyama/hardcopy/pkg/s3client"
)

const defaultUploadConcurrency = 32

// S3Copier uploads a local file or tree to an s3://bucket/prefix location.
// Objects are uploaded with the active checksum algorithm so S3 stores a
// checksum that validation can compare without downloading.
type S3Copier struct {
	client      s3client.Client
	algorithm   types.ChecksumAlgorithm
	concurrency int
	walk        walker.Options
	planner     *planner.S3Planner
	log         zerolog.Logger
}

type S3CopierOptions struct {
	Algorithm   checksum.Algorithm
	Concurrency int
	Walk        walker.Options
	// SkipUnchanged leaves objects alone whose size and stored checksum
	// already match the local file.
	SkipUnchanged bool
	Logger        *zerolog.Logger
}

func NewS3Copier(client s3client.Client, opts S3CopierOptions) (*S3Copier, error) {
	alg := opts.Algorithm
	if alg == "" {
		alg = checksum.DefaultAlgorithm
	}
	s3alg, ok := s3client.ChecksumAlgorithmFor(alg)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidInput, "S3 cannot store %s checksums", alg)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultUploadConcurrency
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	c := &S3Copier{
		client:      client,
		algorithm:   s3alg,
		concurrency: concurrency,
		walk:        opts.Walk,
		log:         logger,
	}
	if opts.SkipUnchanged {
		computer, err := checksum.NewComputer(alg)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrInvalidInput, "checksum algorithm")
		}
		c.planner = planner.NewS3Planner(client, computer, concurrency, logger)
	}
	return c, nil
}

// Preflight has nothing to probe; credentials fail on the first request.
func (c *S3Copier) Preflight(context.Context) error {
	return nil
}

type upload struct {
	localPath string
	rel       string
	key       string
	size      int64
}

type uploadResult struct {
	upload upload
	err    error
}

func (c *S3Copier) Copy(ctx context.Context, src, dest string) error {
	bucket, prefix, err := s3client.ParseURI(dest)
	if err != nil {
		return errors.Wrap(err, errors.ErrInvalidInput, "destination")
	}

	uploads, err := c.plan(ctx, src, prefix)
	if err != nil {
		return err
	}

	if c.planner != nil && len(uploads) > 0 && uploads[0].rel != "" {
		if uploads, err = c.skipUnchanged(ctx, src, bucket, prefix, uploads); err != nil {
			return errors.Wrapf(err, errors.ErrTransferFailed, "plan uploads to %s", dest)
		}
	}

	results := c.execute(ctx, bucket, uploads)

	var failed []uploadResult
	for _, r := range results {
		if r.err != nil {
			failed = append(failed, r)
			c.log.Error().Err(r.err).Str("source", r.upload.localPath).Msg("Upload failed")
		}
	}
	if len(failed) > 0 {
		return errors.Wrapf(failed[0].err, errors.ErrTransferFailed,
			"%d of %d uploads to %s failed", len(failed), len(uploads), dest).
			WithDetail("failed", len(failed))
	}

	c.log.Info().Int("objects", len(uploads)).Str("destination", dest).Msg("Upload finished")
	return nil
}

func (c *S3Copier) plan(ctx context.Context, src, prefix string) ([]upload, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "stat source %s", src)
	}
	if !fi.IsDir() {
		if prefix == "" {
			return nil, errors.Newf(errors.ErrInvalidInput, "destination for file %s needs a key", src)
		}
		return []upload{{localPath: src, key: prefix, size: fi.Size()}}, nil
	}

	w, err := walker.NewWalker(src, c.walk)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "walk source")
	}

	var uploads []upload
	err = w.Walk(ctx, func(e walker.Entry) error {
		if !e.IsDir {
			uploads = append(uploads, upload{localPath: e.Path, rel: e.RelPath, key: walker.JoinKey(prefix, e.RelPath), size: e.Size})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uploads, nil
}

// skipUnchanged drops the uploads whose objects already match.
func (c *S3Copier) skipUnchanged(ctx context.Context, srcDir, bucket, prefix string, uploads []upload) ([]upload, error) {
	local := make([]planner.ItemMetadata, 0, len(uploads))
	for _, u := range uploads {
		local = append(local, planner.ItemMetadata{Path: u.rel, Size: u.size})
	}

	items, err := c.planner.Plan(ctx, local, srcDir, bucket, prefix)
	if err != nil {
		return nil, err
	}

	send := make(map[string]bool, len(items))
	for _, item := range items {
		if item.Action == planner.ActionUpload {
			send[item.Key] = true
		}
	}

	kept := uploads[:0]
	for _, u := range uploads {
		if send[u.key] {
			kept = append(kept, u)
		}
	}
	c.log.Info().Int("upload", len(kept)).Int("skip", len(local)-len(kept)).Msg("Planned uploads")
	return kept, nil
}

func (c *S3Copier) execute(ctx context.Context, bucket string, uploads []upload) []uploadResult {
	results := make([]uploadResult, len(uploads))

	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for i, u := range uploads {
		wg.Add(1)
		go func(idx int, u upload) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			c.log.Debug().Str("source", u.localPath).Str("target", s3client.FormatURI(bucket, u.key)).Msg("Uploading")
			results[idx] = uploadResult{upload: u, err: c.uploadFile(ctx, bucket, u)}
		}(i, u)
	}

	wg.Wait()
	return results
}

func (c *S3Copier) uploadFile(ctx context.Context, bucket string, u upload) error {
	file, err := os.Open(u.localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	err = c.client.PutObject(ctx, &s3client.PutObjectRequest{
		Bucket:            bucket,
		Key:               u.key,
		Body:              file,
		Size:              u.size,
		ContentType:       guessContentType(u.localPath),
		ChecksumAlgorithm: c.algorithm,
	})
	if err != nil {
		return fmt.Errorf("failed to upload: %w", err)
	}

	return nil
}
