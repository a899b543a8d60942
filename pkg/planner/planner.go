package planner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yuya-takeyama/hardcopy/internal/checksum"
	"github.com/yuya-takeyama/hardcopy/internal/walker"
	"github.com/yuya-takeyama/hardcopy/pkg/s3client"
)

const defaultConcurrency = 8

// S3Planner compares local files with the objects under an S3 prefix.
type S3Planner struct {
	client      s3client.Client
	computer    *checksum.Computer
	concurrency int
	log         zerolog.Logger
}

func NewS3Planner(client s3client.Client, computer *checksum.Computer, concurrency int, log zerolog.Logger) *S3Planner {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &S3Planner{
		client:      client,
		computer:    computer,
		concurrency: concurrency,
		log:         log,
	}
}

// Plan returns an item for every local file under localBase.
func (p *S3Planner) Plan(ctx context.Context, local []ItemMetadata, localBase, bucket, prefix string) ([]Item, error) {
	objects, err := p.client.ListObjects(ctx, &s3client.ListObjectsRequest{
		Bucket: bucket,
		Prefix: prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 objects: %w", err)
	}

	remote := make([]ItemMetadata, 0, len(objects))
	for _, obj := range objects {
		remote = append(remote, ItemMetadata{Path: obj.Path, Size: obj.Size})
	}

	phase1Result := Phase1Compare(local, remote)

	checksums, err := p.Phase2CollectChecksums(ctx, phase1Result.NeedChecksum, localBase, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to collect checksums: %w", err)
	}

	items := Phase3GeneratePlan(phase1Result, checksums, localBase, prefix)
	for _, item := range items {
		p.log.Debug().
			Str("action", string(item.Action)).
			Str("key", item.Key).
			Str("reason", item.Reason).
			Msg("Planned")
	}
	return items, nil
}

// Phase2CollectChecksums sums the local files and reads the stored checksum
// of their objects, with up to concurrency requests in flight.
func (p *S3Planner) Phase2CollectChecksums(ctx context.Context, items []ItemRef, localBase string, bucket string, prefix string) ([]ChecksumData, error) {
	alg, storable := s3client.ChecksumAlgorithmFor(p.computer.Algorithm())

	results := make([]ChecksumData, len(items))
	errs := make([]error, len(items))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, item ItemRef) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			data := ChecksumData{ItemRef: item}
			if storable {
				key := walker.JoinKey(prefix, item.Path)
				info, err := p.client.HeadObject(ctx, &s3client.HeadObjectRequest{Bucket: bucket, Key: key})
				if err != nil {
					errs[idx] = fmt.Errorf("failed to head object %s: %w", key, err)
					return
				}
				if stored, ok := info.Checksum(alg); ok {
					data.DestChecksum, err = checksum.FromBase64(p.computer.Algorithm(), stored)
					data.DestKnown = err == nil
				}
			}
			if !data.DestKnown {
				results[idx] = data
				return
			}

			localPath := filepath.Join(localBase, filepath.FromSlash(item.Path))
			sum, err := p.computer.SumFile(ctx, localPath)
			if err != nil {
				errs[idx] = fmt.Errorf("failed to calculate checksum for %s: %w", localPath, err)
				return
			}
			data.SourceChecksum = sum
			results[idx] = data
		}(i, item)
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}
