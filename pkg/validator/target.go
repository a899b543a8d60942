package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuya-takeyama/hardcopy/internal/checksum"
	"github.com/yuya-takeyama/hardcopy/pkg/s3client"
)

// Info describes an entry on the copy side. Size is -1 when unknown.
type Info struct {
	Exists bool
	IsDir  bool
	Size   int64
}

// Target is a copy location that source entries are compared against.
// rel is a slash-separated path relative to the target root; "" is the
// root itself.
type Target interface {
	Location(rel string) string
	// Stat reports the entry at rel. dir tells the target a directory is
	// expected there.
	Stat(ctx context.Context, rel string, dir bool) (Info, error)
	Sum(ctx context.Context, rel string) (checksum.Checksum, error)
}

// Resolver turns a location string into a Target.
type Resolver interface {
	Resolve(ctx context.Context, location string) (Target, error)
}

type resolver struct {
	computer *checksum.Computer
	s3       s3client.Client
}

// NewResolver returns a resolver for local paths and, when client is not
// nil, s3:// URIs.
func NewResolver(computer *checksum.Computer, client s3client.Client) Resolver {
	return &resolver{computer: computer, s3: client}
}

func (r *resolver) Resolve(_ context.Context, location string) (Target, error) {
	if s3client.IsURI(location) {
		if r.s3 == nil {
			return nil, fmt.Errorf("no S3 client configured for %s", location)
		}
		return NewS3Target(r.s3, location, r.computer)
	}
	return NewLocalTarget(location, r.computer)
}

// LocalTarget is a copy on a mounted filesystem.
type LocalTarget struct {
	root     string
	computer *checksum.Computer
}

func NewLocalTarget(root string, computer *checksum.Computer) (*LocalTarget, error) {
	abs, err := canonical(root)
	if err != nil {
		return nil, err
	}
	return &LocalTarget{root: abs, computer: computer}, nil
}

func (t *LocalTarget) Location(rel string) string {
	if rel == "" {
		return t.root
	}
	return filepath.Join(t.root, filepath.FromSlash(rel))
}

func (t *LocalTarget) Stat(_ context.Context, rel string, _ bool) (Info, error) {
	fi, err := os.Stat(t.Location(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, nil
		}
		return Info{}, err
	}
	size := fi.Size()
	if fi.IsDir() {
		size = -1
	}
	return Info{Exists: true, IsDir: fi.IsDir(), Size: size}, nil
}

func (t *LocalTarget) Sum(ctx context.Context, rel string) (checksum.Checksum, error) {
	return t.computer.SumFile(ctx, t.Location(rel))
}

// canonical makes two spellings of the same local path compare equal.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}
