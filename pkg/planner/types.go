// Package planner decides which files an upload to S3 has to send. A file is
// sent when the bucket lacks it, holds it with a different size, or stores a
// checksum that differs from the local file's.
package planner

import "github.com/yuya-takeyama/hardcopy/internal/checksum"

type ItemMetadata struct {
	// Path is slash separated and relative to the source root or prefix.
	Path string
	Size int64
}

type Action string

const (
	ActionUpload Action = "upload"
	ActionSkip   Action = "skip"
)

type Item struct {
	Action    Action
	LocalPath string
	Key       string
	Size      int64
	Reason    string
}

type ItemRef struct {
	Path string
	Size int64
}

type Phase1Result struct {
	NewItems     []ItemRef
	SizeMismatch []ItemRef
	NeedChecksum []ItemRef
}

// ChecksumData pairs the local checksum of an item with the one S3 stored.
// DestKnown is false when the object carries no usable stored checksum.
type ChecksumData struct {
	ItemRef        ItemRef
	SourceChecksum checksum.Checksum
	DestChecksum   checksum.Checksum
	DestKnown      bool
}
