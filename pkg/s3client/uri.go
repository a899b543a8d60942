package s3client

import (
	"fmt"
	"path"
	"strings"
)

const uriScheme = "s3://"

// IsURI reports whether location is an s3:// URI.
func IsURI(location string) bool {
	return strings.HasPrefix(location, uriScheme)
}

// ParseURI parses an S3 URI into bucket and prefix. The prefix is cleaned
// and never carries a trailing slash.
func ParseURI(uri string) (bucket, prefix string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("invalid S3 URI %q: must start with s3://", uri)
	}

	rest := strings.TrimPrefix(uri, uriScheme)
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: missing bucket name", uri)
	}

	bucket = parts[0]
	if len(parts) > 1 {
		prefix = strings.Trim(path.Clean("/"+parts[1]), "/")
	}

	return bucket, prefix, nil
}

// FormatURI renders bucket and key as an s3:// URI.
func FormatURI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// trimKeyPrefix removes "prefix/" from key. Keys outside prefix are
// returned unchanged.
func trimKeyPrefix(key, prefix string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix+"/")
}
