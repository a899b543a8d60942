package s3client

import (
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yuya-takeyama/hardcopy/internal/checksum"
)

// ChecksumAlgorithmFor maps alg to the checksum S3 computes and stores for
// a whole object. MD5 and SHA512 have no stored equivalent.
func ChecksumAlgorithmFor(alg checksum.Algorithm) (types.ChecksumAlgorithm, bool) {
	switch alg {
	case checksum.CRC32:
		return types.ChecksumAlgorithmCrc32, true
	case checksum.CRC32C:
		return types.ChecksumAlgorithmCrc32c, true
	case checksum.SHA1:
		return types.ChecksumAlgorithmSha1, true
	case checksum.SHA256:
		return types.ChecksumAlgorithmSha256, true
	default:
		return "", false
	}
}
