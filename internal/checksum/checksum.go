// Package checksum computes file digests in fixed-size chunks so memory use
// does not depend on file size.
package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

// ChunkSize is the number of bytes read per step.
const ChunkSize = 4096

// Algorithm names a supported checksum algorithm.
type Algorithm string

const (
	CRC32  Algorithm = "crc32"
	CRC32C Algorithm = "crc32c"
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// DefaultAlgorithm is used when none is configured.
const DefaultAlgorithm = CRC32C

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{CRC32, CRC32C, MD5, SHA1, SHA256, SHA512}
}

// ParseAlgorithm maps a case-insensitive name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	for _, a := range Algorithms() {
		if a == alg {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown checksum algorithm %q", name)
}

func (a Algorithm) String() string {
	return string(a)
}

// crcTable returns the CRC table for CRC algorithms and nil otherwise.
func (a Algorithm) crcTable() *crc32.Table {
	switch a {
	case CRC32:
		return crc32.IEEETable
	case CRC32C:
		return castagnoliTable
	}
	return nil
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	case SHA512:
		return sha512.New()
	}
	return nil
}

// Zero returns the checksum of empty input: 0 for CRC algorithms and the
// digest of zero bytes for hash algorithms.
func (a Algorithm) Zero() Checksum {
	if a.crcTable() != nil {
		return fromUint32(a, 0)
	}
	return Checksum{alg: a, sum: string(a.newHash().Sum(nil))}
}

// Checksum is a digest produced by one Algorithm. The zero value is not a
// valid checksum of anything. Checksums are comparable with ==.
type Checksum struct {
	alg Algorithm
	sum string
}

func fromUint32(alg Algorithm, v uint32) Checksum {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return Checksum{alg: alg, sum: string(b[:])}
}

// FromBase64 decodes a base64 digest, the encoding S3 uses for stored
// checksums.
func FromBase64(alg Algorithm, encoded string) (Checksum, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Checksum{}, fmt.Errorf("decode %s checksum: %w", alg, err)
	}
	return Checksum{alg: alg, sum: string(raw)}, nil
}

func (c Checksum) Algorithm() Algorithm {
	return c.alg
}

// Bytes returns the raw digest in big-endian order.
func (c Checksum) Bytes() []byte {
	return []byte(c.sum)
}

func (c Checksum) Hex() string {
	return hex.EncodeToString([]byte(c.sum))
}

func (c Checksum) Base64() string {
	return base64.StdEncoding.EncodeToString([]byte(c.sum))
}

// Uint32 returns the numeric value of a CRC checksum.
func (c Checksum) Uint32() (uint32, bool) {
	if c.alg.crcTable() == nil || len(c.sum) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32([]byte(c.sum)), true
}

// IsZero reports whether c is its algorithm's value for empty input.
func (c Checksum) IsZero() bool {
	return c.alg != "" && c == c.alg.Zero()
}

// Equal reports whether both checksums were produced by the same algorithm
// and hold the same digest.
func (c Checksum) Equal(other Checksum) bool {
	return c == other
}

func (c Checksum) String() string {
	if c.alg == "" {
		return "<none>"
	}
	return fmt.Sprintf("%s:%s", c.alg, c.Hex())
}

// Computer computes checksums with a single algorithm.
type Computer struct {
	alg Algorithm
}

// NewComputer creates a Computer for alg.
func NewComputer(alg Algorithm) (*Computer, error) {
	parsed, err := ParseAlgorithm(string(alg))
	if err != nil {
		return nil, err
	}
	return &Computer{alg: parsed}, nil
}

func (c *Computer) Algorithm() Algorithm {
	return c.alg
}

// SumFile returns the checksum of the file at path. A missing file is an
// error, not the zero checksum. Open and read errors are returned wrapped, so
// errors.Is(err, fs.ErrNotExist) still works.
func (c *Computer) SumFile(ctx context.Context, path string) (Checksum, error) {
	file, err := os.Open(path)
	if err != nil {
		return Checksum{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return c.SumReader(ctx, file)
}

// SumReader returns the checksum of everything read from r. The context is
// checked between chunks.
func (c *Computer) SumReader(ctx context.Context, r io.Reader) (Checksum, error) {
	buffer := make([]byte, ChunkSize)

	if table := c.alg.crcTable(); table != nil {
		var running uint32
		err := readChunks(ctx, r, buffer, func(chunk []byte) {
			running = crc32.Update(running, table, chunk)
		})
		if err != nil {
			return Checksum{}, err
		}
		return fromUint32(c.alg, running), nil
	}

	h := c.alg.newHash()
	err := readChunks(ctx, r, buffer, func(chunk []byte) {
		h.Write(chunk)
	})
	if err != nil {
		return Checksum{}, err
	}
	return Checksum{alg: c.alg, sum: string(h.Sum(nil))}, nil
}

func readChunks(ctx context.Context, r io.Reader, buffer []byte, fn func([]byte)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buffer)
		if n > 0 {
			fn(buffer[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
	}
}
