package seekio

import (
	"crypto/md5"  //nolint:gosec // MD5 used for content verification, not security
	"crypto/sha1" //nolint:gosec // SHA1 used for content verification, not security
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"hash/crc32"
	"io"
)

// HashType represents a hash algorithm used for content verification.
type HashType string

const (
	HashNone   HashType = ""
	HashMD5    HashType = "md5"
	HashSHA1   HashType = "sha1"
	HashSHA256 HashType = "sha256"
	HashCRC32C HashType = "crc32c"
)

// String returns the string representation of the hash type.
func (h HashType) String() string {
	return string(h)
}

// SupportedHashes returns all supported hash types.
func SupportedHashes() []HashType {
	return []HashType{HashMD5, HashSHA1, HashSHA256, HashCRC32C}
}

// NewHash creates a new hash.Hash for the given hash type.
// Returns nil if the hash type is not supported.
func NewHash(t HashType) hash.Hash {
	switch t {
	case HashMD5:
		return md5.New() //nolint:gosec // MD5 used for content verification
	case HashSHA1:
		return sha1.New() //nolint:gosec // SHA1 used for content verification
	case HashSHA256:
		return sha256.New()
	case HashCRC32C:
		return crc32.New(crc32.MakeTable(crc32.Castagnoli))
	default:
		return nil
	}
}

// HashStream computes the hex-encoded hash of the whole content of s.
// The stream is opened if needed and left positioned at its end.
func HashStream(s Stream, t HashType) (string, error) {
	h := NewHash(t)
	if h == nil {
		return "", ErrNotSupported
	}
	if !s.IsOpen() {
		if err := s.Open(); err != nil {
			return "", err
		}
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if _, err := CopyFrom(h, s); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes computes the hex-encoded hash of a byte slice.
func HashBytes(data []byte, t HashType) string {
	h := NewHash(t)
	if h == nil {
		return ""
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
