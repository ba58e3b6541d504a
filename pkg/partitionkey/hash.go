package partitionkey

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// DigestLength is the length of a SHA3512Hex digest.
const DigestLength = 128

// HashFunc maps text to a fixed-length digest.
type HashFunc func(text string) string

// SHA3512Hex returns the lower-case hex SHA3-512 digest of text's UTF-8 bytes.
func SHA3512Hex(text string) string {
	sum := sha3.Sum512([]byte(text))
	return hex.EncodeToString(sum[:])
}
