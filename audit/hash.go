package audit

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
)

// Algorithm selects the digest used for the entry hash chain. Output is
// always lowercase hex, so a trail exported under one algorithm and verified
// under another is unambiguously detectable as a configuration mismatch
// rather than silently accepted.
type Algorithm string

const (
	SHA256 Algorithm = "SHA-256"
	SHA384 Algorithm = "SHA-384"
	SHA512 Algorithm = "SHA-512"
)

func (a Algorithm) newHasher() (hash.Hash, error) {
	switch a {
	case SHA256, "":
		return sha256.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("audit: unknown hash algorithm %q", a)
	}
}

// digest hashes input under the configured algorithm and returns lowercase
// hex, defaulting to SHA-256 on an unrecognized algorithm (callers are
// expected to validate Algorithm at config time via Validate()).
func digest(algo Algorithm, input []byte) string {
	h, err := algo.newHasher()
	if err != nil {
		h = sha256.New()
	}
	h.Write(input)
	return hex.EncodeToString(h.Sum(nil))
}
