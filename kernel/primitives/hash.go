// Package primitives implements the kernel's deterministic building
// blocks: canonical encoding, hashing, and signature verification. Every
// component that hashes or signs structured data routes through Canonical
// first — it is the single source of determinism for the whole kernel.
package primitives

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is the fixed-size output of Hash.
type Digest [32]byte

// ZeroDigest is the predecessor hash used by the first entry of a hash
// chain (the genesis Evidence, the genesis StateSnapshot).
var ZeroDigest Digest

// Hash returns the SHA-256 digest of b. SHA-256 is used uniformly rather
// than mixing hash families, because canonical.go's contract ("two equal
// canonical encodings hash identically") only holds if every caller shares
// one hash function.
func Hash(b []byte) Digest {
	return sha256.Sum256(b)
}

// HashAll concatenates the given byte slices before hashing, a shorthand
// used throughout the audit and snapshot chains for "hash of concatenated
// fields".
func HashAll(parts ...[]byte) Digest {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Bytes returns d as a byte slice.
func (d Digest) Bytes() []byte { return d[:] }

// Hex returns d as a lowercase hex string, the wire form used for
// PreviousHash/Hash fields on the evidence and snapshot chains.
func (d Digest) Hex() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool { return d == ZeroDigest }
