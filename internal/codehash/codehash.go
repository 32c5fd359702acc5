// Package codehash computes and compares the content addresses the factory
// contract uses as storage keys for stored bytecode.
package codehash

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const DigestSize = sha256.Size

// Digest is the SHA-256 digest of a bytecode blob.
type Digest [DigestSize]byte

// Sum returns the digest of code.
func Sum(code []byte) Digest {
	return sha256.Sum256(code)
}

// String returns the Base58 encoding of the digest.
func (d Digest) String() string {
	return base58.Encode(d[:])
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest decodes a Base58 content address.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if s == "" {
		return d, errors.New("code hash is empty")
	}
	b, err := base58.Decode(s)
	if err != nil {
		return d, errors.WithMessagef(err, "error decoding code hash %q", s)
	}
	if len(b) != DigestSize {
		return d, fmt.Errorf("code hash %q has %d bytes, expected %d", s, len(b), DigestSize)
	}
	copy(d[:], b)
	return d, nil
}

// MismatchError is returned when the hash reported by the chain differs from
// the locally computed one.
type MismatchError struct {
	Expected Digest
	Reported string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("code hash mismatch: computed %s, chain reported %q", e.Expected, e.Reported)
}

// Verify compares a locally computed digest with the Base58 string reported
// by the chain.
func Verify(expected Digest, reported string) error {
	d, err := ParseDigest(reported)
	if err != nil || d != expected {
		return &MismatchError{Expected: expected, Reported: reported}
	}
	return nil
}

// Artifact is a contract binary read from disk.
type Artifact struct {
	Label string
	Path  string
	Code  []byte
	Hash  Digest
}

// Base64 returns the bytecode in the encoding the store call expects.
func (a *Artifact) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Code)
}
