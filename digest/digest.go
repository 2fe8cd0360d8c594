// Package digest computes the content-addressed identifier exchanged
// with consensus: a fixed-size hash of a serialized batch.
package digest

import (
	"encoding/hex"

	"github.com/codahale/blake2/blake2b"
)

// Size is the length in bytes of a Digest.
const Size = 32

// Digest identifies a serialized batch by the hash of its bytes. Two
// honest mempools hashing the same bytes always agree, which is what lets
// consensus order digests instead of raw payloads.
type Digest [Size]byte

// Compute hashes data and returns the resulting Digest. It is
// deterministic and collision-resistant, satisfying the
// Digest = H(SerializedBatch) invariant.
func Compute(data []byte) Digest {
	h := blake2b.New256()
	// hash.Hash never returns an error from Write.
	_, _ = h.Write(data)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// IsZero reports whether d is the zero digest, used to detect
// uninitialized fields without a pointer indirection.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler so a Digest can be used as
// a map key in encoding/json output.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	copy(d[:], b)
	return nil
}
