// Package ridkey provides the per-session "chain key" / random identifier
// (RID) stored in keygen.LocalKey.ChainKey. Keygen combines every party's
// proposal into one shared RID; resharing samples a fresh one per party.
// No Fiat-Shamir transcript in this module includes the RID. Grounded on luxfi-threshold's types.RID / types.NewRID, which
// plays the same binding role in its keygen round1 broadcast; luxfi-threshold
// itself builds RID from github.com/zeebo/blake3, which we adopt directly.
package ridkey

import (
	"crypto/rand"
	"errors"

	"github.com/zeebo/blake3"
)

// Size is the RID length in bytes.
const Size = 32

// RID is an opaque per-session binding tag.
type RID [Size]byte

// New samples a fresh random RID. Every party proposes one during keygen
// round 1; keygen round 3 XORs all proposals together with Combine once
// every commitment has been opened, the same way a threshold protocol combines
// independently-sampled per-party randomness into a single chain key no
// single party controls.
func New() (RID, error) {
	var r RID
	if _, err := rand.Read(r[:]); err != nil {
		return RID{}, err
	}
	return r, nil
}

// Combine XORs a set of per-party RIDs into the session's final chain key.
// XOR is used (rather than hashing) so that the combination is associative
// and order-independent: parties can fold in proposals as they arrive
// without agreeing on an order first.
func Combine(rids []RID) RID {
	var out RID
	for _, r := range rids {
		for i := range out {
			out[i] ^= r[i]
		}
	}
	return out
}

// DeriveSalt expands a session's RID and a domain-separation label into a
// 32-byte value by hashing rid || label with unkeyed BLAKE3 and reading its
// XOF output. No protocol in this module calls it.
func DeriveSalt(rid RID, label string) ([]byte, error) {
	if label == "" {
		return nil, errors.New("ridkey: label must not be empty")
	}
	h := blake3.New()
	h.Write(rid[:])
	h.Write([]byte(label))
	out := make([]byte, 32)
	if _, err := h.Digest().Read(out); err != nil {
		return nil, err
	}
	return out, nil
}
