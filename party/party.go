// Package party defines the identity and parameter types shared by every
// protocol in this module: party indices, threshold/share-count parameters,
// and signing committees.
package party

import (
	"fmt"
	"sort"
)

// Index is an opaque, totally-ordered party identifier. Its ordering has no
// cryptographic meaning; it only gives the protocols a canonical iteration
// order so that broadcast buffers are built the same way by every honest
// party.
type Index string

// Less orders indices lexicographically.
func (i Index) Less(other Index) bool {
	return i < other
}

// IDs sorts a slice of indices into canonical order, without mutating the input.
func IDs(ids []Index) []Index {
	out := make([]Index, len(ids))
	copy(out, ids)
	sort.Slice(out, func(a, b int) bool { return out[a].Less(out[b]) })
	return out
}

// ErrIncorrectParameters is returned when constructing Parameters with
// invalid threshold/share-count combinations (spec.md §7).
type ErrIncorrectParameters struct {
	Reason string
}

func (e *ErrIncorrectParameters) Error() string {
	return fmt.Sprintf("incorrect parameters: %s", e.Reason)
}

// Parameters holds the (threshold, share_count) pair associated with a
// shared key, satisfying 2 <= threshold+1 <= share_count.
type Parameters struct {
	threshold  int
	shareCount int
}

// NewParameters constructs Parameters from the minimum number of signers
// required (t+1) and the total number of shares (n). It enforces
// 2 <= minSigners <= shareCount.
func NewParameters(minSigners, shareCount int) (Parameters, error) {
	if shareCount < 2 {
		return Parameters{}, &ErrIncorrectParameters{
			Reason: fmt.Sprintf("share_count must be at least 2, got %d", shareCount),
		}
	}
	if minSigners < 2 {
		return Parameters{}, &ErrIncorrectParameters{
			Reason: fmt.Sprintf("min_signers must be at least 2, got %d", minSigners),
		}
	}
	if minSigners > shareCount {
		return Parameters{}, &ErrIncorrectParameters{
			Reason: fmt.Sprintf("min_signers %d cannot exceed share_count %d", minSigners, shareCount),
		}
	}
	return Parameters{threshold: minSigners - 1, shareCount: shareCount}, nil
}

// Threshold returns t.
func (p Parameters) Threshold() int { return p.threshold }

// ShareCount returns n.
func (p Parameters) ShareCount() int { return p.shareCount }

// Signers returns t+1, the minimal committee size.
func (p Parameters) Signers() int { return p.threshold + 1 }

func (p Parameters) String() string {
	return fmt.Sprintf("{threshold: %d, share_count: %d}", p.threshold, p.shareCount)
}

// Committee is a signing subset S of parties, together with the keygen
// parameters it was derived from. |S| must equal t+1 exactly (spec.md §3).
type Committee struct {
	Params  Parameters
	Members []Index
}

// NewCommittee validates |members| == params.Signers() and returns a
// Committee with members in canonical order.
func NewCommittee(params Parameters, members []Index) (Committee, error) {
	if len(members) != params.Signers() {
		return Committee{}, &ErrIncorrectParameters{
			Reason: fmt.Sprintf("signing committee must have exactly %d members, got %d", params.Signers(), len(members)),
		}
	}
	seen := make(map[Index]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m]; dup {
			return Committee{}, &ErrIncorrectParameters{Reason: fmt.Sprintf("duplicate committee member %q", m)}
		}
		seen[m] = struct{}{}
	}
	return Committee{Params: params, Members: IDs(members)}, nil
}

// Contains reports whether idx is a member of the committee.
func (c Committee) Contains(idx Index) bool {
	for _, m := range c.Members {
		if m == idx {
			return true
		}
	}
	return false
}
