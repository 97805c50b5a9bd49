package keygen

import (
	"fmt"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/vss"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// identifyLabel domain-separates an ownership proof from every other use of
// zkp.ProveSchnorr over the same ShareXi (e.g. round 3's proof of ownership
// at keygen time itself uses a different label).
const identifyLabel = "threshold-ecdsa/identify-share-owner"

// OwnershipProof lets a party prove, outside of any protocol run, that it
// still holds the secret share a given LocalKey claims -- e.g. before being
// accepted as a dealer in a resharing session run by a different operator
// than the one who ran the original keygen.
type OwnershipProof struct {
	Self  party.Index
	Proof zkp.SchnorrProof
}

// ProveOwnership proves knowledge of key.ShareXi against the public share
// point implied by key's own Feldman commitments.
func ProveOwnership(key *LocalKey) (OwnershipProof, error) {
	Xi := PublicShare(key, key.Self)
	proof, err := zkp.ProveSchnorr(identifyLabel, key.ShareXi, Xi)
	if err != nil {
		return OwnershipProof{}, fmt.Errorf("keygen: proving share ownership: %w", err)
	}
	return OwnershipProof{Self: key.Self, Proof: proof}, nil
}

// VerifyOwnership checks an OwnershipProof against the public share implied
// by committee's aggregated Feldman commitments for claimant. Unlike
// ProveOwnership, this takes the aggregate directly rather than a full
// LocalKey, since a verifier (e.g. a new committee member in a resharing
// run) may hold the aggregate commitments without holding any share itself.
func VerifyOwnership(aggregate []curve.Point, committee []party.Index, claimant party.Index, proof OwnershipProof) error {
	if proof.Self != claimant {
		return fmt.Errorf("keygen: ownership proof names %s, expected %s", proof.Self, claimant)
	}
	idx := indexOf(committee, claimant)
	if idx.IsZero() {
		return fmt.Errorf("keygen: %s is not a member of the given committee", claimant)
	}
	Xi := vss.EvaluateCommitments(aggregate, idx)
	if !proof.Proof.Verify(identifyLabel, Xi) {
		return fmt.Errorf("keygen: %w: ownership proof from %s", zkp.ErrInvalidProof, claimant)
	}
	return nil
}

// PublicShare recomputes who's implied public share point xi*G from key's
// own record of every dealer's Feldman commitments.
func PublicShare(key *LocalKey, who party.Index) curve.Point {
	perDealer := make([][]curve.Point, 0, len(key.FeldmanC))
	for _, c := range key.FeldmanC {
		perDealer = append(perDealer, c)
	}
	aggregate := vss.AggregateCommitments(perDealer)
	return vss.EvaluateCommitments(aggregate, indexOf(key.Committee, who))
}

func indexOf(committee []party.Index, who party.Index) curve.Scalar {
	for i, m := range committee {
		if m == who {
			return curve.IndexScalar(i + 1)
		}
	}
	return curve.Scalar{}
}
