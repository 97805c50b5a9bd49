package sign

import (
	"fmt"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// round6 decommits V_i and proves knowledge of its representation
// (sigma_i, l_i) in the bases (R, H), letting every peer confirm V_i is
// well-formed before anyone reveals sigma_i itself (spec.md §4.I Phase 6).
type round6 struct {
	r5 *round5

	receivedV map[party.Index]curve.Point
}

func newRound6(r5 *round5) *round6 {
	return &round6{r5: r5, receivedV: map[party.Index]curve.Point{}}
}

func (r *round6) Number() int { return 6 }

// Zeroize delegates to round 5, which still holds sigma.
func (r *round6) Zeroize() {
	r.r5.Zeroize()
}

func (r *round6) Start() ([]round.Msg[Msg], error) {
	r4 := r.r5.r4
	sess := r4.r3.r2.r1.sess

	vBytes, err := r.r5.V.CompressedBytes()
	if err != nil {
		return nil, fmt.Errorf("sign round6: compressing V: %w", err)
	}
	proof, err := zkp.ProveRepresentation(vRepLabel, r.r5.sigma, r.r5.l, r.r5.V, r4.R, sess.aux)
	if err != nil {
		return nil, fmt.Errorf("sign round6: proving representation of V: %w", err)
	}
	proofR, err := proof.R.CompressedBytes()
	if err != nil {
		return nil, fmt.Errorf("sign round6: compressing proof commitment: %w", err)
	}

	return []round.Msg[Msg]{{
		From: sess.self, Broadcast: true, Round: 6,
		Body: Msg{Round6: &Round6Payload{
			CommitD: r.r5.commit.D,
			VBytes:  vBytes,
			ProofR:  proofR,
			ProofS1: proof.S1.Bytes(),
			ProofS2: proof.S2.Bytes(),
		}},
	}}, nil
}

func (r *round6) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round6 != nil && containsIndex(r.r5.r4.r3.r2.r1.sess.peers(), from)
}

func (r *round6) IsInputComplete() bool {
	return len(r.receivedV) == len(r.r5.r4.r3.r2.r1.sess.peers())
}

func (r *round6) Consume(from party.Index, body Msg) error {
	r4 := r.r5.r4
	sess := r4.r3.r2.r1.sess

	commitC := r.r5.received[from]
	if !hashcommit.Verify(vCommitLabel, commitC, body.Round6.CommitD, body.Round6.VBytes) {
		return fmt.Errorf("sign round6: V decommitment from %s does not match round-5 commitment", from)
	}
	V, err := curve.PointFromCompressed(body.Round6.VBytes)
	if err != nil {
		return fmt.Errorf("sign round6: decoding V from %s: %w", from, err)
	}
	proofR, err := curve.PointFromCompressed(body.Round6.ProofR)
	if err != nil {
		return fmt.Errorf("sign round6: decoding proof commitment from %s: %w", from, err)
	}
	proof := zkp.RepresentationProof{
		R:  proofR,
		S1: curve.NewScalarFromBigInt(bigIntFromBytes(body.Round6.ProofS1)),
		S2: curve.NewScalarFromBigInt(bigIntFromBytes(body.Round6.ProofS2)),
	}
	if !proof.Verify(vRepLabel, V, r4.R, sess.aux) {
		return fmt.Errorf("sign round6: representation proof of V from %s failed", from)
	}
	r.receivedV[from] = V
	return nil
}

func (r *round6) Finalize() (round.Transition[Msg, Signature], error) {
	total := r.r5.V
	for _, v := range r.receivedV {
		total = total.Add(v)
	}
	// spec.md §4.I Phase 6: Sum(V_j) must equal m*R + r*Y, the combined
	// public commitment implied by the message hash and the group key.
	sess := r.r5.r4.r3.r2.r1.sess
	expected := r.r5.r4.R.Mul(sess.msgHash).Add(sess.key.PublicKey.Mul(r.r5.r4.r))
	if !total.Equal(expected) {
		return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round6: aggregated V does not match m*R + r*Y, a signer used an inconsistent share"))), nil
	}
	return round.ToNextRound[Msg, Signature](newRound7(r)), nil
}

func (r *round6) Timeout() time.Duration { return 0 }

func (r *round6) TimeoutOutcome() round.Transition[Msg, Signature] {
	return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round6: timed out waiting for V decommitments")))
}
