package keygen

import (
	"fmt"
	"math/big"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
	"github.com/vaultmesh/threshold-ecdsa/internal/paillier"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/vss"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// round2 decommits round 1's public data and privately distributes each
// peer's Feldman share (spec.md §4.H round 2 / original_source's
// Message::R2(DecommitPublicKey) + the VSS share carried alongside it).
type round2 struct {
	r1 *round1

	shares map[party.Index]vss.Share

	received map[party.Index]Round2Payload
}

func newRound2(r1 *round1) *round2 {
	return &round2{r1: r1, received: map[party.Index]Round2Payload{}}
}

func (r *round2) Number() int { return 2 }

// Zeroize wipes the dealt shares buffered for this round, plus round 1's
// retained secrets.
func (r *round2) Zeroize() {
	for idx, s := range r.shares {
		s.Zeroize()
		r.shares[idx] = s
	}
	r.shares = nil
	r.r1.Zeroize()
}

func (r *round2) Start() ([]round.Msg[Msg], error) {
	shares := r.r1.poly.SharesFor(len(r.r1.committee))
	r.shares = map[party.Index]vss.Share{}
	for i, idx := range r.r1.committee {
		r.shares[idx] = shares[i]
	}

	feldman := r.r1.poly.Commitments()
	feldmanBytes := make([][]byte, len(feldman))
	for i, c := range feldman {
		b, err := c.CompressedBytes()
		if err != nil {
			return nil, fmt.Errorf("keygen round2: compressing Feldman commitment: %w", err)
		}
		feldmanBytes[i] = b
	}

	proof, err := paillier.ProveCorrectKey(r.r1.paillier, paillier.DefaultCorrectKeyChallenges)
	if err != nil {
		return nil, fmt.Errorf("keygen round2: proving correct key: %w", err)
	}

	out := make([]round.Msg[Msg], 0, len(r.r1.committee)-1)
	for _, to := range r.r1.committee {
		if to == r.r1.self {
			continue
		}
		payload := Round2Payload{
			CommitmentD:     r.r1.commit.D,
			PaillierN:       r.r1.paillier.N.Bytes(),
			CorrectKeyProof: proof,
			Setup:           r.r1.setup,
			FeldmanCommits:  feldmanBytes,
			RIDProposal:     r.r1.ridSelf,
			ShareValue:      r.shares[to].Value.Bytes(),
		}
		out = append(out, round.Msg[Msg]{
			From: r.r1.self, To: to, Broadcast: false, Round: 2,
			Body: Msg{Round2: &payload},
		})
	}
	return out, nil
}

func (r *round2) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round2 != nil && containsIndex(r.r1.committee, from)
}

func (r *round2) IsInputComplete() bool {
	return len(r.received) == len(r.r1.committee)-1
}

func (r *round2) Consume(from party.Index, body Msg) error {
	commitC, ok := r.r1.received[from]
	if !ok {
		return fmt.Errorf("keygen round2: no round-1 commitment recorded for %s", from)
	}
	parts := [][]byte{body.Round2.PaillierN, body.Round2.Setup.NTilde.Bytes(), body.Round2.Setup.H1.Bytes(), body.Round2.Setup.H2.Bytes()}
	parts = append(parts, body.Round2.FeldmanCommits...)
	parts = append(parts, body.Round2.RIDProposal[:])
	if !hashcommit.Verify("keygen/r1/commit", commitC, body.Round2.CommitmentD, parts...) {
		return fmt.Errorf("keygen round2: decommitment from %s does not match round-1 commitment", from)
	}

	commitments := make([]curve.Point, len(body.Round2.FeldmanCommits))
	for i, b := range body.Round2.FeldmanCommits {
		p, err := curve.PointFromCompressed(b)
		if err != nil {
			return fmt.Errorf("keygen round2: decoding Feldman commitment %d from %s: %w", i, from, err)
		}
		commitments[i] = p
	}
	share := vss.Share{
		Index: selfIndexScalar(r.r1.committee, r.r1.self),
		Value: curve.NewScalarFromBigInt(new(big.Int).SetBytes(body.Round2.ShareValue)),
	}
	if err := vss.VerifyShare(share, commitments); err != nil {
		return fmt.Errorf("keygen round2: share from %s: %w", from, err)
	}

	r.received[from] = *body.Round2
	return nil
}

// selfIndexScalar returns the canonical 1-based VSS x-coordinate for idx
// within committee.
func selfIndexScalar(committee []party.Index, idx party.Index) curve.Scalar {
	for i, m := range committee {
		if m == idx {
			return curve.IndexScalar(i + 1)
		}
	}
	return curve.Scalar{}
}

func (r *round2) Finalize() (round.Transition[Msg, LocalKey], error) {
	return round.ToNextRound[Msg, LocalKey](newRound3(r)), nil
}

func (r *round2) Timeout() time.Duration { return 0 }

func (r *round2) TimeoutOutcome() round.Transition[Msg, LocalKey] {
	return round.ToFault[Msg, LocalKey](round.NewFault(fmt.Errorf("keygen round2: timed out waiting for decommitments")))
}
