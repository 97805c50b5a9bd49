package keygen

import (
	"fmt"
	"math/big"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/paillier"
	"github.com/vaultmesh/threshold-ecdsa/internal/ridkey"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/vss"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

const schnorrLabel = "keygen/r3/share-ownership"

// round3 verifies every peer's round-2 proofs (correct-key, ZK setup
// linking), accumulates this party's combined secret share xi = sum of
// received VSS shares, and broadcasts Xi = xi*G with a Schnorr proof of
// knowledge (spec.md §4.H round 3 / original_source's
// Message::R3(FeldmanVSS) + the accompanying DLog-proof round the teacher
// folds into the same phase).
type round3 struct {
	r2 *round2

	xi         curve.Scalar
	feldmanOf  map[party.Index][]curve.Point // every party's own Feldman commitments, keyed by that party
	paillierPK map[party.Index]*paillier.PublicKey
	setups     map[party.Index]zkp.PublicSetup
	chainKey   ridkey.RID

	received map[party.Index]Round3Payload
}

func newRound3(r2 *round2) *round3 {
	return &round3{r2: r2, received: map[party.Index]Round3Payload{}}
}

func (r *round3) Number() int { return 3 }

// Zeroize wipes this party's accumulated secret share, plus round 2's.
func (r *round3) Zeroize() {
	r.xi.Zeroize()
	r.r2.Zeroize()
}

func (r *round3) Start() ([]round.Msg[Msg], error) {
	r1 := r.r2.r1

	for from, payload := range r.r2.received {
		pub := &paillier.PublicKey{N: new(big.Int).SetBytes(payload.PaillierN)}
		pub.N2 = new(big.Int).Mul(pub.N, pub.N)
		if err := paillier.VerifyCorrectKey(pub, payload.CorrectKeyProof); err != nil {
			return nil, fmt.Errorf("keygen round3: correct-key proof from %s: %w", from, err)
		}
		if err := payload.Setup.Verify(); err != nil {
			return nil, fmt.Errorf("keygen round3: zk setup from %s: %w", from, err)
		}
	}

	r.paillierPK = map[party.Index]*paillier.PublicKey{}
	r.setups = map[party.Index]zkp.PublicSetup{}
	r.feldmanOf = map[party.Index][]curve.Point{}
	rids := []ridkey.RID{r1.ridSelf}

	r.paillierPK[r1.self] = &r1.paillier.PublicKey
	r.setups[r1.self] = r1.setup
	r.feldmanOf[r1.self] = r1.poly.Commitments()

	xi := r1.poly.Evaluate(selfIndexScalar(r1.committee, r1.self))
	for from, payload := range r.r2.received {
		pub := &paillier.PublicKey{N: new(big.Int).SetBytes(payload.PaillierN)}
		pub.N2 = new(big.Int).Mul(pub.N, pub.N)
		r.paillierPK[from] = pub
		r.setups[from] = payload.Setup

		commitments := make([]curve.Point, len(payload.FeldmanCommits))
		for i, b := range payload.FeldmanCommits {
			p, err := curve.PointFromCompressed(b)
			if err != nil {
				return nil, fmt.Errorf("keygen round3: decoding Feldman commitment from %s: %w", from, err)
			}
			commitments[i] = p
		}
		r.feldmanOf[from] = commitments

		rids = append(rids, payload.RIDProposal)
		share := vss.Share{
			Index: selfIndexScalar(r1.committee, r1.self),
			Value: curve.NewScalarFromBigInt(new(big.Int).SetBytes(payload.ShareValue)),
		}
		xi = xi.Add(share.Value)
	}
	r.xi = xi
	r.chainKey = ridkey.Combine(rids)

	Xi := r.xi.ActOnBase()
	proof, err := zkp.ProveSchnorr(schnorrLabel, r.xi, Xi)
	if err != nil {
		return nil, fmt.Errorf("keygen round3: proving share ownership: %w", err)
	}
	xiBytes, err := Xi.CompressedBytes()
	if err != nil {
		return nil, fmt.Errorf("keygen round3: compressing Xi: %w", err)
	}

	return []round.Msg[Msg]{{
		From: r1.self, Broadcast: true, Round: 3,
		Body: Msg{Round3: &Round3Payload{
			XiCompressed: xiBytes,
			ProofR:       mustCompress(proof.R),
			ProofS:       proof.S.Bytes(),
		}},
	}}, nil
}

func mustCompress(p curve.Point) []byte {
	b, err := p.CompressedBytes()
	if err != nil {
		panic("keygen: compressing a non-identity Schnorr commitment point failed: " + err.Error())
	}
	return b
}

func (r *round3) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round3 != nil && containsIndex(r.r2.r1.committee, from)
}

func (r *round3) IsInputComplete() bool {
	return len(r.received) == len(r.r2.r1.committee)-1
}

func (r *round3) Consume(from party.Index, body Msg) error {
	r.received[from] = *body.Round3
	return nil
}

func (r *round3) Finalize() (round.Transition[Msg, LocalKey], error) {
	return round.ToNextRound[Msg, LocalKey](newRound4(r)), nil
}

func (r *round3) Timeout() time.Duration { return 0 }

func (r *round3) TimeoutOutcome() round.Transition[Msg, LocalKey] {
	return round.ToFault[Msg, LocalKey](round.NewFault(fmt.Errorf("keygen round3: timed out waiting for share-ownership proofs")))
}
