package keygen

import (
	"fmt"
	"math/big"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// round4 verifies every peer's Schnorr share-ownership proof against the
// Feldman-implied expectation and finalizes the combined public key
// (spec.md §4.H round 4 / original_source's Message::R4(CurvDLogProofType)).
type round4 struct {
	r3 *round3

	received map[party.Index]struct{}
}

func newRound4(r3 *round3) *round4 {
	return &round4{r3: r3, received: map[party.Index]struct{}{}}
}

func (r *round4) Number() int { return 4 }

// Zeroize delegates to round 3, which holds the last secret this protocol
// buffers before producing LocalKey.
func (r *round4) Zeroize() {
	r.r3.Zeroize()
}

func (r *round4) Start() ([]round.Msg[Msg], error) {
	r1 := r.r3.r2.r1

	degree := r1.params.Threshold()
	aggregate := make([]curve.Point, degree+1)
	for k := 0; k <= degree; k++ {
		acc := curve.Point{}
		first := true
		for _, commits := range r.r3.feldmanOf {
			if first {
				acc = commits[k]
				first = false
				continue
			}
			acc = acc.Add(commits[k])
		}
		aggregate[k] = acc
	}

	// Verify our own broadcast Xi against the aggregate before trusting
	// anyone else's.
	selfXi := r.r3.xi.ActOnBase()
	selfExpected := evaluateAggregate(aggregate, selfIndexScalar(r1.committee, r1.self))
	if !selfXi.Equal(selfExpected) {
		return nil, fmt.Errorf("keygen round4: own share does not match the aggregate Feldman commitments")
	}

	for from, payload := range r.r3.received {
		Xi, err := curve.PointFromCompressed(payload.XiCompressed)
		if err != nil {
			return nil, fmt.Errorf("keygen round4: decoding Xi from %s: %w", from, err)
		}
		R, err := curve.PointFromCompressed(payload.ProofR)
		if err != nil {
			return nil, fmt.Errorf("keygen round4: decoding proof commitment from %s: %w", from, err)
		}
		proof := zkp.SchnorrProof{R: R, S: curve.NewScalarFromBigInt(new(big.Int).SetBytes(payload.ProofS))}
		if !proof.Verify(schnorrLabel, Xi) {
			return nil, fmt.Errorf("keygen round4: share-ownership proof from %s failed", from)
		}
		expected := evaluateAggregate(aggregate, selfIndexScalar(r1.committee, from))
		if !Xi.Equal(expected) {
			return nil, fmt.Errorf("keygen round4: share from %s does not match the aggregate Feldman commitments", from)
		}
		r.received[from] = struct{}{}
	}

	r.r3.feldmanOf["__aggregate__"] = aggregate
	return nil, nil
}

func evaluateAggregate(commitments []curve.Point, x curve.Scalar) curve.Point {
	degree := len(commitments) - 1
	result := commitments[degree]
	for i := degree - 1; i >= 0; i-- {
		result = result.Mul(x)
		result = result.Add(commitments[i])
	}
	return result
}

func (r *round4) IsMessageExpected(party.Index, Msg) bool { return false }

func (r *round4) IsInputComplete() bool { return true }

func (r *round4) Consume(party.Index, Msg) error {
	return fmt.Errorf("keygen round4: no further messages expected")
}

func (r *round4) Finalize() (round.Transition[Msg, LocalKey], error) {
	r1 := r.r3.r2.r1
	aggregate := r.r3.feldmanOf["__aggregate__"]
	delete(r.r3.feldmanOf, "__aggregate__")

	feldmanCopy := make(map[party.Index][]curve.Point, len(r.r3.feldmanOf))
	for k, v := range r.r3.feldmanOf {
		feldmanCopy[k] = v
	}

	key := LocalKey{
		Self:       r1.self,
		Params:     r1.params,
		Committee:  append([]party.Index(nil), r1.committee...),
		ShareXi:    r.r3.xi,
		PublicKey:  aggregate[0],
		FeldmanC:   feldmanCopy,
		PaillierSK: r1.paillier,
		PaillierPK: r.r3.paillierPK,
		Setups:     r.r3.setups,
		ChainKey:   r.r3.chainKey,
	}
	return round.ToFinal[Msg, LocalKey](key), nil
}

func (r *round4) Timeout() time.Duration { return 0 }

func (r *round4) TimeoutOutcome() round.Transition[Msg, LocalKey] {
	return round.ToFault[Msg, LocalKey](round.NewFault(fmt.Errorf("keygen round4: timed out")))
}
