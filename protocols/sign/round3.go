package sign

import (
	"fmt"
	"math/big"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// round3 broadcasts delta_i = k_i*gamma_i + sum_{j!=i}(alpha_ij+beta_ij),
// the blinded nonce share that, once summed across the committee, reveals
// delta = k*gamma without leaking k itself (spec.md §4.I Phase 3).
type round3 struct {
	r2 *round2

	delta curve.Scalar

	received map[party.Index]curve.Scalar
}

func newRound3(r2 *round2) *round3 {
	return &round3{r2: r2, received: map[party.Index]curve.Scalar{}}
}

func (r *round3) Number() int { return 3 }

// Zeroize wipes this party's delta share, plus round 2's additive terms.
func (r *round3) Zeroize() {
	r.delta.Zeroize()
	r.r2.Zeroize()
}

func (r *round3) Start() ([]round.Msg[Msg], error) {
	r1 := r.r2.r1
	delta := r1.k.Mul(r1.gamma)
	for peer := range r.r2.alphaGamma {
		delta = delta.Add(r.r2.alphaGamma[peer]).Add(r.r2.betaGamma[peer])
	}
	r.delta = delta

	return []round.Msg[Msg]{{
		From: r1.sess.self, Broadcast: true, Round: 3,
		Body: Msg{Round3: &Round3Payload{Delta: delta.Bytes()}},
	}}, nil
}

func (r *round3) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round3 != nil && containsIndex(r.r2.r1.sess.peers(), from)
}

func (r *round3) IsInputComplete() bool {
	return len(r.received) == len(r.r2.r1.sess.peers())
}

func (r *round3) Consume(from party.Index, body Msg) error {
	r.received[from] = curve.NewScalarFromBigInt(new(big.Int).SetBytes(body.Round3.Delta))
	return nil
}

func (r *round3) Finalize() (round.Transition[Msg, Signature], error) {
	total := r.delta
	for _, d := range r.received {
		total = total.Add(d)
	}
	if total.IsZero() {
		return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round3: delta sums to zero, aborting"))), nil
	}
	return round.ToNextRound[Msg, Signature](newRound4(r, total)), nil
}

func (r *round3) Timeout() time.Duration { return 0 }

func (r *round3) TimeoutOutcome() round.Transition[Msg, Signature] {
	return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round3: timed out waiting for delta shares")))
}
