package sign

import (
	"fmt"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// round8 opens round 7's commitment, revealing sigma_i and l_i, checks each
// peer's reveal against both its round-7 commitment and its round-6 V_i,
// and combines every sigma_j into the final ECDSA signature (spec.md §4.I
// Phases 8-9; folded into one round the way keygen's round4 folds its
// verify-then-finalize step, since finalizing needs no further network
// round trip once every sigma_j is open and checked).
type round8 struct {
	r7 *round7

	receivedSigma map[party.Index]curve.Scalar
}

func newRound8(r7 *round7) *round8 {
	return &round8{r7: r7, receivedSigma: map[party.Index]curve.Scalar{}}
}

func (r *round8) Number() int { return 8 }

// Zeroize wipes the peer sigma shares received so far, plus round 7's.
func (r *round8) Zeroize() {
	zeroizeScalarMap(r.receivedSigma)
	r.r7.Zeroize()
}

func (r *round8) Start() ([]round.Msg[Msg], error) {
	r5 := r.r7.r6.r5
	sess := r.r7.r6.r5.r4.r3.r2.r1.sess

	return []round.Msg[Msg]{{
		From: sess.self, Broadcast: true, Round: 8,
		Body: Msg{Round8: &Round8Payload{
			CommitD: r.r7.commit.D,
			SBytes:  r5.sigma.Bytes(),
			LBytes:  r5.l.Bytes(),
		}},
	}}, nil
}

func (r *round8) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round8 != nil && containsIndex(r.r7.r6.r5.r4.r3.r2.r1.sess.peers(), from)
}

func (r *round8) IsInputComplete() bool {
	return len(r.receivedSigma) == len(r.r7.r6.r5.r4.r3.r2.r1.sess.peers())
}

func (r *round8) Consume(from party.Index, body Msg) error {
	r6 := r.r7.r6
	sess := r6.r5.r4.r3.r2.r1.sess

	payload := append(append([]byte{}, body.Round8.SBytes...), body.Round8.LBytes...)
	commitC := r.r7.received[from]
	if !hashcommit.Verify(finalCommitLabel, commitC, body.Round8.CommitD, payload) {
		return fmt.Errorf("sign round8: final reveal from %s does not match round-7 commitment", from)
	}

	sigma := curve.NewScalarFromBigInt(bigIntFromBytes(body.Round8.SBytes))
	l := curve.NewScalarFromBigInt(bigIntFromBytes(body.Round8.LBytes))

	V, ok := r6.receivedV[from]
	if !ok {
		return fmt.Errorf("sign round8: missing round-6 commitment for %s", from)
	}
	expectedV := sess.aux.Mul(l).Add(r6.r5.r4.R.Mul(sigma))
	if !expectedV.Equal(V) {
		return fmt.Errorf("sign round8: revealed (sigma, l) from %s is inconsistent with its round-6 commitment V", from)
	}

	r.receivedSigma[from] = sigma
	return nil
}

func (r *round8) Finalize() (round.Transition[Msg, Signature], error) {
	r5 := r.r7.r6.r5
	r4 := r5.r4
	sess := r4.r3.r2.r1.sess

	s := r5.sigma
	for _, sigma := range r.receivedSigma {
		s = s.Add(sigma)
	}
	if s.IsZero() {
		return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round8: combined signature share s is zero"))), nil
	}

	sig := Signature{R: r4.r, S: s}
	if !sig.Verify(sess.key.PublicKey, sess.msgHash) {
		return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round8: combined signature failed verification against the group public key"))), nil
	}
	return round.ToFinal[Msg, Signature](sig), nil
}

func (r *round8) Timeout() time.Duration { return 0 }

func (r *round8) TimeoutOutcome() round.Transition[Msg, Signature] {
	return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round8: timed out waiting for final reveals")))
}
