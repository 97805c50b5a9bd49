package sign

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// round5 computes this party's signature share sigma_i = m*k_i + r*kw_i,
// where kw_i is its additive share of k*x built from round 2's k*w MtA
// terms, and
// blinds it behind a random l_i into V_i = sigma_i*R + l_i*H, committing to
// V_i before revealing anything (spec.md §4.I Phase 5). Binding sigma_i
// into a point rather than broadcasting it directly lets every other
// member verify it is consistent with the agreed R and the claimed public
// share, without learning sigma_i until round 8.
type round5 struct {
	r4 *round4

	sigma curve.Scalar
	l     curve.Scalar
	V     curve.Point

	commit hashcommit.Commitment

	received map[party.Index][]byte
}

func newRound5(r4 *round4) *round5 {
	return &round5{r4: r4, received: map[party.Index][]byte{}}
}

func (r *round5) Number() int { return 5 }

// Zeroize wipes sigma and the blinding scalar l, plus round 4's.
func (r *round5) Zeroize() {
	r.sigma.Zeroize()
	r.l.Zeroize()
	r.r4.Zeroize()
}

func (r *round5) Start() ([]round.Msg[Msg], error) {
	r1 := r.r4.r3.r2.r1
	sess := r1.sess

	r2 := r.r4.r3.r2
	kw := r1.k.Mul(sess.wSelf)
	for peer := range r2.muW {
		kw = kw.Add(r2.muW[peer]).Add(r2.nuW[peer])
	}
	sigma := sess.msgHash.Mul(r1.k).Add(r.r4.r.Mul(kw))
	kw.Zeroize()
	r.sigma = sigma

	l, err := randomScalar()
	if err != nil {
		return nil, fmt.Errorf("sign round5: sampling l: %w", err)
	}
	r.l = l
	r.V = sess.aux.Mul(l).Add(r.r4.R.Mul(sigma))

	vBytes, err := r.V.CompressedBytes()
	if err != nil {
		return nil, fmt.Errorf("sign round5: compressing V: %w", err)
	}
	commit, err := hashcommit.Commit(rand.Reader, vCommitLabel, vBytes)
	if err != nil {
		return nil, fmt.Errorf("sign round5: committing: %w", err)
	}
	r.commit = commit

	return []round.Msg[Msg]{{
		From: sess.self, Broadcast: true, Round: 5,
		Body: Msg{Round5: &Round5Payload{CommitC: commit.C}},
	}}, nil
}

func (r *round5) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round5 != nil && containsIndex(r.r4.r3.r2.r1.sess.peers(), from)
}

func (r *round5) IsInputComplete() bool {
	return len(r.received) == len(r.r4.r3.r2.r1.sess.peers())
}

func (r *round5) Consume(from party.Index, body Msg) error {
	r.received[from] = body.Round5.CommitC
	return nil
}

func (r *round5) Finalize() (round.Transition[Msg, Signature], error) {
	return round.ToNextRound[Msg, Signature](newRound6(r)), nil
}

func (r *round5) Timeout() time.Duration { return 0 }

func (r *round5) TimeoutOutcome() round.Transition[Msg, Signature] {
	return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round5: timed out waiting for V commitments")))
}
