package sign

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// round7 commits to the pair (sigma_i, l_i) before revealing it, so that no
// member can choose its final share after observing anyone else's opened
// value (spec.md §4.I Phase 7). Round 6 already bound V_i to this same pair
// via a zero-knowledge proof; this second, plain commitment exists purely to
// sequence the reveal.
type round7 struct {
	r6 *round6

	commit hashcommit.Commitment

	received map[party.Index][]byte
}

func newRound7(r6 *round6) *round7 {
	return &round7{r6: r6, received: map[party.Index][]byte{}}
}

func (r *round7) Number() int { return 7 }

// Zeroize delegates to round 6, which still holds sigma (via round 5).
func (r *round7) Zeroize() {
	r.r6.Zeroize()
}

func (r *round7) Start() ([]round.Msg[Msg], error) {
	sess := r.r6.r5.r4.r3.r2.r1.sess
	payload := append(append([]byte{}, r.r6.r5.sigma.Bytes()...), r.r6.r5.l.Bytes()...)
	commit, err := hashcommit.Commit(rand.Reader, finalCommitLabel, payload)
	if err != nil {
		return nil, fmt.Errorf("sign round7: committing: %w", err)
	}
	r.commit = commit

	return []round.Msg[Msg]{{
		From: sess.self, Broadcast: true, Round: 7,
		Body: Msg{Round7: &Round7Payload{CommitC: commit.C}},
	}}, nil
}

func (r *round7) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round7 != nil && containsIndex(r.r6.r5.r4.r3.r2.r1.sess.peers(), from)
}

func (r *round7) IsInputComplete() bool {
	return len(r.received) == len(r.r6.r5.r4.r3.r2.r1.sess.peers())
}

func (r *round7) Consume(from party.Index, body Msg) error {
	r.received[from] = body.Round7.CommitC
	return nil
}

func (r *round7) Finalize() (round.Transition[Msg, Signature], error) {
	return round.ToNextRound[Msg, Signature](newRound8(r)), nil
}

func (r *round7) Timeout() time.Duration { return 0 }

func (r *round7) TimeoutOutcome() round.Transition[Msg, Signature] {
	return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round7: timed out waiting for final commitments")))
}
