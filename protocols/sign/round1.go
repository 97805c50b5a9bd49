package sign

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// round1 samples this party's nonce share k_i and blinding gamma_i,
// commits to Gamma_i = gamma_i*G, and opens an MtA-A exchange on k_i with
// every other committee member (spec.md §4.I Phase 1). The commitment and
// the peer-specific MtA-A proof are folded into a single per-recipient
// unicast message (rather than one broadcast plus separate unicasts), the
// same way protocols/keygen's round2 avoids sending two messages from the
// same sender in one round (internal/round's driver allows exactly one
// inbound message per sender per round).
type round1 struct {
	sess *session

	k      curve.Scalar
	gamma  curve.Scalar
	Gamma  curve.Point
	commit hashcommit.Commitment

	receivedGammaCommit map[party.Index][]byte
	receivedMessageA    map[party.Index]zkp.MessageA
}

func newRound1(sess *session) *round1 {
	return &round1{
		sess:                sess,
		receivedGammaCommit: map[party.Index][]byte{},
		receivedMessageA:    map[party.Index]zkp.MessageA{},
	}
}

func (r *round1) Number() int { return 1 }

// Zeroize wipes this round's nonce share and blinding scalar.
func (r *round1) Zeroize() {
	r.k.Zeroize()
	r.gamma.Zeroize()
}

func (r *round1) Start() ([]round.Msg[Msg], error) {
	k, err := randomScalar()
	if err != nil {
		return nil, fmt.Errorf("sign round1: sampling k: %w", err)
	}
	gamma, err := randomScalar()
	if err != nil {
		return nil, fmt.Errorf("sign round1: sampling gamma: %w", err)
	}
	r.k = k
	r.gamma = gamma
	r.Gamma = gamma.ActOnBase()

	gammaBytes, err := r.Gamma.CompressedBytes()
	if err != nil {
		return nil, fmt.Errorf("sign round1: compressing Gamma: %w", err)
	}
	commit, err := hashcommit.Commit(rand.Reader, gammaCommitLabel, gammaBytes)
	if err != nil {
		return nil, fmt.Errorf("sign round1: committing: %w", err)
	}
	r.commit = commit

	selfPK := &r.sess.key.PaillierSK.PublicKey
	out := make([]round.Msg[Msg], 0, len(r.sess.peers()))
	for _, to := range r.sess.peers() {
		msgA, _, err := zkp.NewMessageA(selfPK, r.sess.setupOf(to), k.BigInt())
		if err != nil {
			return nil, fmt.Errorf("sign round1: building MtA-A for %s: %w", to, err)
		}
		out = append(out, round.Msg[Msg]{
			From: r.sess.self, To: to, Broadcast: false, Round: 1,
			Body: Msg{Round1: &Round1Payload{GammaCommitC: commit.C, MessageA: &msgA}},
		})
	}
	return out, nil
}

func (r *round1) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round1 != nil && containsIndex(r.sess.peers(), from)
}

func (r *round1) IsInputComplete() bool {
	return len(r.receivedMessageA) == len(r.sess.peers())
}

func (r *round1) Consume(from party.Index, body Msg) error {
	msgA := *body.Round1.MessageA
	if err := msgA.Verify(r.sess.paillierPK(from), r.sess.setupOf(r.sess.self)); err != nil {
		return fmt.Errorf("sign round1: MtA-A from %s: %w", from, err)
	}
	r.receivedGammaCommit[from] = body.Round1.GammaCommitC
	r.receivedMessageA[from] = msgA
	return nil
}

func (r *round1) Finalize() (round.Transition[Msg, Signature], error) {
	return round.ToNextRound[Msg, Signature](newRound2(r)), nil
}

func (r *round1) Timeout() time.Duration { return 0 }

func (r *round1) TimeoutOutcome() round.Transition[Msg, Signature] {
	return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round1: timed out waiting for MtA-A messages")))
}
