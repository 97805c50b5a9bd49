package reshare

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaultmesh/threshold-ecdsa/internal/paillier"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
)

// round2 has every new-committee member broadcast a freshly generated
// Paillier key and ZkpPublicSetup for the new epoch, exactly as keygen
// round 1 does for a from-scratch run (spec.md §4.J round 2). Old-only
// members (about to drop out after dealing in round 3) only listen.
type round2 struct {
	r1 *round1

	paillier *paillier.PrivateKey // nil unless self is new
	setup    zkp.PublicSetup

	paillierPK map[party.Index]*paillier.PublicKey
	setups     map[party.Index]zkp.PublicSetup

	expectedFrom []party.Index
	received     map[party.Index]struct{}
}

func newRound2(r1 *round1) *round2 {
	sess := r1.sess
	expected := sess.newCommittee
	if sess.isNew {
		expected = sess.newPeers()
	}
	return &round2{
		r1:           r1,
		paillierPK:   map[party.Index]*paillier.PublicKey{},
		setups:       map[party.Index]zkp.PublicSetup{},
		expectedFrom: expected,
		received:     map[party.Index]struct{}{},
	}
}

func (r *round2) Number() int { return 2 }

// Zeroize wipes the fresh Paillier key this round samples for a new-committee
// member; old-committee-only members never populate r.paillier.
func (r *round2) Zeroize() {
	if r.paillier != nil {
		r.paillier.Zeroize()
	}
}

func (r *round2) Start() ([]round.Msg[Msg], error) {
	if !r.r1.sess.isNew {
		return nil, nil
	}
	var priv *paillier.PrivateKey
	var setup zkp.PublicSetup
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		p, err := paillier.GenerateKey(rand.Reader, keygen.PaillierKeyBits)
		if err != nil {
			return fmt.Errorf("generating paillier key: %w", err)
		}
		priv = p
		return nil
	})
	g.Go(func() error {
		s, err := zkp.GenerateSetup(ctx)
		if err != nil {
			return fmt.Errorf("generating zk setup: %w", err)
		}
		setup = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reshare round2: %w", err)
	}
	r.paillier = priv
	r.setup = setup

	proof, err := paillier.ProveCorrectKey(priv, paillier.DefaultCorrectKeyChallenges)
	if err != nil {
		return nil, fmt.Errorf("reshare round2: proving correct key: %w", err)
	}

	self := r.r1.sess.self
	r.paillierPK[self] = &priv.PublicKey
	r.setups[self] = setup

	return []round.Msg[Msg]{{
		From: self, Broadcast: true, Round: 2,
		Body: Msg{Round2: &Round2Payload{
			PaillierN:       priv.N.Bytes(),
			CorrectKeyProof: proof,
			Setup:           setup,
		}},
	}}, nil
}

func (r *round2) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round2 != nil && containsIndex(r.expectedFrom, from)
}

func (r *round2) IsInputComplete() bool {
	return len(r.received) == len(r.expectedFrom)
}

func (r *round2) Consume(from party.Index, body Msg) error {
	pub := &paillier.PublicKey{N: bigIntFromBytes(body.Round2.PaillierN)}
	pub.N2 = new(big.Int).Mul(pub.N, pub.N)
	if err := paillier.VerifyCorrectKey(pub, body.Round2.CorrectKeyProof); err != nil {
		return fmt.Errorf("reshare round2: correct-key proof from %s: %w", from, err)
	}
	if err := body.Round2.Setup.Verify(); err != nil {
		return fmt.Errorf("reshare round2: zk setup from %s: %w", from, err)
	}
	r.paillierPK[from] = pub
	r.setups[from] = body.Round2.Setup
	r.received[from] = struct{}{}
	return nil
}

func (r *round2) Finalize() (round.Transition[Msg, *keygen.LocalKey], error) {
	return round.ToNextRound[Msg, *keygen.LocalKey](newRound3(r)), nil
}

func (r *round2) Timeout() time.Duration { return 0 }

func (r *round2) TimeoutOutcome() round.Transition[Msg, *keygen.LocalKey] {
	return round.ToFault[Msg, *keygen.LocalKey](round.NewFault(fmt.Errorf("reshare round2: timed out waiting for new-committee broadcasts")))
}
