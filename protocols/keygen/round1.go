package keygen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
	"github.com/vaultmesh/threshold-ecdsa/internal/paillier"
	"github.com/vaultmesh/threshold-ecdsa/internal/ridkey"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/vss"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// PaillierKeyBits is the modulus size used for every party's Paillier key.
const PaillierKeyBits = 2048

// round1 samples this party's secret polynomial, Paillier key, and
// range-proof setup, then broadcasts a hash commitment to all of it
// (spec.md §4.H round 1 / original_source's Message::R1(Phase1Broadcast)).
type round1 struct {
	self      party.Index
	committee []party.Index
	params    party.Parameters

	poly     *vss.Polynomial
	paillier *paillier.PrivateKey
	setup    zkp.PublicSetup
	ridSelf  ridkey.RID
	commit   hashcommit.Commitment
	received map[party.Index][]byte
}

func newRound1(self party.Index, committee []party.Index, params party.Parameters) *round1 {
	return &round1{self: self, committee: committee, params: params}
}

func (r *round1) Number() int { return 1 }

// Zeroize wipes the secret polynomial and Paillier key this round buffers.
func (r *round1) Zeroize() {
	if r.poly != nil {
		r.poly.Zeroize()
	}
	if r.paillier != nil {
		r.paillier.Zeroize()
	}
}

func (r *round1) Start() ([]round.Msg[Msg], error) {
	secret, err := randomScalar()
	if err != nil {
		return nil, fmt.Errorf("keygen round1: sampling secret: %w", err)
	}
	poly, err := vss.NewPolynomial(r.params.Threshold(), secret)
	if err != nil {
		return nil, fmt.Errorf("keygen round1: building polynomial: %w", err)
	}
	r.poly = poly

	// Paillier keygen and the ZK setup's safe-prime sampling are
	// independent and both dominate round 1's latency; run them
	// concurrently rather than back to back.
	var priv *paillier.PrivateKey
	var setup zkp.PublicSetup
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		p, err := paillier.GenerateKey(rand.Reader, PaillierKeyBits)
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
		return nil, fmt.Errorf("keygen round1: %w", err)
	}
	r.paillier = priv
	r.setup = setup

	rid, err := ridkey.New()
	if err != nil {
		return nil, fmt.Errorf("keygen round1: sampling chain-key proposal: %w", err)
	}
	r.ridSelf = rid

	transcript, err := r.transcriptBytes()
	if err != nil {
		return nil, err
	}
	commit, err := hashcommit.Commit(rand.Reader, "keygen/r1/commit", transcript...)
	if err != nil {
		return nil, fmt.Errorf("keygen round1: committing: %w", err)
	}
	r.commit = commit

	return []round.Msg[Msg]{{
		From: r.self, Broadcast: true, Round: 1,
		Body: Msg{Round1: &Round1Payload{CommitmentC: commit.C}},
	}}, nil
}

// transcriptBytes deterministically serializes everything this party
// commits to in round 1, in a fixed field order, so Commit/Verify agree.
func (r *round1) transcriptBytes() ([][]byte, error) {
	parts := [][]byte{r.paillier.N.Bytes(), r.setup.NTilde.Bytes(), r.setup.H1.Bytes(), r.setup.H2.Bytes()}
	for _, c := range r.poly.Commitments() {
		b, err := c.CompressedBytes()
		if err != nil {
			return nil, fmt.Errorf("keygen round1: compressing Feldman commitment: %w", err)
		}
		parts = append(parts, b)
	}
	parts = append(parts, r.ridSelf[:])
	return parts, nil
}

func (r *round1) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round1 != nil && containsIndex(r.committee, from)
}

func (r *round1) IsInputComplete() bool {
	return len(r.received) == len(r.committee)-1
}

func (r *round1) Consume(from party.Index, body Msg) error {
	if r.received == nil {
		r.received = map[party.Index][]byte{}
	}
	r.received[from] = body.Round1.CommitmentC
	return nil
}

func (r *round1) Finalize() (round.Transition[Msg, LocalKey], error) {
	return round.ToNextRound[Msg, LocalKey](newRound2(r)), nil
}

func (r *round1) Timeout() time.Duration { return 0 }

func (r *round1) TimeoutOutcome() round.Transition[Msg, LocalKey] {
	return round.ToFault[Msg, LocalKey](round.NewFault(fmt.Errorf("keygen round1: timed out waiting for commitments")))
}

func randomScalar() (curve.Scalar, error) {
	var buf [40]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return curve.Scalar{}, err
	}
	return curve.NewScalarFromBigInt(new(big.Int).SetBytes(buf[:])), nil
}

func containsIndex(xs []party.Index, x party.Index) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
